package types

// Decision is the outcome of an ad frequency check
type Decision struct {
	CanShow     bool `json:"can_show"`
	WaitSeconds int  `json:"wait_seconds"`
}

// TriggerFlags are the ad requests raised by the timing policy
type TriggerFlags struct {
	CommentAd bool `json:"comment_ad"`
	TimeAd    bool `json:"time_ad"`
	PostAd    bool `json:"post_ad"`
}

// Any reports whether any trigger is raised
func (f TriggerFlags) Any() bool {
	return f.CommentAd || f.TimeAd || f.PostAd
}
