package types

import "time"

// Profile is a point-in-time snapshot of a user's ad exposure record.
// The record itself is owned by the profile store.
type Profile struct {
	UserID           string     `json:"user_id"`
	IsPremium        bool       `json:"is_premium"`
	LastAdShownAt    *time.Time `json:"last_ad_shown_at,omitempty"`
	AdHourResetAt    *time.Time `json:"ad_hour_reset_at,omitempty"`
	AdsShownThisHour int        `json:"ads_shown_this_hour"`
	AdsShownToday    int        `json:"ads_shown_today"`
	CommentCount     int        `json:"comment_count"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
}

// Clone returns a deep copy of the profile
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.LastAdShownAt = cloneTime(p.LastAdShownAt)
	c.AdHourResetAt = cloneTime(p.AdHourResetAt)
	c.SessionStartTime = cloneTime(p.SessionStartTime)
	return &c
}

// Malformed reports counters that cannot come from a well-formed record
func (p *Profile) Malformed() bool {
	return p.AdsShownThisHour < 0 || p.AdsShownToday < 0 || p.CommentCount < 0
}

// ProfilePatch is a partial update proposed to the profile store.
// Nil fields are left untouched.
type ProfilePatch struct {
	LastAdShownAt    *time.Time `json:"last_ad_shown_at,omitempty"`
	AdHourResetAt    *time.Time `json:"ad_hour_reset_at,omitempty"`
	AdsShownThisHour *int       `json:"ads_shown_this_hour,omitempty"`
	AdsShownToday    *int       `json:"ads_shown_today,omitempty"`
	CommentCount     *int       `json:"comment_count,omitempty"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
}

// IsEmpty reports whether the patch sets no field
func (p *ProfilePatch) IsEmpty() bool {
	return p == nil || (p.LastAdShownAt == nil && p.AdHourResetAt == nil &&
		p.AdsShownThisHour == nil && p.AdsShownToday == nil &&
		p.CommentCount == nil && p.SessionStartTime == nil)
}

// Apply writes the set fields of the patch onto the profile
func (p *ProfilePatch) Apply(profile *Profile) {
	if p == nil || profile == nil {
		return
	}
	if p.LastAdShownAt != nil {
		profile.LastAdShownAt = cloneTime(p.LastAdShownAt)
	}
	if p.AdHourResetAt != nil {
		profile.AdHourResetAt = cloneTime(p.AdHourResetAt)
	}
	if p.AdsShownThisHour != nil {
		profile.AdsShownThisHour = *p.AdsShownThisHour
	}
	if p.AdsShownToday != nil {
		profile.AdsShownToday = *p.AdsShownToday
	}
	if p.CommentCount != nil {
		profile.CommentCount = *p.CommentCount
	}
	if p.SessionStartTime != nil {
		profile.SessionStartTime = cloneTime(p.SessionStartTime)
	}
}

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time {
	return &t
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
