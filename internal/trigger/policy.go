// Package trigger decides when contextual ads (after comments, after a
// stretch of session time, before posting) should be offered to a user.
package trigger

import (
	"time"

	"adgate/internal/types"
)

const (
	// CommentsBeforeAd is the comment count that arms the comment ad
	CommentsBeforeAd = 5
	// MinutesBeforeAd is the session length that arms the time ad
	MinutesBeforeAd = 5
	// PollInterval is how often a running session re-reads the profile
	PollInterval = 60 * time.Second
)

// ShouldShowCommentAd reports whether enough comments were written since the last reset
func ShouldShowCommentAd(p *types.Profile) bool {
	return p != nil && p.CommentCount >= CommentsBeforeAd
}

// ShouldShowTimeAd reports whether the session has been running long enough
func ShouldShowTimeAd(now time.Time, p *types.Profile) bool {
	if p == nil || p.SessionStartTime == nil {
		return false
	}
	return now.Sub(*p.SessionStartTime) >= MinutesBeforeAd*time.Minute
}

// ShouldShowPostAd gates posting behind an ad for premium accounts.
// Premium users see the post ad; free users are limited elsewhere.
func ShouldShowPostAd(p *types.Profile) bool {
	return p != nil && p.IsPremium
}

// Evaluate computes all trigger flags for a snapshot
func Evaluate(now time.Time, p *types.Profile) types.TriggerFlags {
	if p == nil {
		return types.TriggerFlags{}
	}
	return types.TriggerFlags{
		CommentAd: ShouldShowCommentAd(p),
		TimeAd:    ShouldShowTimeAd(now, p),
		PostAd:    ShouldShowPostAd(p),
	}
}

// risen reports whether any flag went from false to true
func risen(prev, next types.TriggerFlags) bool {
	return (!prev.CommentAd && next.CommentAd) ||
		(!prev.TimeAd && next.TimeAd) ||
		(!prev.PostAd && next.PostAd)
}
