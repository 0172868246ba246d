// Package adpolicy decides whether a user may see an ad now, and computes the
// counter updates that record an impression.
package adpolicy

import (
	"time"

	"adgate/internal/types"
)

// HourWindow is the length of the hourly counter window
const HourWindow = time.Hour

// Decide applies the frequency caps to a profile snapshot.
// Premium users bypass every cap. A missing or malformed snapshot is denied.
func Decide(now time.Time, profile *types.Profile, settings types.FrequencySettings) types.Decision {
	if profile == nil || profile.Malformed() {
		return types.Decision{CanShow: false}
	}

	if profile.IsPremium {
		return types.Decision{CanShow: true}
	}

	// Minimum spacing between two ads
	if profile.LastAdShownAt != nil {
		minGap := time.Duration(settings.MinSecondsBetweenAds) * time.Second
		elapsed := now.Sub(*profile.LastAdShownAt)
		if elapsed < minGap {
			return types.Decision{CanShow: false, WaitSeconds: ceilSeconds(minGap - elapsed)}
		}
	}

	// The hour window is over: the next record starts a fresh one, so a stale
	// counter at the cap does not block.
	if hourWindowElapsed(now, profile) {
		return types.Decision{CanShow: true}
	}

	if profile.AdsShownThisHour >= settings.MaxAdsPerHour {
		remaining := profile.AdHourResetAt.Add(HourWindow).Sub(now)
		return types.Decision{CanShow: false, WaitSeconds: clampSeconds(ceilSeconds(remaining), int(HourWindow/time.Second))}
	}

	// The daily counter resets at midnight; no wait is computed for it.
	if profile.AdsShownToday >= settings.MaxAdsPerDay {
		return types.Decision{CanShow: false}
	}

	return types.Decision{CanShow: true}
}

// RecordAdShown returns the patch that records an impression at now.
// It returns nil when there is no profile.
func RecordAdShown(now time.Time, profile *types.Profile) *types.ProfilePatch {
	if profile == nil {
		return nil
	}

	patch := &types.ProfilePatch{
		LastAdShownAt: types.TimePtr(now),
		AdsShownToday: types.IntPtr(profile.AdsShownToday + 1),
	}

	if hourWindowElapsed(now, profile) {
		patch.AdsShownThisHour = types.IntPtr(1)
		patch.AdHourResetAt = types.TimePtr(now)
	} else {
		patch.AdsShownThisHour = types.IntPtr(profile.AdsShownThisHour + 1)
	}

	return patch
}

// hourWindowElapsed reports whether the hourly counter is due for a reset
func hourWindowElapsed(now time.Time, profile *types.Profile) bool {
	return profile.AdHourResetAt == nil || now.Sub(*profile.AdHourResetAt) > HourWindow
}

// ceilSeconds rounds a positive duration up to whole seconds
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func clampSeconds(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
