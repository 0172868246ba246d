package service

import (
	"context"
	"errors"
	"fmt"

	"adgate/internal/adpolicy"
	"adgate/internal/adslot"
	"adgate/internal/types"

	"go.uber.org/zap"
)

// AdResult is the outcome of an attempt to show an ad
type AdResult struct {
	Decision types.Decision `json:"decision"`
	Slot     *adslot.Slot   `json:"slot,omitempty"`
}

// FrequencySettings returns the process-wide settings, re-reading the store
// at most once per refresh interval
func (s *Service) FrequencySettings(ctx context.Context) types.FrequencySettings {
	return s.settingsLoader.Call(ctx)
}

// loadSettings reads the store, keeping the last known settings on failure
func (s *Service) loadSettings(ctx context.Context) types.FrequencySettings {
	current := *s.settings.Load()

	settings, err := s.stores.Settings.GetFrequencySettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load frequency settings, keeping current", zap.Error(err))
		return current
	}
	if err := settings.Validate(); err != nil {
		s.logger.Warn("Ignoring invalid frequency settings", zap.Error(err))
		return current
	}

	s.settings.Store(&settings)
	return settings
}

// UpdateFrequencySettings saves settings and makes them effective immediately
func (s *Service) UpdateFrequencySettings(ctx context.Context, settings types.FrequencySettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidSettings, err)
	}
	if err := s.stores.Settings.SaveFrequencySettings(ctx, settings); err != nil {
		s.logger.Error("Failed to save frequency settings", zap.Error(err))
		return fmt.Errorf("save frequency settings: %w", err)
	}

	s.settings.Store(&settings)
	s.settingsLoader.Cancel()
	s.logger.Info("Frequency settings updated",
		zap.Int("max_ads_per_hour", settings.MaxAdsPerHour),
		zap.Int("max_ads_per_day", settings.MaxAdsPerDay),
		zap.Int("min_seconds_between_ads", settings.MinSecondsBetweenAds))
	return nil
}

// GetProfile returns the current snapshot of a user
func (s *Service) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	p, err := s.stores.Profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrProfileNotFound) {
			s.logger.Error("Failed to load profile", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// EnsureProfile returns the profile of userID, creating an empty one first
// when none exists. premium only applies to a newly created profile.
func (s *Service) EnsureProfile(ctx context.Context, userID string, premium bool) (*types.Profile, bool, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	p, err := s.stores.Profiles.Get(ctx, userID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, types.ErrProfileNotFound) {
		s.logger.Error("Failed to load profile", zap.String("user_id", userID), zap.Error(err))
		return nil, false, fmt.Errorf("load profile: %w", err)
	}

	p = &types.Profile{UserID: userID, IsPremium: premium}
	if err := s.stores.Profiles.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create profile", zap.String("user_id", userID), zap.Error(err))
		return nil, false, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("Profile created", zap.String("user_id", userID), zap.Bool("premium", premium))
	return p, true, nil
}

// Decide checks whether userID may see an ad now. The decision is a denial
// whenever an error is returned.
func (s *Service) Decide(ctx context.Context, userID string) (types.Decision, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return types.Decision{}, err
	}
	return adpolicy.Decide(s.now(), p, s.FrequencySettings(ctx)), nil
}

// RecordAdShown counts one impression for userID and returns the updated
// profile. Concurrent calls for the same user are applied one at a time in
// arrival order.
func (s *Service) RecordAdShown(ctx context.Context, userID string) (*types.Profile, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	p, err := s.stores.Profiles.Modify(ctx, userID, func(p *types.Profile) *types.ProfilePatch {
		return adpolicy.RecordAdShown(now, p)
	})
	if err != nil {
		if errors.Is(err, types.ErrProfileNotFound) {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		s.logger.Error("Failed to record ad impression", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("record ad shown: %w", err)
	}
	return p, nil
}

// ShowAd gates an ad for userID and, when allowed, loads a slot of format.
// A failed slot load is reported in the slot, not as an error.
func (s *Service) ShowAd(ctx context.Context, userID string, format adslot.Format) (*AdResult, error) {
	decision, err := s.Decide(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := &AdResult{Decision: decision}
	if !decision.CanShow {
		return result, nil
	}

	slot, err := s.slots.Load(ctx, format)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	if slot.Error != "" {
		s.logger.Warn("Ad slot failed to load",
			zap.String("user_id", userID),
			zap.String("format", string(format)))
	}
	result.Slot = slot
	return result, nil
}

// DismissAd records the impression of an ad the user has closed
func (s *Service) DismissAd(ctx context.Context, userID string) (*types.Profile, error) {
	return s.RecordAdShown(ctx, userID)
}

// ResetDailyCounters zeroes the daily impression count of every profile
func (s *Service) ResetDailyCounters(ctx context.Context) (int64, error) {
	n, err := s.stores.Profiles.ResetDailyCounters(ctx)
	if err != nil {
		s.logger.Error("Failed to reset daily counters", zap.Error(err))
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	s.logger.Info("Daily counters reset", zap.Int64("profiles", n))
	return n, nil
}
