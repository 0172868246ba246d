package repository

import (
	"context"

	"adgate/internal/types"
)

// ModifyFunc receives the current profile and returns the patch to write,
// or nil to leave it unchanged
type ModifyFunc = func(p *types.Profile) *types.ProfilePatch

// ProfileStore persists per-user ad state
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*types.Profile, error)
	// Modify is an atomic read-modify-write against the authoritative
	// store and returns the profile as written
	Modify(ctx context.Context, userID string, fn ModifyFunc) (*types.Profile, error)
	Create(ctx context.Context, profile *types.Profile) error
	ResetDailyCounters(ctx context.Context) (int64, error)
}

// SettingsStore persists the process-wide frequency settings
type SettingsStore interface {
	// GetFrequencySettings returns the defaults when nothing was saved
	GetFrequencySettings(ctx context.Context) (types.FrequencySettings, error)
	SaveFrequencySettings(ctx context.Context, settings types.FrequencySettings) error
}

// SubscriptionStore persists browser push subscriptions
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *types.PushSubscription) error
	ListSubscriptions(ctx context.Context, userID string) ([]*types.PushSubscription, error)
}

// NotificationStore persists relayed push notifications
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *types.NotificationRecord) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*types.NotificationRecord, error)
}

// Store bundles every store the service needs
type Store interface {
	ProfileStore
	SettingsStore
	SubscriptionStore
	NotificationStore
}

// Stores groups independently provided stores
type Stores struct {
	Profiles      ProfileStore
	Settings      SettingsStore
	Subscriptions SubscriptionStore
	Notifications NotificationStore
}
