package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adgate/internal/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps every record in process memory
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]*types.Profile
	settings      *types.FrequencySettings
	subscriptions map[string][]*types.PushSubscription
	notifications map[string][]*types.NotificationRecord
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]*types.Profile),
		subscriptions: make(map[string][]*types.PushSubscription),
		notifications: make(map[string][]*types.NotificationRecord),
	}
}

// Get returns a copy of the profile
func (m *MemoryStore) Get(_ context.Context, userID string) (*types.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, types.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// Modify applies fn's patch under the store lock
func (m *MemoryStore) Modify(_ context.Context, userID string, fn ModifyFunc) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, types.ErrProfileNotFound
	}
	if patch := fn(p.Clone()); patch != nil {
		patch.Apply(p)
	}
	return p.Clone(), nil
}

// Create stores a copy of the profile, replacing any previous one
func (m *MemoryStore) Create(_ context.Context, profile *types.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[profile.UserID] = profile.Clone()
	return nil
}

// ResetDailyCounters zeroes ads_shown_today for every profile
func (m *MemoryStore) ResetDailyCounters(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, p := range m.profiles {
		if p.AdsShownToday > 0 {
			p.AdsShownToday = 0
			n++
		}
	}
	return n, nil
}

// GetFrequencySettings returns the saved settings or the defaults
func (m *MemoryStore) GetFrequencySettings(_ context.Context) (types.FrequencySettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return types.DefaultFrequencySettings(), nil
	}
	return *m.settings, nil
}

// SaveFrequencySettings replaces the settings
func (m *MemoryStore) SaveFrequencySettings(_ context.Context, settings types.FrequencySettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = &settings
	return nil
}

// SaveSubscription registers or refreshes a subscription for (user, endpoint)
func (m *MemoryStore) SaveSubscription(_ context.Context, sub *types.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	c := *sub
	subs := m.subscriptions[sub.UserID]
	for i, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			c.CreatedAt = existing.CreatedAt
			subs[i] = &c
			return nil
		}
	}
	m.subscriptions[sub.UserID] = append(subs, &c)
	return nil
}

// ListSubscriptions returns the subscriptions of a user, oldest first
func (m *MemoryStore) ListSubscriptions(_ context.Context, userID string) ([]*types.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*types.PushSubscription, 0, len(m.subscriptions[userID]))
	for _, s := range m.subscriptions[userID] {
		c := *s
		subs = append(subs, &c)
	}
	return subs, nil
}

// SaveNotification stores n, assigning an id and creation time when missing
func (m *MemoryStore) SaveNotification(_ context.Context, n *types.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	c := *n
	m.notifications[n.UserID] = append(m.notifications[n.UserID], &c)
	return nil
}

// ListNotifications returns the newest notifications of a user first
func (m *MemoryStore) ListNotifications(_ context.Context, userID string, limit int) ([]*types.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	m.mu.RLock()
	records := make([]*types.NotificationRecord, 0, len(m.notifications[userID]))
	for _, n := range m.notifications[userID] {
		c := *n
		records = append(records, &c)
	}
	m.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
