package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"adgate/internal/types"
)

// CachedProfileStore is a read-through redis cache in front of a ProfileStore.
// Writes go to the inner store and invalidate the cached entry. A reader that
// loaded before a write may still cache the older snapshot for up to ttl, so
// counter updates go through Modify, which always reads the inner store.
// Redis errors never fail a call; the inner store answers instead.
type CachedProfileStore struct {
	inner  ProfileStore
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedProfileStore wraps inner with a redis cache
func NewCachedProfileStore(inner ProfileStore, client redis.UniversalClient, ttl time.Duration, prefix string, logger *zap.Logger) *CachedProfileStore {
	return &CachedProfileStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

func (c *CachedProfileStore) key(userID string) string {
	return c.prefix + "profile:" + userID
}

// Get returns the cached snapshot or loads and caches it
func (c *CachedProfileStore) Get(ctx context.Context, userID string) (*types.Profile, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	switch {
	case err == nil:
		var p types.Profile
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("Dropping malformed cached profile", zap.String("user_id", userID))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Profile cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	p, err := c.inner.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
			c.logger.Warn("Profile cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return p, nil
}

// Modify bypasses the cache so the read half never sees a stale snapshot
func (c *CachedProfileStore) Modify(ctx context.Context, userID string, fn ModifyFunc) (*types.Profile, error) {
	p, err := c.inner.Modify(ctx, userID, fn)
	c.invalidate(ctx, userID)
	return p, err
}

// Create writes through and invalidates the cached snapshot
func (c *CachedProfileStore) Create(ctx context.Context, profile *types.Profile) error {
	err := c.inner.Create(ctx, profile)
	c.invalidate(ctx, profile.UserID)
	return err
}

// ResetDailyCounters resets the inner store and drops every cached profile
func (c *CachedProfileStore) ResetDailyCounters(ctx context.Context) (int64, error) {
	n, err := c.inner.ResetDailyCounters(ctx)
	if err != nil {
		return 0, err
	}

	iter := c.client.Scan(ctx, 0, c.prefix+"profile:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("Profile cache delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Profile cache scan failed", zap.Error(err))
	}
	return n, nil
}

func (c *CachedProfileStore) invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.logger.Warn("Profile cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
