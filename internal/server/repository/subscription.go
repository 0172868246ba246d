package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adgate/internal/database"
	"adgate/internal/types"
)

// subscriptionRepository represents push subscription repository implementation
type subscriptionRepository struct {
	db     database.Interface
	logger *zap.Logger
}

// NewSubscriptionRepository creates new push subscription repository
func NewSubscriptionRepository(db database.Interface, logger *zap.Logger) SubscriptionStore {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// SaveSubscription registers or refreshes a subscription for (user, endpoint)
func (r *subscriptionRepository) SaveSubscription(ctx context.Context, sub *types.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO push_subscriptions (
                id, user_id, endpoint, p256dh, auth, created_at
            ) VALUES (?, ?, ?, ?, ?, ?) `
	switch r.db.Dialect() {
	case database.DialectMySQL:
		query += `ON DUPLICATE KEY UPDATE
                p256dh = VALUES(p256dh),
                auth = VALUES(auth)`
	default:
		query += `ON CONFLICT (user_id, endpoint) DO UPDATE SET
                p256dh = EXCLUDED.p256dh,
                auth = EXCLUDED.auth`
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		uuid.NewString(), sub.UserID, sub.Endpoint,
		sub.P256dh, sub.Auth, sub.CreatedAt.UTC())
	if err != nil {
		return database.NewError(database.CodeQuery, "failed to save subscription", "subscription.save", err)
	}

	return nil
}

// ListSubscriptions returns the subscriptions of a user, oldest first
func (r *subscriptionRepository) ListSubscriptions(ctx context.Context, userID string) ([]*types.PushSubscription, error) {
	query := r.db.Rebind(`
        SELECT user_id, endpoint, p256dh, auth, created_at
        FROM push_subscriptions
        WHERE user_id = ?
        ORDER BY created_at ASC`)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, database.NewError(database.CodeQuery, "failed to list subscriptions", "subscription.list", err)
	}
	defer rows.Close()

	var subs []*types.PushSubscription
	for rows.Next() {
		var s types.PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		subs = append(subs, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}
