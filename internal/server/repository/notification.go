package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adgate/internal/database"
	"adgate/internal/types"
)

// DefaultNotificationLimit caps ListNotifications when no limit is given
const DefaultNotificationLimit = 50

// notificationRepository represents notification repository implementation
type notificationRepository struct {
	db     database.Interface
	logger *zap.Logger
}

// NewNotificationRepository creates new notification repository
func NewNotificationRepository(db database.Interface, logger *zap.Logger) NotificationStore {
	return &notificationRepository{
		db:     db,
		logger: logger,
	}
}

// SaveNotification inserts n, assigning an id and creation time when missing
func (r *notificationRepository) SaveNotification(ctx context.Context, n *types.NotificationRecord) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var metadata any
	if len(n.Metadata) > 0 {
		raw, err := json.Marshal(n.Metadata)
		if err != nil {
			return database.NewError(database.CodeEncode, "failed to marshal metadata", "notification.save", err)
		}
		metadata = string(raw)
	}

	query := r.db.Rebind(`
        INSERT INTO notifications (
            id, user_id, title, message, type,
            url, metadata, is_read, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type),
		n.URL, metadata, n.Read, n.CreatedAt.UTC())
	if err != nil {
		return database.NewError(database.CodeQuery, "failed to save notification", "notification.save", err)
	}

	return nil
}

// ListNotifications returns the newest notifications of a user first
func (r *notificationRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]*types.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	qb := database.NewQueryBuilder(r.db.Dialect())
	qb.Select("id", "user_id", "title", "message", "type", "url", "metadata", "is_read", "created_at")
	qb.From("notifications")
	qb.Where("user_id = ?", userID)
	qb.OrderBy("created_at DESC")
	qb.Limit(limit)

	rows, err := r.db.QueryContext(ctx, qb.SQL(), qb.Args()...)
	if err != nil {
		return nil, database.NewError(database.CodeQuery, "failed to list notifications", "notification.list", err)
	}
	defer rows.Close()

	var records []*types.NotificationRecord
	for rows.Next() {
		var (
			n        types.NotificationRecord
			typ      string
			metadata sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ,
			&n.URL, &metadata, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = types.NotificationType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
				r.logger.Warn("Skipping malformed notification metadata",
					zap.String("id", n.ID), zap.Error(err))
			}
		}
		records = append(records, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return records, nil
}
