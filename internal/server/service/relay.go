package service

import (
	"context"
	"fmt"

	"adgate/internal/notify"
	"adgate/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendEmail relays msg through the configured email provider
func (s *Service) SendEmail(ctx context.Context, msg *types.EmailMessage) (*types.EmailResult, error) {
	if s.email == nil {
		return nil, ErrEmailNotConfigured
	}

	id, err := s.email.Send(ctx, msg)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.String("provider", s.email.Name()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Email sent", zap.String("provider", s.email.Name()), zap.String("id", id))
	s.publish(notify.EventEmailSent, "", map[string]any{
		"id":       id,
		"provider": s.email.Name(),
		"subject":  msg.Subject,
	})

	return &types.EmailResult{
		Success: true,
		ID:      id,
		Message: "Email sent successfully",
	}, nil
}

// SendPush records a push notification for a subscribed user. A user without
// a subscription gets an unsuccessful result, not an error.
func (s *Service) SendPush(ctx context.Context, req *types.PushRequest) (*types.PushResult, error) {
	subs, err := s.stores.Subscriptions.ListSubscriptions(ctx, req.UserID)
	if err != nil {
		s.logger.Error("Failed to load push subscriptions", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return &types.PushResult{
			Success: false,
			Message: "User has no push subscription",
		}, nil
	}

	record := &types.NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		URL:       req.Type.DeepLink(),
		Metadata:  req.Metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.stores.Notifications.SaveNotification(ctx, record); err != nil {
		s.logger.Error("Failed to save notification", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, fmt.Errorf("save notification: %w", err)
	}

	s.publish(notify.EventNotificationCreated, req.UserID, map[string]any{
		"notification":  record,
		"subscriptions": len(subs),
	})

	return &types.PushResult{
		Success:        true,
		Message:        "Push notification sent",
		NotificationID: record.ID,
	}, nil
}

// RegisterSubscription stores or refreshes a browser push subscription
func (s *Service) RegisterSubscription(ctx context.Context, sub *types.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	if err := s.stores.Subscriptions.SaveSubscription(ctx, sub); err != nil {
		s.logger.Error("Failed to save push subscription", zap.String("user_id", sub.UserID), zap.Error(err))
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// ListNotifications returns the latest notifications of userID, newest first
func (s *Service) ListNotifications(ctx context.Context, userID string, limit int) ([]*types.NotificationRecord, error) {
	records, err := s.stores.Notifications.ListNotifications(ctx, userID, limit)
	if err != nil {
		s.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return records, nil
}
