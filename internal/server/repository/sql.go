package repository

import (
	"go.uber.org/zap"

	"adgate/internal/database"
)

// NewSQLStores creates every store on top of db
func NewSQLStores(db database.Interface, logger *zap.Logger) Stores {
	return Stores{
		Profiles:      NewProfileRepository(db, logger.Named("profiles")),
		Settings:      NewSettingsRepository(db, logger.Named("settings")),
		Subscriptions: NewSubscriptionRepository(db, logger.Named("subscriptions")),
		Notifications: NewNotificationRepository(db, logger.Named("notifications")),
	}
}

// NewMemoryStores creates every store on one MemoryStore
func NewMemoryStores() Stores {
	m := NewMemoryStore()
	return Stores{
		Profiles:      m,
		Settings:      m,
		Subscriptions: m,
		Notifications: m,
	}
}
