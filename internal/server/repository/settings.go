package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"adgate/internal/database"
	"adgate/internal/types"
)

// settingsRepository stores settings as JSON values keyed by name
type settingsRepository struct {
	db     database.Interface
	logger *zap.Logger
}

// NewSettingsRepository creates new settings repository
func NewSettingsRepository(db database.Interface, logger *zap.Logger) SettingsStore {
	return &settingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetFrequencySettings returns the saved settings or the defaults
func (r *settingsRepository) GetFrequencySettings(ctx context.Context) (types.FrequencySettings, error) {
	query := r.db.Rebind(`SELECT setting_value FROM ad_settings WHERE setting_key = ?`)

	var raw string
	err := r.db.QueryRowContext(ctx, query, types.SettingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DefaultFrequencySettings(), nil
	}
	if err != nil {
		return types.FrequencySettings{}, database.NewError(database.CodeScan, "failed to get settings", "settings.get", err)
	}

	settings := types.DefaultFrequencySettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return types.FrequencySettings{}, database.NewError(database.CodeEncode, "malformed settings value", "settings.get", err)
	}
	if err := settings.Validate(); err != nil {
		r.logger.Warn("Stored frequency settings are invalid, using defaults", zap.Error(err))
		return types.DefaultFrequencySettings(), nil
	}

	return settings, nil
}

// SaveFrequencySettings upserts the settings record
func (r *settingsRepository) SaveFrequencySettings(ctx context.Context, settings types.FrequencySettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	value, err := json.Marshal(settings)
	if err != nil {
		return database.NewError(database.CodeEncode, "failed to marshal settings", "settings.save", err)
	}

	query := `INSERT INTO ad_settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?) `
	switch r.db.Dialect() {
	case database.DialectMySQL:
		query += `ON DUPLICATE KEY UPDATE
                setting_value = VALUES(setting_value),
                updated_at = VALUES(updated_at)`
	default:
		query += `ON CONFLICT (setting_key) DO UPDATE SET
                setting_value = EXCLUDED.setting_value,
                updated_at = EXCLUDED.updated_at`
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), types.SettingsKey, string(value), time.Now().UTC()); err != nil {
		return database.NewError(database.CodeQuery, "failed to save settings", "settings.save", err)
	}

	return nil
}
