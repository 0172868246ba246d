package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"adgate/internal/database"
	"adgate/internal/types"
)

const profileColumns = `user_id, is_premium, last_ad_shown_at, ad_hour_reset_at,
            ads_shown_this_hour, ads_shown_today, comment_count, session_start_time`

// profileRepository represents profile repository implementation
type profileRepository struct {
	db     database.Interface
	logger *zap.Logger
}

// NewProfileRepository creates new profile repository
func NewProfileRepository(db database.Interface, logger *zap.Logger) ProfileStore {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns a snapshot of the profile
func (r *profileRepository) Get(ctx context.Context, userID string) (*types.Profile, error) {
	query := r.db.Rebind(`SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`)
	return scanProfile(r.db.QueryRowContext(ctx, query, userID))
}

// Modify reads the row and writes fn's patch in one transaction
func (r *profileRepository) Modify(ctx context.Context, userID string, fn ModifyFunc) (*types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`
	if r.db.Dialect() != database.DialectSQLite {
		query += ` FOR UPDATE`
	}
	query = r.db.Rebind(query)

	var p *types.Profile
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRowContext(ctx, query, userID))
		if err != nil {
			return err
		}

		patch := fn(p.Clone())
		if patch == nil || patch.IsEmpty() {
			return nil
		}

		update, args := updateProfileQuery(r.db, userID, patch)
		if _, err := tx.ExecContext(ctx, update, args...); err != nil {
			return database.NewError(database.CodeQuery, "failed to update profile", "profile.modify", err)
		}
		patch.Apply(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProfile(row *sql.Row) (*types.Profile, error) {
	var (
		p                                  types.Profile
		lastShown, hourReset, sessionStart sql.NullTime
	)
	err := row.Scan(
		&p.UserID, &p.IsPremium, &lastShown, &hourReset,
		&p.AdsShownThisHour, &p.AdsShownToday, &p.CommentCount, &sessionStart,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrProfileNotFound
	}
	if err != nil {
		return nil, database.NewError(database.CodeScan, "failed to get profile", "profile.get", err)
	}

	p.LastAdShownAt = nullTime(lastShown)
	p.AdHourResetAt = nullTime(hourReset)
	p.SessionStartTime = nullTime(sessionStart)
	return &p, nil
}

func updateProfileQuery(db database.Interface, userID string, patch *types.ProfilePatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.LastAdShownAt != nil {
		add("last_ad_shown_at", patch.LastAdShownAt.UTC())
	}
	if patch.AdHourResetAt != nil {
		add("ad_hour_reset_at", patch.AdHourResetAt.UTC())
	}
	if patch.AdsShownThisHour != nil {
		add("ads_shown_this_hour", *patch.AdsShownThisHour)
	}
	if patch.AdsShownToday != nil {
		add("ads_shown_today", *patch.AdsShownToday)
	}
	if patch.CommentCount != nil {
		add("comment_count", *patch.CommentCount)
	}
	if patch.SessionStartTime != nil {
		add("session_start_time", patch.SessionStartTime.UTC())
	}
	add("updated_at", time.Now().UTC())
	args = append(args, userID)

	return db.Rebind(`UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`), args
}

// Create inserts a new profile
func (r *profileRepository) Create(ctx context.Context, p *types.Profile) error {
	query := r.db.Rebind(`
        INSERT INTO profiles (
            ` + profileColumns + `,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.IsPremium,
		utcOrNil(p.LastAdShownAt), utcOrNil(p.AdHourResetAt),
		p.AdsShownThisHour, p.AdsShownToday, p.CommentCount,
		utcOrNil(p.SessionStartTime),
		now, now,
	)
	if err != nil {
		return database.NewError(database.CodeQuery, "failed to create profile", "profile.create", err)
	}

	return nil
}

// ResetDailyCounters zeroes ads_shown_today for every profile
func (r *profileRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	query := r.db.Rebind(`UPDATE profiles SET ads_shown_today = 0, updated_at = ? WHERE ads_shown_today > 0`)

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, database.NewError(database.CodeQuery, "failed to reset daily counters", "profile.reset_daily", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	r.logger.Info("Daily ad counters reset", zap.Int64("profiles", rows))
	return rows, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
