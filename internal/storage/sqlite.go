package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"omega/internal/models"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const sqlitePlanColumns = `user_id, label, quota, expires_at, created_at, updated_at`

// consumeRetries bounds how often ConsumeQuota retries when a concurrent
// grant lands between the conditional update and the follow-up lookup.
const consumeRetries = 3

// SQLiteStorage implements the Storage interface on a single SQLite file
// using the pure-Go modernc driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database file and applies pending migrations
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer and ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// GetPlan retrieves the plan for a user
func (ss *SQLiteStorage) GetPlan(ctx context.Context, userID string) (*models.UserPlan, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT `+sqlitePlanColumns+` FROM user_plans WHERE user_id = ?`, userID)

	plan, err := scanSQLitePlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrPlanNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// SavePlan stores a plan, overwriting any existing row for the user
func (ss *SQLiteStorage) SavePlan(ctx context.Context, plan *models.UserPlan) error {
	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO user_plans (`+sqlitePlanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			label = excluded.label,
			quota = excluded.quota,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		plan.UserID, plan.Label, plan.Quota,
		toUnixNano(plan.ExpiresAt), toUnixNano(plan.CreatedAt), toUnixNano(plan.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ConsumeQuota decrements quota with a single conditional UPDATE so that
// concurrent callers can never take the count below zero.
func (ss *SQLiteStorage) ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error) {
	for attempt := 0; attempt < consumeRetries; attempt++ {
		row := ss.db.QueryRowContext(ctx, `
			UPDATE user_plans SET quota = quota - 1, updated_at = ?
			WHERE user_id = ? AND quota > 0 AND expires_at >= ?
			RETURNING `+sqlitePlanColumns,
			toUnixNano(now), userID, toUnixNano(now))

		plan, err := scanSQLitePlan(row)
		if err == nil {
			return models.PlanStatusActive, plan, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.PlanStatusNone, nil, fmt.Errorf("failed to consume quota: %w", err)
		}

		plan, err = ss.GetPlan(ctx, userID)
		if errors.Is(err, ErrPlanNotFound) {
			return models.PlanStatusNone, nil, nil
		}
		if err != nil {
			return models.PlanStatusNone, nil, err
		}
		if status, retry := classifyMiss(plan, now); !retry {
			return status, plan, nil
		}
	}
	return models.PlanStatusNone, nil, fmt.Errorf("failed to consume quota for %s: plan changed concurrently", userID)
}

// ListPlans returns all plans ordered by user ID
func (ss *SQLiteStorage) ListPlans(ctx context.Context) ([]*models.UserPlan, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT `+sqlitePlanColumns+` FROM user_plans ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*models.UserPlan, 0)
	for rows.Next() {
		plan, err := scanSQLitePlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// CountPlans returns the number of stored plans
func (ss *SQLiteStorage) CountPlans(ctx context.Context) (int, error) {
	var count int
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_plans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return count, nil
}

// Ping verifies the database connection
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
