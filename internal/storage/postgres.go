package storage

import (
	"context"
	"errors"
	"fmt"
	"omega/internal/models"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const postgresPlanColumns = `user_id, label, quota, expires_at, created_at, updated_at`

// PostgresStorage implements the Storage interface using PostgreSQL through a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects a pgx pool and applies pending migrations.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Closing the database/sql view leaves the pool open
	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{pool: pool}, nil
}

// GetPlan retrieves the plan for a user.
func (ps *PostgresStorage) GetPlan(ctx context.Context, userID string) (*models.UserPlan, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT `+postgresPlanColumns+` FROM user_plans WHERE user_id = $1`, userID)

	plan, err := scanPostgresPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrPlanNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// SavePlan stores or replaces a plan (upsert pattern).
func (ps *PostgresStorage) SavePlan(ctx context.Context, plan *models.UserPlan) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO user_plans (`+postgresPlanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			label = EXCLUDED.label,
			quota = EXCLUDED.quota,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		plan.UserID, plan.Label, plan.Quota,
		plan.ExpiresAt.UTC(), plan.CreatedAt.UTC(), plan.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ConsumeQuota decrements quota with a conditional UPDATE ... RETURNING.
// Row-level locking makes concurrent decrements safe.
func (ps *PostgresStorage) ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error) {
	now = now.UTC()
	for attempt := 0; attempt < consumeRetries; attempt++ {
		row := ps.pool.QueryRow(ctx, `
			UPDATE user_plans SET quota = quota - 1, updated_at = $1
			WHERE user_id = $2 AND quota > 0 AND expires_at >= $1
			RETURNING `+postgresPlanColumns,
			now, userID)

		plan, err := scanPostgresPlan(row)
		if err == nil {
			return models.PlanStatusActive, plan, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.PlanStatusNone, nil, fmt.Errorf("failed to consume quota: %w", err)
		}

		plan, err = ps.GetPlan(ctx, userID)
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

// ListPlans returns all plans ordered by user ID.
func (ps *PostgresStorage) ListPlans(ctx context.Context) ([]*models.UserPlan, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT `+postgresPlanColumns+` FROM user_plans ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*models.UserPlan, 0)
	for rows.Next() {
		plan, err := scanPostgresPlan(rows)
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

// CountPlans returns the number of stored plans.
func (ps *PostgresStorage) CountPlans(ctx context.Context) (int, error) {
	var count int
	if err := ps.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_plans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return count, nil
}

// Ping verifies the pool can reach the server.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
