package storage

import (
	"omega/internal/models"
	"time"
)

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// toUnixNano converts a timestamp to the integer form stored by SQLite.
func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// fromUnixNano converts a stored SQLite integer back to a UTC timestamp.
func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// scanSQLitePlan reads a plan row with integer timestamps in column order
// user_id, label, quota, expires_at, created_at, updated_at.
func scanSQLitePlan(row rowScanner) (*models.UserPlan, error) {
	var (
		plan                           models.UserPlan
		expiresAt, createdAt, updateAt int64
	)
	if err := row.Scan(&plan.UserID, &plan.Label, &plan.Quota, &expiresAt, &createdAt, &updateAt); err != nil {
		return nil, err
	}
	plan.ExpiresAt = fromUnixNano(expiresAt)
	plan.CreatedAt = fromUnixNano(createdAt)
	plan.UpdatedAt = fromUnixNano(updateAt)
	return &plan, nil
}

// scanPostgresPlan reads a plan row with TIMESTAMPTZ columns in the same
// column order as scanSQLitePlan.
func scanPostgresPlan(row rowScanner) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := row.Scan(&plan.UserID, &plan.Label, &plan.Quota, &plan.ExpiresAt, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	plan.ExpiresAt = plan.ExpiresAt.UTC()
	plan.CreatedAt = plan.CreatedAt.UTC()
	plan.UpdatedAt = plan.UpdatedAt.UTC()
	return &plan, nil
}

// classifyMiss resolves why a conditional quota update touched no row.
// A nil plan means the user has none. A plan that still evaluates active was
// regranted between the update and the lookup, so the caller should retry.
func classifyMiss(plan *models.UserPlan, now time.Time) (models.PlanStatus, bool) {
	status := plan.StatusAt(now)
	return status, status == models.PlanStatusActive
}
