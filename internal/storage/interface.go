package storage

import (
	"context"
	"omega/internal/models"
	"time"
)

// Storage defines the interface for plan persistence. Implementations must be
// safe for concurrent use; ConsumeQuota must be atomic with respect to other
// calls for the same user so that quota is never spent twice.
type Storage interface {
	// GetPlan retrieves the plan for a user. Returns ErrPlanNotFound when the
	// user has none.
	GetPlan(ctx context.Context, userID string) (*models.UserPlan, error)

	// SavePlan stores a plan, replacing any existing plan for the same user
	SavePlan(ctx context.Context, plan *models.UserPlan) error

	// ConsumeQuota spends one unit of the user's quota if the plan is active
	// at now. It returns the plan status observed and, unless the status is
	// PlanStatusNone, the plan after the operation. Expired and exhausted
	// plans are reported through the status, not the error.
	ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error)

	// ListPlans returns all stored plans ordered by user ID
	ListPlans(ctx context.Context) ([]*models.UserPlan, error)

	// CountPlans returns the number of stored plans
	CountPlans(ctx context.Context) (int, error)

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// Pool settings for database backends; zero leaves the driver default
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}
