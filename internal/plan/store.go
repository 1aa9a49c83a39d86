// Package plan implements the paid plan and quota bookkeeping on top of a
// storage backend.
package plan

import (
	"context"
	"errors"
	"fmt"
	"omega/internal/models"
	"omega/internal/storage"
	"time"
)

var (
	// ErrInvalidGrant is returned when a grant has no user, a negative quota
	// or a non-positive duration.
	ErrInvalidGrant = errors.New("invalid plan grant")

	// ErrNotActive is returned by Consume when the plan cannot be spent.
	ErrNotActive = errors.New("plan is not active")
)

// Store grants, consults and spends user plans.
type Store struct {
	storage storage.Storage
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a plan store backed by the given storage.
func NewStore(s storage.Storage, opts ...Option) *Store {
	store := &Store{
		storage: s,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Grant creates or overwrites the plan for userID. Quota does not stack with
// a previous plan.
func (s *Store) Grant(ctx context.Context, userID, label string, quota int, duration time.Duration) (*models.UserPlan, error) {
	userID = models.NormalizeUserID(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidGrant)
	}
	if quota < 0 {
		return nil, fmt.Errorf("%w: quota must not be negative", ErrInvalidGrant)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidGrant)
	}

	plan := models.NewUserPlan(userID, label, quota, duration, s.now())
	if err := s.storage.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to grant plan to %s: %w", userID, err)
	}
	return plan, nil
}

// Consult reports the status of the user's plan without spending quota.
func (s *Store) Consult(ctx context.Context, userID string) (models.PlanStatus, *models.UserPlan, error) {
	plan, err := s.storage.GetPlan(ctx, models.NormalizeUserID(userID))
	if errors.Is(err, storage.ErrPlanNotFound) {
		return models.PlanStatusNone, nil, nil
	}
	if err != nil {
		return models.PlanStatusNone, nil, err
	}
	return plan.StatusAt(s.now()), plan, nil
}

// Consume spends one unit of quota. It fails with ErrNotActive when the plan
// is missing, expired or exhausted, leaving the stored quota untouched.
func (s *Store) Consume(ctx context.Context, userID string) (*models.UserPlan, error) {
	status, plan, err := s.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != models.PlanStatusActive {
		return plan, fmt.Errorf("%w: %s", ErrNotActive, status)
	}
	return plan, nil
}

// Acquire consults and spends in one atomic step. Expired and exhausted
// plans are reported through the status.
func (s *Store) Acquire(ctx context.Context, userID string) (models.PlanStatus, *models.UserPlan, error) {
	return s.storage.ConsumeQuota(ctx, models.NormalizeUserID(userID), s.now())
}

// Count returns the number of stored plans.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.storage.CountPlans(ctx)
}

// List returns every stored plan ordered by user ID.
func (s *Store) List(ctx context.Context) ([]*models.UserPlan, error) {
	return s.storage.ListPlans(ctx)
}

// Ping checks the backing storage.
func (s *Store) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}
