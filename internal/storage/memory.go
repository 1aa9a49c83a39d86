package storage

import (
	"context"
	"fmt"
	"omega/internal/models"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// Plans are lost on restart; a single mutex makes ConsumeQuota atomic.
type MemoryStorage struct {
	mu    sync.RWMutex
	plans map[string]*models.UserPlan
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		plans: make(map[string]*models.UserPlan),
	}, nil
}

// GetPlan retrieves the plan for a user
func (m *MemoryStorage) GetPlan(ctx context.Context, userID string) (*models.UserPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, exists := m.plans[userID]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, ErrPlanNotFound)
	}

	// Return a copy
	planCopy := *plan
	return &planCopy, nil
}

// SavePlan stores or replaces a plan
func (m *MemoryStorage) SavePlan(ctx context.Context, plan *models.UserPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy to prevent external modification
	planCopy := *plan
	m.plans[plan.UserID] = &planCopy

	return nil
}

// ConsumeQuota spends one unit of quota under the write lock
func (m *MemoryStorage) ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, exists := m.plans[userID]
	if !exists {
		return models.PlanStatusNone, nil, nil
	}

	status := plan.StatusAt(now)
	if status == models.PlanStatusActive {
		plan.Quota--
		plan.UpdatedAt = now.UTC()
	}

	planCopy := *plan
	return status, &planCopy, nil
}

// ListPlans returns all plans ordered by user ID
func (m *MemoryStorage) ListPlans(ctx context.Context) ([]*models.UserPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plans := make([]*models.UserPlan, 0, len(m.plans))
	for _, plan := range m.plans {
		planCopy := *plan
		plans = append(plans, &planCopy)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].UserID < plans[j].UserID
	})

	return plans, nil
}

// CountPlans returns the number of stored plans
func (m *MemoryStorage) CountPlans(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plans), nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
