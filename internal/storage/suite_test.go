package storage

import (
	"context"
	"errors"
	"omega/internal/models"
	"sync"
	"testing"
	"time"
)

var suiteNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// runStorageSuite exercises behaviour every backend must share. newStorage
// must return an empty store.
func runStorageSuite(t *testing.T, newStorage func(t *testing.T) Storage) {
	ctx := context.Background()

	t.Run("GetPlan missing", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.GetPlan(ctx, "nobody@example.com")
		if !errors.Is(err, ErrPlanNotFound) {
			t.Fatalf("expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("SavePlan round trip", func(t *testing.T) {
		s := newStorage(t)
		plan := models.NewUserPlan("alice@example.com", "PRO", 300, 30*24*time.Hour, suiteNow)
		if err := s.SavePlan(ctx, plan); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}

		got, err := s.GetPlan(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetPlan failed: %v", err)
		}
		if got.Label != "PRO" || got.Quota != 300 {
			t.Errorf("unexpected plan: %+v", got)
		}
		if !got.ExpiresAt.Equal(plan.ExpiresAt) {
			t.Errorf("expires_at = %v, want %v", got.ExpiresAt, plan.ExpiresAt)
		}
	})

	t.Run("SavePlan overwrites", func(t *testing.T) {
		s := newStorage(t)
		if err := s.SavePlan(ctx, models.NewUserPlan("bob", "BASIC", 50, time.Hour, suiteNow)); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}
		if err := s.SavePlan(ctx, models.NewUserPlan("bob", "VIP", 1000, 2*time.Hour, suiteNow)); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}

		got, err := s.GetPlan(ctx, "bob")
		if err != nil {
			t.Fatalf("GetPlan failed: %v", err)
		}
		if got.Label != "VIP" || got.Quota != 1000 {
			t.Errorf("plan not overwritten: %+v", got)
		}

		count, err := s.CountPlans(ctx)
		if err != nil {
			t.Fatalf("CountPlans failed: %v", err)
		}
		if count != 1 {
			t.Errorf("CountPlans = %d, want 1", count)
		}
	})

	t.Run("ConsumeQuota no plan", func(t *testing.T) {
		s := newStorage(t)
		status, plan, err := s.ConsumeQuota(ctx, "ghost", suiteNow)
		if err != nil {
			t.Fatalf("ConsumeQuota failed: %v", err)
		}
		if status != models.PlanStatusNone || plan != nil {
			t.Errorf("expected none/nil, got %s/%+v", status, plan)
		}
	})

	t.Run("ConsumeQuota decrements until exhausted", func(t *testing.T) {
		s := newStorage(t)
		if err := s.SavePlan(ctx, models.NewUserPlan("carol", "BASIC", 2, time.Hour, suiteNow)); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}

		for want := 1; want >= 0; want-- {
			status, plan, err := s.ConsumeQuota(ctx, "carol", suiteNow.Add(time.Minute))
			if err != nil {
				t.Fatalf("ConsumeQuota failed: %v", err)
			}
			if status != models.PlanStatusActive {
				t.Fatalf("status = %s, want active", status)
			}
			if plan.Quota != want {
				t.Errorf("quota = %d, want %d", plan.Quota, want)
			}
		}

		status, plan, err := s.ConsumeQuota(ctx, "carol", suiteNow.Add(time.Minute))
		if err != nil {
			t.Fatalf("ConsumeQuota failed: %v", err)
		}
		if status != models.PlanStatusExhausted {
			t.Errorf("status = %s, want exhausted", status)
		}
		if plan == nil || plan.Quota != 0 {
			t.Errorf("expected quota 0, got %+v", plan)
		}
	})

	t.Run("ConsumeQuota expired keeps quota", func(t *testing.T) {
		s := newStorage(t)
		if err := s.SavePlan(ctx, models.NewUserPlan("dave", "PRO", 10, time.Hour, suiteNow)); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}

		status, plan, err := s.ConsumeQuota(ctx, "dave", suiteNow.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("ConsumeQuota failed: %v", err)
		}
		if status != models.PlanStatusExpired {
			t.Errorf("status = %s, want expired", status)
		}
		if plan == nil || plan.Quota != 10 {
			t.Errorf("expired plan quota changed: %+v", plan)
		}
	})

	t.Run("ConsumeQuota concurrent", func(t *testing.T) {
		s := newStorage(t)
		const quota = 5
		if err := s.SavePlan(ctx, models.NewUserPlan("erin", "BASIC", quota, time.Hour, suiteNow)); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, _, err := s.ConsumeQuota(ctx, "erin", suiteNow)
				if err != nil {
					t.Errorf("ConsumeQuota failed: %v", err)
					return
				}
				if status == models.PlanStatusActive {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if admitted != quota {
			t.Errorf("admitted = %d, want %d", admitted, quota)
		}
	})

	t.Run("ListPlans ordered", func(t *testing.T) {
		s := newStorage(t)
		for _, id := range []string{"zed", "amy", "mike"} {
			if err := s.SavePlan(ctx, models.NewUserPlan(id, "BASIC", 1, time.Hour, suiteNow)); err != nil {
				t.Fatalf("SavePlan failed: %v", err)
			}
		}

		plans, err := s.ListPlans(ctx)
		if err != nil {
			t.Fatalf("ListPlans failed: %v", err)
		}
		if len(plans) != 3 {
			t.Fatalf("len = %d, want 3", len(plans))
		}
		if plans[0].UserID != "amy" || plans[1].UserID != "mike" || plans[2].UserID != "zed" {
			t.Errorf("unexpected order: %s %s %s", plans[0].UserID, plans[1].UserID, plans[2].UserID)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
