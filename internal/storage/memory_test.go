package storage

import (
	"context"
	"omega/internal/models"
	"testing"
	"time"
)

func TestMemoryStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		s, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
		if err != nil {
			t.Fatalf("NewMemoryStorage failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	s, _ := NewMemoryStorage(Config{})
	ctx := context.Background()

	plan := models.NewUserPlan("alice", "PRO", 3, time.Hour, suiteNow)
	if err := s.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}
	plan.Quota = 99

	got, err := s.GetPlan(ctx, "alice")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if got.Quota != 3 {
		t.Errorf("stored plan was mutated through caller pointer: quota=%d", got.Quota)
	}

	got.Quota = 0
	again, _ := s.GetPlan(ctx, "alice")
	if again.Quota != 3 {
		t.Errorf("stored plan was mutated through returned pointer: quota=%d", again.Quota)
	}
}
