package chat

import (
	"context"
	"errors"
	"fmt"
	"omega/internal/audit"
	"omega/internal/generate"
	"omega/internal/memory"
	"omega/internal/models"
	"omega/internal/plan"
	"omega/internal/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGenerator implements generate.Generator for testing
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) generate.Result {
	args := m.Called(ctx, prompt)
	return args.Get(0).(generate.Result)
}

func (m *MockGenerator) Configured() bool {
	return true
}

// failingStorage fails quota checks as a locked database would
type failingStorage struct {
	storage.MemoryStorage
}

func (f *failingStorage) ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error) {
	return models.PlanStatusNone, nil, errors.New("database is locked")
}

type fixture struct {
	service *Service
	memory  *memory.Store
	plans   *plan.Store
	audit   *audit.Log
	gen     *MockGenerator
	now     time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	backend, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	f := &fixture{
		now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		gen: &MockGenerator{},
	}
	clock := func() time.Time { return f.now }
	f.memory = memory.NewStore(3, time.Hour, memory.WithClock(clock))
	f.plans = plan.NewStore(backend, plan.WithClock(clock))
	f.audit = audit.NewLog(100)
	f.service = NewService(f.memory, f.plans, f.audit, f.gen, opts...)
	return f
}

func TestService_ChatWithoutPlan(t *testing.T) {
	f := newFixture(t, WithSystemInstruction("Be brief."))
	f.gen.On("Generate", mock.Anything, "Be brief.\n\nUser: hello").Return(generate.Ok("Hi!")).Once()

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "hello", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", resp.Result)

	mem, ok := f.memory.Get("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, mem.Messages)

	entries := f.audit.Tail(0)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditEventChat, entries[0].Event)
	assert.Equal(t, "alice", entries[0].Detail["user_id"])
	assert.NotContains(t, entries[0].Detail, "remaining")
	f.gen.AssertExpectations(t)
}

func TestService_ChatDefaultsToGuest(t *testing.T) {
	f := newFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generate.Ok("ok"))

	_, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "hi"})
	require.NoError(t, err)

	_, ok := f.memory.Get(models.GuestUserID)
	assert.True(t, ok)
}

func TestService_ChatEmptyPrompt(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "   ", UserID: "alice"})
	require.Error(t, err)

	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, models.ErrorCodeValidation, serviceErr.Code)
	assert.Equal(t, 400, serviceErr.StatusCode)
	assert.True(t, serviceErr.ClientFault())
	assert.Equal(t, 0, f.audit.Len())
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestService_ChatIncludesHistory(t *testing.T) {
	f := newFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generate.Ok("ok"))

	for _, prompt := range []string{"one", "two", "three", "four"} {
		_, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: prompt, UserID: "bob"})
		require.NoError(t, err)
	}

	last := f.gen.Calls[len(f.gen.Calls)-1].Arguments.String(1)
	assert.Equal(t, "Recent conversation:\n- two\n- three\n\nUser: four", last)

	mem, _ := f.memory.Get("bob")
	assert.Equal(t, []string{"two", "three", "four"}, mem.Messages)
}

func TestService_ChatSpendsQuota(t *testing.T) {
	f := newFixture(t)
	_, err := f.plans.Grant(context.Background(), "carol", "PRO", 2, time.Hour)
	require.NoError(t, err)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generate.Ok("ok"))

	_, err = f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "carol"})
	require.NoError(t, err)

	_, userPlan, err := f.plans.Consult(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, userPlan.Quota)
	assert.Equal(t, 1, f.audit.Tail(1)[0].Detail["remaining"])
}

func TestService_ChatQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	_, err := f.plans.Grant(context.Background(), "dave", "BASIC", 0, time.Hour)
	require.NoError(t, err)

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "dave"})
	require.NoError(t, err)
	assert.Equal(t, MessageQuotaExceeded, resp.Result)

	_, userPlan, _ := f.plans.Consult(context.Background(), "dave")
	assert.Equal(t, 0, userPlan.Quota)

	_, remembered := f.memory.Get("dave")
	assert.False(t, remembered)
	assert.Equal(t, models.AuditEventChatRejected, f.audit.Tail(1)[0].Event)
	assert.Equal(t, "exhausted", f.audit.Tail(1)[0].Detail["reason"])
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestService_ChatPlanExpired(t *testing.T) {
	f := newFixture(t)
	_, err := f.plans.Grant(context.Background(), "erin", "PRO", 10, time.Hour)
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Hour)

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "erin"})
	require.NoError(t, err)
	assert.Equal(t, MessagePlanExpired, resp.Result)

	_, userPlan, _ := f.plans.Consult(context.Background(), "erin")
	assert.Equal(t, 10, userPlan.Quota)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestService_ChatRequirePlan(t *testing.T) {
	f := newFixture(t, WithRequirePlan(true))

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "frank"})
	require.NoError(t, err)
	assert.Equal(t, MessageNoPlan, resp.Result)
	assert.Equal(t, "none", f.audit.Tail(1)[0].Detail["reason"])
}

func TestService_ChatGeneratorFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", generate.ErrNotConfigured, MessageNotConfigured},
		{"timeout", fmt.Errorf("%w: deadline", generate.ErrTimeout), MessageTimeout},
		{"upstream", fmt.Errorf("%w: 503", generate.ErrUpstream), MessageUnavailable},
		{"empty", generate.ErrEmptyResponse, MessageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gen.On("Generate", mock.Anything, mock.Anything).Return(generate.Failed(tt.err))

			resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "gina"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Result)
			assert.Equal(t, false, f.audit.Tail(1)[0].Detail["ok"])
		})
	}
}

func TestService_ChatStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.plans = plan.NewStore(&failingStorage{})
	f.service = NewService(f.memory, f.plans, f.audit, f.gen)

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "hank"})
	require.NoError(t, err)
	assert.Equal(t, MessagePlansDown, resp.Result)
	assert.NotContains(t, resp.Result, "database is locked")

	entries := f.audit.Tail(0)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditEventChatRejected, entries[0].Event)
	assert.Equal(t, "plan_unavailable", entries[0].Detail["reason"])
	assert.Equal(t, 0, f.memory.Len())
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestService_ChatUnconfiguredKeepsQuota(t *testing.T) {
	f := newFixture(t)
	f.service = NewService(f.memory, f.plans, f.audit, generate.Unconfigured{})
	_, err := f.plans.Grant(context.Background(), "kate", "PRO", 2, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "kate"})
		require.NoError(t, err)
		assert.Equal(t, MessageNotConfigured, resp.Result)
	}

	status, userPlan, err := f.plans.Consult(context.Background(), "kate")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusActive, status)
	assert.Equal(t, 2, userPlan.Quota)
	assert.Equal(t, 2, f.audit.Tail(1)[0].Detail["remaining"])
}

func TestService_ChatUnconfiguredStillRejectsExpired(t *testing.T) {
	f := newFixture(t)
	f.service = NewService(f.memory, f.plans, f.audit, generate.Unconfigured{})
	_, err := f.plans.Grant(context.Background(), "liam", "PRO", 5, time.Hour)
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Hour)

	resp, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "q", UserID: "liam"})
	require.NoError(t, err)
	assert.Equal(t, MessagePlanExpired, resp.Result)
	assert.Equal(t, 0, f.memory.Len())
}

func TestService_ChatSweepsIdleMemory(t *testing.T) {
	f := newFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generate.Ok("ok"))

	_, err := f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "old", UserID: "ivy"})
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Hour)

	_, err = f.service.Chat(context.Background(), &models.ChatRequest{Prompt: "new", UserID: "jack"})
	require.NoError(t, err)

	_, ok := f.memory.Get("ivy")
	assert.False(t, ok)
	assert.Equal(t, 1, f.memory.Len())
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "sys\n\nUser: hi", BuildPrompt("sys", []string{"hi"}))
	assert.Equal(t, "Recent conversation:\n- a\n\nUser: b", BuildPrompt("", []string{"a", "b"}))
	assert.Equal(t, "sys", BuildPrompt("sys", nil))
}
