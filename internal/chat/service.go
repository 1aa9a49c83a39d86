// Package chat orchestrates a chat turn: plan gating, conversation memory,
// prompt assembly, the model call and the audit trail.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"omega/internal/audit"
	"omega/internal/generate"
	"omega/internal/memory"
	"omega/internal/models"
	"omega/internal/plan"
	"strings"
)

// Messages returned in place of generated text.
const (
	MessagePlanExpired   = "Your plan has expired. Please renew to continue."
	MessageQuotaExceeded = "Your quota is exhausted. Please upgrade your plan."
	MessageNoPlan        = "No active plan. Please purchase a plan to continue."
	MessageNotConfigured = "The model is not configured on this server."
	MessageTimeout       = "The model took too long to respond. Please try again."
	MessageUnavailable   = "The model is unavailable right now. Please try again later."
	MessagePlansDown     = "Plans are unavailable right now. Please try again later."
)

// Rejection reasons recorded beside plan statuses in chat_rejected entries.
const (
	reasonPlanUnavailable = "plan_unavailable"
)

// Service handles chat requests
type Service struct {
	memory            *memory.Store
	plans             *plan.Store
	audit             *audit.Log
	generator         generate.Generator
	systemInstruction string
	requirePlan       bool
}

// Option configures a Service
type Option func(*Service)

// WithSystemInstruction sets the text placed before every prompt
func WithSystemInstruction(instruction string) Option {
	return func(s *Service) {
		s.systemInstruction = instruction
	}
}

// WithRequirePlan rejects users that have no plan
func WithRequirePlan(require bool) Option {
	return func(s *Service) {
		s.requirePlan = require
	}
}

// NewService creates a chat service over the given stores and generator
func NewService(mem *memory.Store, plans *plan.Store, auditLog *audit.Log, gen generate.Generator, opts ...Option) *Service {
	s := &Service{
		memory:    mem,
		plans:     plans,
		audit:     auditLog,
		generator: gen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat runs one chat turn. Plan rejections, plan storage failures and model
// failures are reported in the response text; only invalid input returns an
// error.
func (s *Service) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), err)
	}

	if removed := s.memory.SweepExpired(); removed > 0 {
		slog.Debug("Evicted idle conversation memory", "removed", removed)
	}

	status, userPlan, err := s.checkPlan(ctx, req.UserID)
	if err != nil {
		slog.Error("Failed to check plan", "user_id", req.UserID, "error", err)
		s.reject(req.UserID, reasonPlanUnavailable)
		return &models.ChatResponse{Result: MessagePlansDown}, nil
	}

	if message, rejected := s.rejection(status); rejected {
		s.reject(req.UserID, string(status))
		slog.Info("Chat rejected", "user_id", req.UserID, "plan_status", status)
		return &models.ChatResponse{Result: message}, nil
	}

	history := s.memory.Record(req.UserID, req.Prompt)
	result := s.generator.Generate(ctx, BuildPrompt(s.systemInstruction, history))

	text := result.Text
	if !result.OK() {
		slog.Warn("Generation failed", "user_id", req.UserID, "error", result.Err)
		text = failureMessage(result.Err)
	}

	detail := map[string]interface{}{
		"user_id":      req.UserID,
		"prompt_chars": len([]rune(req.Prompt)),
		"history":      len(history),
		"ok":           result.OK(),
	}
	if userPlan != nil {
		detail["remaining"] = userPlan.Quota
	}
	s.audit.Append(models.AuditEventChat, detail)

	return &models.ChatResponse{Result: text}, nil
}

// checkPlan spends one unit of quota when the model can answer. An
// unconfigured generator only consults the plan so a turn that cannot be
// answered costs nothing.
func (s *Service) checkPlan(ctx context.Context, userID string) (models.PlanStatus, *models.UserPlan, error) {
	if !s.generator.Configured() {
		return s.plans.Consult(ctx, userID)
	}
	return s.plans.Acquire(ctx, userID)
}

func (s *Service) reject(userID, reason string) {
	s.audit.Append(models.AuditEventChatRejected, map[string]interface{}{
		"user_id": userID,
		"reason":  reason,
	})
}

// rejection maps a plan status to the message returned instead of a model
// answer. Users without a plan pass unless a plan is required.
func (s *Service) rejection(status models.PlanStatus) (string, bool) {
	switch status {
	case models.PlanStatusExpired:
		return MessagePlanExpired, true
	case models.PlanStatusExhausted:
		return MessageQuotaExceeded, true
	case models.PlanStatusNone:
		if s.requirePlan {
			return MessageNoPlan, true
		}
	}
	return "", false
}

// BuildPrompt assembles the text sent to the model. history is the
// chronological prompt list whose last element is the current prompt.
func BuildPrompt(systemInstruction string, history []string) string {
	if len(history) == 0 {
		return systemInstruction
	}
	current := history[len(history)-1]
	previous := history[:len(history)-1]

	var sb strings.Builder
	if systemInstruction != "" {
		sb.WriteString(systemInstruction)
		sb.WriteString("\n\n")
	}
	if len(previous) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, line := range previous {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(current)
	return sb.String()
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, generate.ErrNotConfigured):
		return MessageNotConfigured
	case errors.Is(err, generate.ErrTimeout):
		return MessageTimeout
	default:
		return MessageUnavailable
	}
}
