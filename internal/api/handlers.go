package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"omega/internal/audit"
	"omega/internal/chat"
	"omega/internal/generate"
	"omega/internal/memory"
	"omega/internal/models"
	"omega/internal/plan"
	"omega/internal/webhook"
	"strconv"
	"time"
)

// maxWebhookBody bounds the size of a payment notification body.
const maxWebhookBody = 64 << 10

// Handlers contains HTTP handlers for the omega API
type Handlers struct {
	chatService chat.ServiceInterface
	webhooks    *webhook.Processor
	memory      *memory.Store
	plans       *plan.Store
	audit       *audit.Log
	generator   generate.Generator
	version     string
	auditTail   int
}

// HandlerOption configures optional handler dependencies
type HandlerOption func(*Handlers)

// WithWebhookProcessor enables POST /webhook/gumroad
func WithWebhookProcessor(p *webhook.Processor) HandlerOption {
	return func(h *Handlers) {
		h.webhooks = p
	}
}

// WithMemory exposes the memory store to health and admin handlers
func WithMemory(m *memory.Store) HandlerOption {
	return func(h *Handlers) {
		h.memory = m
	}
}

// WithPlans exposes the plan store to health and admin handlers
func WithPlans(p *plan.Store) HandlerOption {
	return func(h *Handlers) {
		h.plans = p
	}
}

// WithAudit exposes the audit log to health and admin handlers
func WithAudit(l *audit.Log) HandlerOption {
	return func(h *Handlers) {
		h.audit = l
	}
}

// WithGenerator lets the health check report whether the model is configured
func WithGenerator(g generate.Generator) HandlerOption {
	return func(h *Handlers) {
		h.generator = g
	}
}

// WithVersion sets the version reported by the health check
func WithVersion(v string) HandlerOption {
	return func(h *Handlers) {
		h.version = v
	}
}

// WithAuditTail sets the default number of entries returned by GET /admin/audit
func WithAuditTail(n int) HandlerOption {
	return func(h *Handlers) {
		h.auditTail = n
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(chatService chat.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		chatService: chatService,
		auditTail:   100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root reports that the service is up
// GET /
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.Banner})
}

// Chat runs one chat turn
// POST /chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	response, err := h.chatService.Chat(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GumroadWebhook grants a plan from a signed sale notification
// POST /webhook/gumroad
func (h *Handlers) GumroadWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Webhook not enabled")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Unable to read request body")
		return
	}

	outcome, err := h.webhooks.Handle(r.Context(), body, r.Header.Get(webhook.SignatureHeader))
	if errors.Is(err, webhook.ErrInvalidSignature) {
		slog.Warn("Webhook signature rejected", "remote_addr", r.RemoteAddr)
		h.writeErrorResponse(w, http.StatusForbidden, models.ErrorCodeForbidden, "Invalid signature")
		return
	}
	if err != nil {
		slog.Error("Webhook processing failed", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to process webhook")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.StatusResponse{Status: outcome.Status})
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthCheckResponse{
		Status:    models.StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	if h.memory != nil {
		response.Users = h.memory.Len()
	}
	if h.audit != nil {
		response.AuditEntries = h.audit.Len()
	}
	if h.generator != nil {
		response.Generator = h.generator.Configured()
	}
	if h.plans != nil {
		count, err := h.plans.Count(r.Context())
		if err != nil {
			slog.Warn("Health check could not count plans", "error", err)
			response.Status = models.StatusDegraded
		} else {
			response.Plans = &count
		}
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// AdminAudit returns the most recent audit entries
// GET /admin/audit?limit=N
func (h *Handlers) AdminAudit(w http.ResponseWriter, r *http.Request) {
	limit := h.auditTail
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries := []models.AuditEntry{}
	if h.audit != nil {
		entries = h.audit.Tail(limit)
	}

	h.writeJSONResponse(w, http.StatusOK, models.AuditTailResponse{Entries: entries, Count: len(entries)})
}

// AdminMemory dumps the conversation memory of every user
// GET /admin/memory
func (h *Handlers) AdminMemory(w http.ResponseWriter, r *http.Request) {
	users := map[string]models.UserMemory{}
	if h.memory != nil {
		users = h.memory.Snapshot()
	}

	h.writeJSONResponse(w, http.StatusOK, models.MemoryDumpResponse{Users: users, Count: len(users)})
}

// AdminPlans lists every stored plan
// GET /admin/plans
func (h *Handlers) AdminPlans(w http.ResponseWriter, r *http.Request) {
	plans := []*models.UserPlan{}
	if h.plans != nil {
		listed, err := h.plans.List(r.Context())
		if err != nil {
			slog.Error("Failed to list plans", "error", err)
			h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to list plans")
			return
		}
		plans = listed
	}

	h.writeJSONResponse(w, http.StatusOK, models.PlanListResponse{Plans: plans, Count: len(plans)})
}

// writeServiceError maps a chat service error onto an HTTP response. Only
// client faults surface as errors; anything else is answered with the
// unavailable message so /chat keeps its 200 contract.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var serviceErr *chat.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.ClientFault() {
		h.writeErrorResponse(w, serviceErr.StatusCode, serviceErr.Code, serviceErr.Message)
		return
	}

	slog.Error("Chat request failed", "error", err)
	h.writeJSONResponse(w, http.StatusOK, models.ChatResponse{Result: chat.MessageUnavailable})
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeJSON encodes data as the response body. Encoding failures are only
// logged since the status line has already been sent.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding JSON response", "error", err)
	}
}
