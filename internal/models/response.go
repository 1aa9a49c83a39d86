// Package models - API response types and error handling.
//
// Response Design Principles:
// - Chat always answers {"result": ...}; business and model failures are text
// - HTTP-level failures share one ErrorResponse shape with a machine-readable code
// - RFC3339 timestamps
package models

import (
	"time"
)

// StatusResponse is returned by the root banner and the webhook.
type StatusResponse struct {
	Status string `json:"status"`
}

// Banner is the status reported by GET /.
const Banner = "OMEGA ONLINE"

// Webhook outcomes
const (
	WebhookStatusOK      = "OK"
	WebhookStatusIgnored = "IGNORED"
)

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Result string `json:"result"`
}

// ErrorResponse provides structured error information for HTTP-level failures
// (malformed requests, rate limiting, forbidden access, panics).
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheckResponse reports liveness and the size of each store.
type HealthCheckResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version,omitempty"`
	Users        int       `json:"users"`
	Plans        *int      `json:"plans,omitempty"`
	AuditEntries int       `json:"audit_entries"`
	Generator    bool      `json:"generator_configured"`
}

// AuditTailResponse is returned by GET /admin/audit.
type AuditTailResponse struct {
	Entries []AuditEntry `json:"entries"`
	Count   int          `json:"count"`
}

// MemoryDumpResponse is returned by GET /admin/memory.
type MemoryDumpResponse struct {
	Users map[string]UserMemory `json:"users"`
	Count int                   `json:"count"`
}

// PlanListResponse is returned by GET /admin/plans.
type PlanListResponse struct {
	Plans []*UserPlan `json:"plans"`
	Count int         `json:"count"`
}

// Health Status Constants
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound         = "NOT_FOUND"           // 404: Route doesn't exist
	ErrorCodeBadRequest       = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeValidation       = "VALIDATION_ERROR"    // 400: Input validation failed
	ErrorCodeInternalError    = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeForbidden        = "FORBIDDEN"           // 403: Bad token or signature
	ErrorCodeRateLimited      = "RATE_LIMIT_EXCEEDED" // 429: Rate gate rejected
	ErrorCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"  // 405: Wrong verb
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}
