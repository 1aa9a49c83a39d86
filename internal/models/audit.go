package models

import "time"

// Audit event kinds
const (
	AuditEventChat           = "chat"
	AuditEventChatRejected   = "chat_rejected"
	AuditEventPlanGranted    = "plan_granted"
	AuditEventWebhookIgnored = "webhook_ignored"
)

// AuditEntry is an immutable record of a notable gateway event.
type AuditEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}
