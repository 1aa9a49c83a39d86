package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"omega/internal/audit"
	"omega/internal/models"
	"omega/internal/plan"
	"strings"
	"time"
)

// ErrInvalidSignature is returned when the body signature does not verify.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Reasons recorded when a verified notification is ignored
const (
	ReasonMalformedBody = "malformed body"
	ReasonMissingEmail  = "missing email"
	ReasonRefunded      = "refunded"
)

// Outcome describes how a verified notification was handled.
type Outcome struct {
	Status string
	Reason string
	Plan   *models.UserPlan
}

// Processor turns verified sale notifications into plan grants.
type Processor struct {
	verifier *Verifier
	tiers    *Tiers
	plans    *plan.Store
	audit    *audit.Log
}

// NewProcessor creates a Processor.
func NewProcessor(verifier *Verifier, tiers *Tiers, plans *plan.Store, auditLog *audit.Log) *Processor {
	return &Processor{
		verifier: verifier,
		tiers:    tiers,
		plans:    plans,
		audit:    auditLog,
	}
}

// Handle verifies rawBody against signature and grants the purchased tier.
// An invalid signature returns ErrInvalidSignature before anything is
// parsed, mutated or audited.
func (p *Processor) Handle(ctx context.Context, rawBody []byte, signature string) (*Outcome, error) {
	if !p.verifier.Verify(rawBody, signature) {
		return nil, ErrInvalidSignature
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return p.ignore(ReasonMalformedBody, ""), nil
	}

	email := models.NormalizeUserID(form.Get("email"))
	if email == "" {
		return p.ignore(ReasonMissingEmail, ""), nil
	}
	if strings.EqualFold(strings.TrimSpace(form.Get("refunded")), "true") {
		return p.ignore(ReasonRefunded, email), nil
	}

	product := form.Get("product_name")
	tier := p.tiers.TierFor(product)
	granted, err := p.plans.Grant(ctx, email, tier.Label, tier.Quota, tier.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to grant %s plan: %w", tier.Label, err)
	}

	detail := map[string]interface{}{
		"user_id":      granted.UserID,
		"label":        granted.Label,
		"quota":        granted.Quota,
		"expires_at":   granted.ExpiresAt.Format(time.RFC3339),
		"product_name": product,
	}
	if saleID := form.Get("sale_id"); saleID != "" {
		detail["sale_id"] = saleID
	}
	p.audit.Append(models.AuditEventPlanGranted, detail)

	slog.Info("Plan granted",
		"user_id", granted.UserID,
		"label", granted.Label,
		"quota", granted.Quota,
		"expires_at", granted.ExpiresAt)

	return &Outcome{Status: models.WebhookStatusOK, Plan: granted}, nil
}

func (p *Processor) ignore(reason, email string) *Outcome {
	detail := map[string]interface{}{"reason": reason}
	if email != "" {
		detail["user_id"] = email
	}
	p.audit.Append(models.AuditEventWebhookIgnored, detail)
	slog.Info("Webhook ignored", "reason", reason)
	return &Outcome{Status: models.WebhookStatusIgnored, Reason: reason}
}
