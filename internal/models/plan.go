// Package models - Paid plan entitlements.
// A plan is created or overwritten by a verified payment webhook and spent
// one unit per chat turn until it expires or runs out.
package models

import (
	"strings"
	"time"
)

// PlanStatus is the outcome of consulting a user's plan.
type PlanStatus string

const (
	PlanStatusNone      PlanStatus = "none"      // No plan stored for the user
	PlanStatusActive    PlanStatus = "active"    // Quota left and not expired
	PlanStatusExpired   PlanStatus = "expired"   // Past ExpiresAt
	PlanStatusExhausted PlanStatus = "exhausted" // Quota reached zero
)

// UserPlan is a user's entitlement record.
type UserPlan struct {
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	Quota     int       `json:"quota"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserPlan builds a plan for userID starting at now. userID is
// normalized with NormalizeUserID.
func NewUserPlan(userID, label string, quota int, duration time.Duration, now time.Time) *UserPlan {
	now = now.UTC()
	return &UserPlan{
		UserID:    NormalizeUserID(userID),
		Label:     label,
		Quota:     quota,
		ExpiresAt: now.Add(duration),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StatusAt evaluates the plan at the given instant. Expiry is checked
// before quota so an expired plan with quota left still reports expired.
func (p *UserPlan) StatusAt(now time.Time) PlanStatus {
	if p == nil {
		return PlanStatusNone
	}
	if now.After(p.ExpiresAt) {
		return PlanStatusExpired
	}
	if p.Quota <= 0 {
		return PlanStatusExhausted
	}
	return PlanStatusActive
}

// NormalizeUserID trims and lowercases a user identifier so that the
// email carried by a webhook and the user_id sent by the chat client match.
func NormalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}
