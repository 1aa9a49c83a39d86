// Package models - API request types and input validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (trimmed, lowercased ids)
// - Provide sensible defaults where appropriate (anonymous users are "guest")
package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// GuestUserID is used when a chat request carries no user_id.
const GuestUserID = "guest"

// MaxPromptLength bounds the prompt accepted from a single chat request, in runes.
const MaxPromptLength = 8000

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id,omitempty"`
}

// Normalize trims the prompt, normalizes the user id and applies the guest default.
func (r *ChatRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.UserID = NormalizeUserID(r.UserID)
	if r.UserID == "" {
		r.UserID = GuestUserID
	}
}

// Validate checks a normalized request.
func (r *ChatRequest) Validate() error {
	if r.Prompt == "" {
		return errors.New("prompt is required")
	}
	if n := utf8.RuneCountInString(r.Prompt); n > MaxPromptLength {
		return fmt.Errorf("prompt is too long: %d characters (max %d)", n, MaxPromptLength)
	}
	return nil
}
