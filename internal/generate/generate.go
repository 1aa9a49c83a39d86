// Package generate wraps the external text generation model behind a small
// interface with an explicit result type.
package generate

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no API key was supplied.
	ErrNotConfigured = errors.New("generator not configured")

	// ErrTimeout means the call did not finish within its deadline.
	ErrTimeout = errors.New("generator timed out")

	// ErrEmptyResponse means the model answered without any text.
	ErrEmptyResponse = errors.New("generator returned an empty response")

	// ErrUpstream wraps any other failure reported by the model API.
	ErrUpstream = errors.New("generator upstream error")
)

// Result is the outcome of a generation call. Exactly one of Text and Err
// is meaningful: Err is nil on success.
type Result struct {
	Text string
	Err  error
}

// Ok returns a successful result.
func Ok(text string) Result {
	return Result{Text: text}
}

// Failed returns an error result.
func Failed(err error) Result {
	return Result{Err: err}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) Result
	Configured() bool
}

// Unconfigured is the Generator used when no API key is available. Every
// call fails with ErrNotConfigured.
type Unconfigured struct{}

// Generate always fails with ErrNotConfigured.
func (Unconfigured) Generate(ctx context.Context, prompt string) Result {
	return Failed(ErrNotConfigured)
}

// Configured always reports false.
func (Unconfigured) Configured() bool {
	return false
}
