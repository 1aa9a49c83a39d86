package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"omega/internal/models"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used by Gemini.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Google Gemini API. Outbound calls are throttled by a
// token bucket and bounded by a per-call timeout.
type Gemini struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGemini creates a Gemini generator. It returns ErrNotConfigured when the
// API key is empty.
func NewGemini(ctx context.Context, cfg models.GeneratorConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGemini(client.Models, cfg), nil
}

func newGemini(gen contentGenerator, cfg models.GeneratorConfig) *Gemini {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Gemini{
		models:  gen,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// New returns a Gemini generator when an API key is configured and
// Unconfigured otherwise. Missing credentials are not fatal.
func New(ctx context.Context, cfg models.GeneratorConfig) (Generator, error) {
	gen, err := NewGemini(ctx, cfg)
	if errors.Is(err, ErrNotConfigured) {
		slog.Warn("GEMINI_API_KEY not set, chat requests will report the model as unavailable")
		return Unconfigured{}, nil
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// Configured reports true.
func (g *Gemini) Configured() bool {
	return true
}

// Model returns the model name used for calls.
func (g *Gemini) Model() string {
	return g.model
}

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) Result {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return Failed(waitFailure(ctx, err))
	}

	start := time.Now()
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Failed(classify(ctx, err))
	}

	text := responseText(resp)
	if text == "" {
		return Failed(ErrEmptyResponse)
	}

	slog.Debug("Generated response",
		"model", g.model,
		"prompt_chars", len(prompt),
		"response_chars", len(text),
		"duration", time.Since(start))

	return Ok(text)
}

// classify maps an SDK error to one of the package sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// waitFailure maps a throttle wait error. Only a caller cancellation is
// not a timeout; rate.Limiter also fails early when the wait would outlast
// the deadline.
func waitFailure(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: canceled while waiting for rate limiter: %v", ErrUpstream, err)
	}
	return fmt.Errorf("%w: waiting for rate limiter: %v", ErrTimeout, err)
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
