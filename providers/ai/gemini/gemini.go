// Package gemini implements the ai.Provider interface against the Gemini
// REST API (generateContent / streamGenerateContent), with transient-error
// retry and a primary-to-fallback model escalation mirroring how the
// application's backend has always talked to the API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/storyforge-dev/storyforge/internal/utils"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel         = "gemini-2.5-flash"
	defaultFallbackModel = "gemini-2.5-pro"
	defaultImagenModel   = "gemini-2.5-flash-image"

	defaultMaxRetries     = 3
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultBackoffFactor  = 2.0
	jitterFraction        = 0.1
)

// retryableStatus holds the HTTP status codes worth retrying with backoff.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// errEmptyResponse marks a well-formed API response that carried no usable
// text, which triggers fallback-model escalation.
var errEmptyResponse = errors.New("empty response from model")

// statusError pairs a provider error with the HTTP status that produced it,
// so callers can make fallback decisions without string matching.
type statusError struct {
	Status int
	Err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

func (e *statusError) Unwrap() error { return e.Err }

// Provider talks to the Gemini REST API. Safe for concurrent use; it holds
// only immutable configuration after construction.
type Provider struct {
	apiKey        string
	baseURL       string
	model         string
	fallbackModel string
	imagenModel   string
	client        *http.Client
	logger        *slog.Logger
	maxRetries    int
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (useful for tests and proxies).
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithModel sets the primary text model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithFallbackModel sets the model tried when the primary returns 404 or an
// empty response. An empty string disables fallback.
func WithFallbackModel(model string) Option {
	return func(p *Provider) { p.fallbackModel = model }
}

// WithImagenModel sets the image-generation model.
func WithImagenModel(model string) Option {
	return func(p *Provider) { p.imagenModel = model }
}

// WithHTTPClient sets a custom HTTP client (timeouts live here).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithMaxRetries sets the number of retry attempts after the first failure.
func WithMaxRetries(n int) Option {
	return func(p *Provider) { p.maxRetries = n }
}

// New creates a Gemini provider with the given API key.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		model:         defaultModel,
		fallbackModel: defaultFallbackModel,
		imagenModel:   defaultImagenModel,
		client:        &http.Client{Timeout: 180 * time.Second},
		logger:        slog.Default(),
		maxRetries:    defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ ai.Provider = (*Provider)(nil)
var _ ai.ImageGenerator = (*Provider)(nil)

func (p *Provider) textURL(model string) string {
	return fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
}

func (p *Provider) streamURL(model string) string {
	return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, model)
}

func (p *Provider) imagenURL() string {
	if strings.Contains(strings.ToLower(p.imagenModel), "gemini") {
		// Gemini-family models generate images through generateContent.
		return p.textURL(p.imagenModel)
	}
	return fmt.Sprintf("%s/models/%s:predict", p.baseURL, p.imagenModel)
}

func (p *Provider) authHeader() utils.HeaderOption {
	return utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey}
}

// backoff = min(initial * factor^attempt, max) + jitter
func backoff(attempt int) time.Duration {
	base := float64(defaultInitialBackoff) * math.Pow(defaultBackoffFactor, float64(attempt))
	if base > float64(defaultMaxBackoff) {
		base = float64(defaultMaxBackoff)
	}
	jitter := base * jitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base + jitter)
}

// buildRequest assembles the REST payload for a text call.
func buildRequest(req ai.TextRequest) generateContentRequest {
	cfg := req.Config.Sanitize()
	gc := &generationConfig{}
	if cfg != nil {
		gc.Temperature = cfg.Temperature
		gc.TopP = cfg.TopP
		gc.TopK = cfg.TopK
		gc.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if req.JSONMode {
		gc.ResponseMimeType = "application/json"
	}

	out := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.UserPrompt}}},
		},
		GenerationConfig: gc,
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &systemInstruction{Parts: []part{{Text: req.SystemPrompt}}}
	}
	return out
}

// doWithRetry posts payload to url, retrying transient failures with
// exponential backoff while honouring context cancellation. Non-retryable
// HTTP statuses are returned immediately wrapped in a statusError.
func doWithRetry[T any](ctx context.Context, p *Provider, url string, payload any, model string) (*T, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt - 1)
			p.logger.Warn("retrying provider call",
				"model", model, "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		res, out, err := utils.DoPostSync[T](ctx, p.client, url, payload, p.authHeader())
		if err == nil {
			return out, nil
		}
		lastErr = err

		if res != nil {
			if !retryableStatus[res.StatusCode] {
				return nil, &statusError{Status: res.StatusCode, Err: err}
			}
			lastErr = &statusError{Status: res.StatusCode, Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network errors and retryable statuses fall through to the next attempt.
	}

	return nil, fmt.Errorf("max retries exceeded for model %s: %w", model, lastErr)
}

// extractText joins the text parts of the first candidate. An empty result
// or missing candidates yields errEmptyResponse with the block reason, when
// the API reported one.
func extractText(resp *generateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		reason := ""
		if resp != nil && resp.PromptFeedback != nil {
			reason = resp.PromptFeedback.BlockReason
			if reason == "" {
				reason = resp.PromptFeedback.BlockReasonMessage
			}
		}
		if reason != "" {
			return "", fmt.Errorf("%w (blocked: %s)", errEmptyResponse, reason)
		}
		return "", fmt.Errorf("%w (no candidates)", errEmptyResponse)
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", errEmptyResponse
	}
	var sb strings.Builder
	for _, pt := range cand.Content.Parts {
		sb.WriteString(pt.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

// models returns the escalation order: primary first, then the fallback
// when one is configured and distinct.
func (p *Provider) models(override string) []string {
	primary := p.model
	if override != "" {
		primary = override
	}
	models := []string{primary}
	if p.fallbackModel != "" && p.fallbackModel != primary {
		models = append(models, p.fallbackModel)
	}
	return models
}

// shouldFallBack reports whether the next configured model should be tried:
// the current one is unknown (404) or produced nothing usable.
func shouldFallBack(err error) bool {
	var se *statusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return true
	}
	return errors.Is(err, errEmptyResponse)
}

// GenerateText implements ai.Provider.
func (p *Provider) GenerateText(ctx context.Context, req ai.TextRequest) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("gemini: API key is not configured")
	}

	payload := buildRequest(req)
	models := p.models(req.Model)

	var lastErr error
	for i, model := range models {
		p.logger.Info("calling text model", "model", model, "json_mode", req.JSONMode)

		resp, err := doWithRetry[generateContentResponse](ctx, p, p.textURL(model), payload, model)
		if err == nil {
			var text string
			if text, err = extractText(resp); err == nil {
				if fr := resp.Candidates[0].FinishReason; fr != "" && fr != "STOP" {
					p.logger.Warn("model finished abnormally", "model", model, "finish_reason", fr)
				}
				return text, nil
			}
		}
		lastErr = err

		if i < len(models)-1 && shouldFallBack(err) {
			p.logger.Warn("falling back to next model",
				"from", model, "to", models[i+1], "error", err)
			continue
		}
		break
	}

	return "", fmt.Errorf("gemini text generation failed: %w", lastErr)
}

// GenerateImage implements ai.ImageGenerator, returning a data URL. Both the
// Gemini inline-data style and the legacy Imagen predict style are supported,
// chosen by the configured image model name.
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("gemini: API key is not configured")
	}

	cleaned := cleanImagePrompt(prompt)

	if strings.Contains(strings.ToLower(p.imagenModel), "gemini") {
		payload := generateContentRequest{
			Contents:         []content{{Parts: []part{{Text: cleaned}}}},
			GenerationConfig: &generationConfig{ResponseMimeType: "image/jpeg"},
		}
		resp, err := doWithRetry[generateContentResponse](ctx, p, p.imagenURL(), payload, p.imagenModel)
		if err != nil {
			return "", fmt.Errorf("gemini image generation failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", errEmptyResponse
		}
		for _, pt := range resp.Candidates[0].Content.Parts {
			if pt.InlineData != nil && pt.InlineData.Data != "" {
				mime := pt.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return "data:" + mime + ";base64," + pt.InlineData.Data, nil
			}
		}
		return "", errEmptyResponse
	}

	payload := imagenPredictRequest{
		Instances:  []imagenInstance{{Prompt: cleaned}},
		Parameters: imagenParameters{SampleCount: 1},
	}
	resp, err := doWithRetry[imagenPredictResponse](ctx, p, p.imagenURL(), payload, p.imagenModel)
	if err != nil {
		return "", fmt.Errorf("imagen generation failed: %w", err)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return "", errEmptyResponse
	}
	return "data:image/png;base64," + resp.Predictions[0].BytesBase64Encoded, nil
}

// cleanImagePrompt appends the style and no-typography constraints applied
// to every image prompt.
func cleanImagePrompt(base string) string {
	return base + ". NO TEXT, NO WORDS, NO TYPOGRAPHY, NO LABELS, NO WATERMARKS, NO SIGNATURES. High contrast, sharp focus, 8k."
}
