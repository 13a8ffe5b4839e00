// Package story orchestrates the model calls that produce and extend a
// story: blueprint generation (with structured-output recovery), chapter
// prose, sequels and blueprint analysis. It is the "external caller" of the
// recovery engine: parsing failures and chapter-count mismatches are handled
// here as retryable model-call errors, never as reasons to re-parse the same
// text.
package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyforge-dev/storyforge/core/blueprint"
	"github.com/storyforge-dev/storyforge/core/prompt"
	"github.com/storyforge-dev/storyforge/core/recovery"
	"github.com/storyforge-dev/storyforge/internal/utils"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

// defaultAttempts is how many times a generation call may be re-issued when
// the response cannot be recovered into a valid blueprint.
const defaultAttempts = 2

// Service coordinates providers, prompts and the recovery engine.
type Service struct {
	provider ai.Provider
	engine   *recovery.Engine
	logger   *slog.Logger
	attempts int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithEngine replaces the default recovery engine.
func WithEngine(engine *recovery.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// WithAttempts sets how many model calls a blueprint generation may spend
// before giving up.
func WithAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// NewService creates a story service backed by the given provider.
func NewService(provider ai.Provider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		engine:   recovery.New(),
		logger:   slog.Default(),
		attempts: defaultAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultTextConfig mirrors the long-standing defaults for blueprint-sized
// structured calls.
func defaultTextConfig() *ai.GenerationConfig {
	return &ai.GenerationConfig{
		Temperature:     utils.Ptr(0.85),
		TopP:            utils.Ptr(0.95),
		TopK:            utils.Ptr(64),
		MaxOutputTokens: utils.Ptr(16384),
	}
}

// GenerateBlueprintRequest carries the story parameters and optional
// generation overrides.
type GenerateBlueprintRequest struct {
	prompt.BlueprintRequest
	Model  string
	Config *ai.GenerationConfig
}

// GenerateBlueprint asks the model for a story blueprint and recovers the
// structured document from whatever text comes back. Recovery failures and
// chapter-count mismatches consume another attempt; provider transport
// errors do not (the provider already retries transient failures itself).
func (s *Service) GenerateBlueprint(ctx context.Context, req GenerateBlueprintRequest) (*blueprint.Blueprint, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = defaultTextConfig()
	}
	textReq := ai.TextRequest{
		SystemPrompt: prompt.BlueprintSystem(req.BlueprintRequest),
		UserPrompt:   prompt.BlueprintUser(req.BlueprintRequest),
		JSONMode:     true,
		Model:        req.Model,
		Config:       cfg,
	}
	return s.generateStructured(ctx, textReq, req.ChapterCount)
}

// GenerateSequelRequest carries the source story and the accumulated ban
// lists that keep sequels from recycling descriptors.
type GenerateSequelRequest struct {
	Source                 *blueprint.Blueprint
	EndingExcerpt          string
	ChapterCount           int
	BannedPhrases          []string
	BannedDescriptorTokens []string
	Model                  string
	Config                 *ai.GenerationConfig
}

// GenerateSequel creates a sequel blueprint from an existing story.
func (s *Service) GenerateSequel(ctx context.Context, req GenerateSequelRequest) (*blueprint.Blueprint, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = &ai.GenerationConfig{
			Temperature:     utils.Ptr(0.8),
			TopP:            utils.Ptr(0.95),
			TopK:            utils.Ptr(64),
			MaxOutputTokens: utils.Ptr(8192),
		}
	}
	textReq := ai.TextRequest{
		SystemPrompt: prompt.SequelSystem(req.ChapterCount, req.BannedPhrases, req.BannedDescriptorTokens),
		UserPrompt:   prompt.SequelUser(req.Source, req.EndingExcerpt),
		JSONMode:     true,
		Model:        req.Model,
		Config:       cfg,
	}
	return s.generateStructured(ctx, textReq, req.ChapterCount)
}

// generateStructured runs the call-recover-validate loop shared by blueprint
// and sequel generation.
func (s *Service) generateStructured(ctx context.Context, textReq ai.TextRequest, wantChapters int) (*blueprint.Blueprint, error) {
	var lastErr error

	for attempt := 1; attempt <= s.attempts; attempt++ {
		text, err := s.provider.GenerateText(ctx, textReq)
		if err != nil {
			return nil, fmt.Errorf("blueprint generation call failed: %w", err)
		}

		doc, err := s.engine.Extract(text)
		if err != nil {
			lastErr = err
			s.logger.Warn("blueprint recovery failed",
				"attempt", attempt, "error", err)
			continue
		}

		b, err := blueprint.FromDocument(doc)
		if err != nil {
			lastErr = err
			s.logger.Warn("blueprint decode failed", "attempt", attempt, "error", err)
			continue
		}

		if err := b.CheckChapterCount(wantChapters); err != nil {
			lastErr = err
			s.logger.Warn("blueprint chapter count mismatch",
				"attempt", attempt, "error", err)
			continue
		}

		return b, nil
	}

	return nil, fmt.Errorf("blueprint generation exhausted %d attempts: %w", s.attempts, lastErr)
}

// GenerateChapterRequest identifies the chapter to write and its context.
type GenerateChapterRequest struct {
	Blueprint           *blueprint.Blueprint
	ChapterIndex        int
	PreviousChapterText string
	Guidance            string
	WritingStyle        string
	Tone                string
	DisableGenreTone    bool
	Model               string
	Config              *ai.GenerationConfig
}

// ErrChapterIndex is returned when the requested chapter does not exist in
// the blueprint.
var ErrChapterIndex = errors.New("chapter index out of range")

func (s *Service) chapterTextRequest(req GenerateChapterRequest) (ai.TextRequest, error) {
	if req.Blueprint == nil || req.ChapterIndex < 0 || req.ChapterIndex >= len(req.Blueprint.Chapters) {
		return ai.TextRequest{}, ErrChapterIndex
	}
	pr := prompt.ChapterRequest{
		Blueprint:           req.Blueprint,
		ChapterIndex:        req.ChapterIndex,
		PreviousChapterText: req.PreviousChapterText,
		Guidance:            req.Guidance,
		WritingStyle:        req.WritingStyle,
		Tone:                req.Tone,
		UseGenreTone:        !req.DisableGenreTone,
	}
	cfg := req.Config
	if cfg == nil {
		cfg = defaultTextConfig()
	}
	return ai.TextRequest{
		SystemPrompt: prompt.ChapterSystem(pr),
		UserPrompt:   prompt.ChapterUser(pr),
		Model:        req.Model,
		Config:       cfg,
	}, nil
}

// GenerateChapter produces one chapter's prose in a single blocking call.
// Prose needs no structural recovery, so the text is returned as-is.
func (s *Service) GenerateChapter(ctx context.Context, req GenerateChapterRequest) (string, error) {
	textReq, err := s.chapterTextRequest(req)
	if err != nil {
		return "", err
	}
	text, err := s.provider.GenerateText(ctx, textReq)
	if err != nil {
		return "", fmt.Errorf("chapter generation call failed: %w", err)
	}
	return text, nil
}

// StreamChapter produces one chapter's prose as a token stream, handing each
// chunk straight to the handler. The recovery engine is never involved: it
// must only ever see fully buffered responses, and prose has no structure to
// recover anyway.
func (s *Service) StreamChapter(ctx context.Context, req GenerateChapterRequest, handler ai.StreamHandler) error {
	textReq, err := s.chapterTextRequest(req)
	if err != nil {
		return err
	}
	if err := s.provider.StreamText(ctx, textReq, handler); err != nil {
		return fmt.Errorf("chapter stream failed: %w", err)
	}
	return nil
}

// AnalyzeBlueprint asks the model for developmental-editing suggestions and
// recovers them as a list of strings.
func (s *Service) AnalyzeBlueprint(ctx context.Context, b *blueprint.Blueprint) ([]string, error) {
	text, err := s.provider.GenerateText(ctx, ai.TextRequest{
		SystemPrompt: prompt.DoctorSystem(),
		UserPrompt:   prompt.DoctorUser(b),
		JSONMode:     true,
		Config: &ai.GenerationConfig{
			Temperature:     utils.Ptr(0.6),
			TopP:            utils.Ptr(0.95),
			TopK:            utils.Ptr(64),
			MaxOutputTokens: utils.Ptr(2048),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blueprint analysis call failed: %w", err)
	}

	items, err := s.engine.ExtractList(text)
	if err != nil {
		return nil, fmt.Errorf("blueprint analysis response unusable: %w", err)
	}

	suggestions := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, errors.New("blueprint analysis returned a non-string suggestion")
		}
		suggestions = append(suggestions, str)
	}
	if len(suggestions) == 0 {
		return nil, errors.New("blueprint analysis returned no suggestions")
	}
	return suggestions, nil
}

// GenerateCoverImage produces a cover image data URL when the configured
// provider supports image generation.
func (s *Service) GenerateCoverImage(ctx context.Context, imagePrompt string) (string, error) {
	gen, ok := s.provider.(ai.ImageGenerator)
	if !ok {
		return "", errors.New("configured provider cannot generate images")
	}
	dataURL, err := gen.GenerateImage(ctx, imagePrompt)
	if err != nil {
		return "", fmt.Errorf("cover image generation failed: %w", err)
	}
	return dataURL, nil
}
