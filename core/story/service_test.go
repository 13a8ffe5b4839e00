package story

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge-dev/storyforge/core/blueprint"
	"github.com/storyforge-dev/storyforge/core/recovery"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

// fakeProvider returns canned responses in order, recording every request.
type fakeProvider struct {
	responses []string
	err       error
	requests  []ai.TextRequest
	chunks    []string
	imageURL  string
}

func (f *fakeProvider) GenerateText(_ context.Context, req ai.TextRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeProvider) StreamText(_ context.Context, req ai.TextRequest, handler ai.StreamHandler) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := handler(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProvider) GenerateImage(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.imageURL, nil
}

const validBlueprintJSON = `{"title": "Emberfall", "chapters": [{"title": "One", "summary": "a"}, {"title": "Two", "summary": "b"}]}`

func TestGenerateBlueprint(t *testing.T) {
	provider := &fakeProvider{responses: []string{"```json\n" + validBlueprintJSON + "\n```"}}
	service := NewService(provider)

	b, err := service.GenerateBlueprint(context.Background(), GenerateBlueprintRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Emberfall", b.Title)
	require.Len(t, provider.requests, 1)
	assert.True(t, provider.requests[0].JSONMode)
	require.NotNil(t, provider.requests[0].Config)
}

func TestGenerateBlueprintRetriesOnBadOutput(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"I'd be happy to help, but could you clarify the premise?",
		validBlueprintJSON,
	}}
	service := NewService(provider)

	b, err := service.GenerateBlueprint(context.Background(), GenerateBlueprintRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Emberfall", b.Title)
	assert.Len(t, provider.requests, 2)
}

func TestGenerateBlueprintRetriesOnChapterCountMismatch(t *testing.T) {
	provider := &fakeProvider{responses: []string{validBlueprintJSON}}
	service := NewService(provider)

	req := GenerateBlueprintRequest{}
	req.ChapterCount = 5

	_, err := service.GenerateBlueprint(context.Background(), req)
	assert.ErrorIs(t, err, blueprint.ErrChapterCount)
	assert.Len(t, provider.requests, defaultAttempts)
}

func TestGenerateBlueprintProviderErrorNotRetried(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream down")}
	service := NewService(provider)

	_, err := service.GenerateBlueprint(context.Background(), GenerateBlueprintRequest{})
	require.Error(t, err)
	assert.Len(t, provider.requests, 1, "transport errors are retried by the provider, not here")
}

func TestGenerateBlueprintExhaustsAttempts(t *testing.T) {
	provider := &fakeProvider{responses: []string{"no structured output at all"}}
	service := NewService(provider, WithAttempts(3))

	_, err := service.GenerateBlueprint(context.Background(), GenerateBlueprintRequest{})
	assert.ErrorIs(t, err, recovery.ErrNoObject)
	assert.Len(t, provider.requests, 3)
}

func TestGenerateSequel(t *testing.T) {
	provider := &fakeProvider{responses: []string{validBlueprintJSON}}
	service := NewService(provider)

	b, err := service.GenerateSequel(context.Background(), GenerateSequelRequest{
		Source:        &blueprint.Blueprint{Title: "Original"},
		EndingExcerpt: "The city slept.",
		BannedPhrases: []string{"once more"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Emberfall", b.Title)

	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].SystemPrompt, "once more")
	assert.Contains(t, provider.requests[0].UserPrompt, "The city slept.")
}

func chapterReq() GenerateChapterRequest {
	return GenerateChapterRequest{
		Blueprint: &blueprint.Blueprint{
			Title:    "Emberfall",
			Chapters: []blueprint.Chapter{{Title: "One", Summary: "a"}},
		},
		ChapterIndex: 0,
	}
}

func TestGenerateChapter(t *testing.T) {
	provider := &fakeProvider{responses: []string{"The lamp went out. "}}
	service := NewService(provider)

	text, err := service.GenerateChapter(context.Background(), chapterReq())
	require.NoError(t, err)
	assert.Equal(t, "The lamp went out. ", text, "prose must be returned untouched")
	assert.False(t, provider.requests[0].JSONMode)
}

func TestGenerateChapterIndexOutOfRange(t *testing.T) {
	service := NewService(&fakeProvider{})

	req := chapterReq()
	req.ChapterIndex = 5
	_, err := service.GenerateChapter(context.Background(), req)
	assert.ErrorIs(t, err, ErrChapterIndex)

	req.ChapterIndex = -1
	_, err = service.GenerateChapter(context.Background(), req)
	assert.ErrorIs(t, err, ErrChapterIndex)
}

func TestStreamChapter(t *testing.T) {
	provider := &fakeProvider{chunks: []string{"The ", "lamp ", "went out."}}
	service := NewService(provider)

	var sb strings.Builder
	err := service.StreamChapter(context.Background(), chapterReq(), func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "The lamp went out.", sb.String())
}

func TestAnalyzeBlueprint(t *testing.T) {
	provider := &fakeProvider{responses: []string{"```json\n[\"tighten act two\", \"give Iris agency\"]\n```"}}
	service := NewService(provider)

	suggestions, err := service.AnalyzeBlueprint(context.Background(), &blueprint.Blueprint{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tighten act two", "give Iris agency"}, suggestions)
}

func TestAnalyzeBlueprintRejectsNonStrings(t *testing.T) {
	provider := &fakeProvider{responses: []string{`[{"suggestion": "structured instead"}]`}}
	service := NewService(provider)

	_, err := service.AnalyzeBlueprint(context.Background(), &blueprint.Blueprint{})
	assert.Error(t, err)
}

func TestAnalyzeBlueprintRejectsEmptyList(t *testing.T) {
	provider := &fakeProvider{responses: []string{`[]`}}
	service := NewService(provider)

	_, err := service.AnalyzeBlueprint(context.Background(), &blueprint.Blueprint{})
	assert.Error(t, err)
}

func TestGenerateCoverImage(t *testing.T) {
	provider := &fakeProvider{imageURL: "data:image/png;base64,AAAA"}
	service := NewService(provider)

	url, err := service.GenerateCoverImage(context.Background(), "a lantern in the dark")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", url)
}

// textOnlyProvider implements ai.Provider but not ai.ImageGenerator.
type textOnlyProvider struct{}

func (textOnlyProvider) GenerateText(context.Context, ai.TextRequest) (string, error) {
	return "", nil
}

func (textOnlyProvider) StreamText(context.Context, ai.TextRequest, ai.StreamHandler) error {
	return nil
}

func TestGenerateCoverImageUnsupported(t *testing.T) {
	service := NewService(textOnlyProvider{})

	_, err := service.GenerateCoverImage(context.Background(), "x")
	assert.Error(t, err)
}
