package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge-dev/storyforge/internal/utils"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

func textResponse(text string) generateContentResponse {
	return generateContentResponse{
		Candidates: []candidate{
			{Content: &content{Parts: []part{{Text: text}}}, FinishReason: "STOP"},
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGenerateText(t *testing.T) {
	var gotReq generateContentRequest
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Contains(t, r.URL.Path, "models/gemini-2.5-flash:generateContent")
		writeJSON(t, w, textResponse(`{"chapters": []}`))
	}))
	defer server.Close()

	p := New("test-key", WithBaseURL(server.URL))

	text, err := p.GenerateText(context.Background(), ai.TextRequest{
		SystemPrompt: "be a story architect",
		UserPrompt:   "a heist on the moon",
		JSONMode:     true,
		Config:       &ai.GenerationConfig{Temperature: utils.Ptr(0.9)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"chapters": []}`, text)

	assert.Equal(t, "test-key", gotKey)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "be a story architect", gotReq.SystemInstruction.Parts[0].Text)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "a heist on the moon", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.GenerationConfig)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 0.9, *gotReq.GenerationConfig.Temperature)
}

func TestGenerateTextJoinsParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, generateContentResponse{
			Candidates: []candidate{
				{Content: &content{Parts: []part{{Text: "part one, "}, {Text: "part two"}}}},
			},
		})
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL))
	text, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", text)
}

func TestGenerateTextRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, textResponse("recovered"))
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithMaxRetries(1), WithFallbackModel(""))

	text, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateTextDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithFallbackModel(""))

	_, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateTextFallsBackOnUnknownModel(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "primary") {
			models = append(models, "primary")
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		models = append(models, "fallback")
		writeJSON(t, w, textResponse("from fallback"))
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithModel("primary"), WithFallbackModel("fallback"))

	text, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, []string{"primary", "fallback"}, models)
}

func TestGenerateTextFallsBackOnEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "primary") {
			writeJSON(t, w, generateContentResponse{})
			return
		}
		writeJSON(t, w, textResponse("from fallback"))
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithModel("primary"), WithFallbackModel("fallback"))

	text, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
}

func TestGenerateTextBlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, generateContentResponse{
			PromptFeedback: &promptFeedback{BlockReason: "SAFETY"},
		})
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithFallbackModel(""))

	_, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerateTextModelOverride(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(t, w, textResponse("ok"))
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL))

	_, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x", Model: "custom-model"})
	require.NoError(t, err)
	assert.Contains(t, path, "models/custom-model:generateContent")
}

func TestGenerateTextMissingAPIKey(t *testing.T) {
	p := New("")
	_, err := p.GenerateText(context.Background(), ai.TextRequest{UserPrompt: "x"})
	assert.Error(t, err)
}

func TestStreamText(t *testing.T) {
	events := []string{
		`{"candidates": [{"content": {"parts": [{"text": "The "}]}}]}`,
		`{"candidates": [{"content": {"parts": [{"text": "lamp "}]}}]}`,
		`{"candidates": [{"content": {"parts": [{"text": "went out."}]}}]}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			_, _ = w.Write([]byte("data: " + ev + "\n\n"))
		}
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL))

	var sb strings.Builder
	err := p.StreamText(context.Background(), ai.TextRequest{UserPrompt: "x"}, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "The lamp went out.", sb.String())
}

func TestStreamTextHandlerAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"candidates": [{"content": {"parts": [{"text": "chunk"}]}}]}` + "\n\n"))
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL))

	wantErr := assert.AnError
	err := p.StreamText(context.Background(), ai.TextRequest{UserPrompt: "x"}, func(string) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestGenerateImageInline(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text
		writeJSON(t, w, generateContentResponse{
			Candidates: []candidate{
				{Content: &content{Parts: []part{
					{InlineData: &inlineData{MimeType: "image/jpeg", Data: "QUFBQQ=="}},
				}}},
			},
		})
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL))

	url, err := p.GenerateImage(context.Background(), "a lantern in the dark")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,QUFBQQ==", url)
	assert.Contains(t, gotPrompt, "a lantern in the dark")
	assert.Contains(t, gotPrompt, "NO TEXT")
}

func TestGenerateImageLegacyPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "models/imagen-3.0:predict")
		writeJSON(t, w, imagenPredictResponse{
			Predictions: []imagenPrediction{{BytesBase64Encoded: "QkJCQg=="}},
		})
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithImagenModel("imagen-3.0"))

	url, err := p.GenerateImage(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,QkJCQg==", url)
}

func TestModelsEscalationOrder(t *testing.T) {
	p := New("k", WithModel("a"), WithFallbackModel("b"))
	assert.Equal(t, []string{"a", "b"}, p.models(""))
	assert.Equal(t, []string{"c", "b"}, p.models("c"))
	assert.Equal(t, []string{"b"}, p.models("b"), "override equal to fallback must not duplicate")

	p = New("k", WithModel("a"), WithFallbackModel(""))
	assert.Equal(t, []string{"a"}, p.models(""))
}
