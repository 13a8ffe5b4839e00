package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/storyforge-dev/storyforge/internal/utils"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

// StreamText implements ai.Provider. Chunks are delivered in arrival order;
// the stream is not retried (a mid-stream failure cannot be transparently
// resumed) and no model fallback applies once bytes have been handed to the
// handler.
func (p *Provider) StreamText(ctx context.Context, req ai.TextRequest, handler ai.StreamHandler) error {
	if p.apiKey == "" {
		return errors.New("gemini: API key is not configured")
	}
	if handler == nil {
		return errors.New("gemini: stream handler is nil")
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	payload := buildRequest(req)

	p.logger.Info("starting text stream", "model", model)

	res, err := utils.DoPostStream(ctx, p.client, p.streamURL(model), payload, p.authHeader())
	if err != nil {
		return fmt.Errorf("gemini stream request failed: %w", err)
	}
	defer utils.CloseWithLog(res.Body)

	scanner := utils.NewSSEScanner(res.Body)
	for {
		event, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream read failed: %w", err)
		}

		var chunk generateContentResponse
		if err := json.Unmarshal([]byte(event), &chunk); err != nil {
			p.logger.Debug("skipping unparseable stream event", "error", err)
			continue
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		for _, pt := range chunk.Candidates[0].Content.Parts {
			if pt.Text == "" {
				continue
			}
			if err := handler(pt.Text); err != nil {
				return fmt.Errorf("stream handler aborted: %w", err)
			}
		}
	}
}
