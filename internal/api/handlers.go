package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storyforge-dev/storyforge/core/blueprint"
	"github.com/storyforge-dev/storyforge/core/prompt"
	"github.com/storyforge-dev/storyforge/core/recovery"
	"github.com/storyforge-dev/storyforge/core/story"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

// aiError maps a generation failure to a response. The fixed messages of the
// recovery engine are safe to forward; anything else is replaced with a
// generic detail so raw model text or provider internals never reach the
// client. Full errors go to the log.
func (h *Handler) aiError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", "error", err)

	detail := "AI provider request failed"
	switch {
	case errors.Is(err, recovery.ErrNoObject),
		errors.Is(err, recovery.ErrShape),
		errors.Is(err, recovery.ErrRecovery),
		errors.Is(err, blueprint.ErrChapterCount):
		detail = err.Error()
	case errors.Is(err, story.ErrChapterIndex):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid chapter index"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"detail": detail})
}

type blueprintRequest struct {
	Premise      string               `json:"premise"`
	Genre        string               `json:"genre"`
	Tone         string               `json:"tone"`
	WritingStyle string               `json:"writingStyle"`
	ChapterCount int                  `json:"chapterCount" binding:"required,min=1"`
	Model        string               `json:"textModel"`
	Config       *ai.GenerationConfig `json:"generationConfig"`
}

// GenerateBlueprint handles POST /api/ai/blueprint.
func (h *Handler) GenerateBlueprint(c *gin.Context) {
	var req blueprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	b, err := h.service.GenerateBlueprint(c.Request.Context(), story.GenerateBlueprintRequest{
		BlueprintRequest: prompt.BlueprintRequest{
			Premise:      req.Premise,
			Genre:        req.Genre,
			Tone:         req.Tone,
			WritingStyle: req.WritingStyle,
			ChapterCount: req.ChapterCount,
		},
		Model:  req.Model,
		Config: req.Config,
	})
	if err != nil {
		h.aiError(c, "blueprint generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blueprint": b})
}

type chapterRequest struct {
	Blueprint           *blueprint.Blueprint `json:"blueprint" binding:"required"`
	ChapterIndex        int                  `json:"chapterIndex"`
	PreviousChapterText string               `json:"previousChapterText"`
	ChapterGuidance     string               `json:"chapterGuidance"`
	WritingStyle        string               `json:"writingStyle"`
	Tone                string               `json:"tone"`
	DisableGenreTone    bool                 `json:"disableGenreTone"`
	Model               string               `json:"textModel"`
	Config              *ai.GenerationConfig `json:"generationConfig"`
}

func (r chapterRequest) toService() story.GenerateChapterRequest {
	return story.GenerateChapterRequest{
		Blueprint:           r.Blueprint,
		ChapterIndex:        r.ChapterIndex,
		PreviousChapterText: r.PreviousChapterText,
		Guidance:            r.ChapterGuidance,
		WritingStyle:        r.WritingStyle,
		Tone:                r.Tone,
		DisableGenreTone:    r.DisableGenreTone,
		Model:               r.Model,
		Config:              r.Config,
	}
}

// GenerateChapter handles POST /api/ai/chapter.
func (h *Handler) GenerateChapter(c *gin.Context) {
	var req chapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	text, err := h.service.GenerateChapter(c.Request.Context(), req.toService())
	if err != nil {
		h.aiError(c, "chapter generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// StreamChapter handles POST /api/ai/chapter/stream, writing plain-text
// chunks as they arrive. A mid-stream failure is appended as an error marker
// the frontend can detect, since the status line is long gone.
func (h *Handler) StreamChapter(c *gin.Context) {
	var req chapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	err := h.service.StreamChapter(c.Request.Context(), req.toService(), func(chunk string) error {
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		h.logger.Error("chapter stream failed", "error", err)
		_, _ = c.Writer.WriteString("\n\n[ERROR: chapter stream failed]")
	}
}

type sequelRequest struct {
	SourceBlueprint        *blueprint.Blueprint `json:"sourceBlueprint" binding:"required"`
	EndingExcerpt          string               `json:"endingExcerpt"`
	ChapterCount           int                  `json:"chapterCount" binding:"required,min=1"`
	BannedPhrases          []string             `json:"bannedPhrases"`
	BannedDescriptorTokens []string             `json:"bannedDescriptorTokens"`
	Model                  string               `json:"textModel"`
	Config                 *ai.GenerationConfig `json:"generationConfig"`
}

// GenerateSequel handles POST /api/ai/sequel.
func (h *Handler) GenerateSequel(c *gin.Context) {
	var req sequelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	b, err := h.service.GenerateSequel(c.Request.Context(), story.GenerateSequelRequest{
		Source:                 req.SourceBlueprint,
		EndingExcerpt:          req.EndingExcerpt,
		ChapterCount:           req.ChapterCount,
		BannedPhrases:          req.BannedPhrases,
		BannedDescriptorTokens: req.BannedDescriptorTokens,
		Model:                  req.Model,
		Config:                 req.Config,
	})
	if err != nil {
		h.aiError(c, "sequel generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blueprint": b})
}

type analyzeRequest struct {
	Blueprint *blueprint.Blueprint `json:"blueprint" binding:"required"`
}

// AnalyzeBlueprint handles POST /api/ai/analyze_blueprint.
func (h *Handler) AnalyzeBlueprint(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	suggestions, err := h.service.AnalyzeBlueprint(c.Request.Context(), req.Blueprint)
	if err != nil {
		h.aiError(c, "blueprint analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type imagenRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// GenerateImage handles POST /api/ai/imagen.
func (h *Handler) GenerateImage(c *gin.Context) {
	var req imagenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	dataURL, err := h.service.GenerateCoverImage(c.Request.Context(), req.Prompt)
	if err != nil {
		h.aiError(c, "image generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataUrl": dataURL})
}

// ListStories handles GET /api/stories.
func (h *Handler) ListStories(c *gin.Context) {
	summaries, err := h.store.List()
	if err != nil {
		h.logger.Error("story listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to list stories"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// UpsertStory handles POST /api/stories.
func (h *Handler) UpsertStory(c *gin.Context) {
	var rec story.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	saved, err := h.store.Save(rec)
	if err != nil {
		h.logger.Error("story save failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to save story"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// GetStory handles GET /api/stories/:id.
func (h *Handler) GetStory(c *gin.Context) {
	rec, err := h.store.Get(c.Param("id"))
	if errors.Is(err, story.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "story not found"})
		return
	}
	if err != nil {
		h.logger.Error("story read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load story"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteStory handles DELETE /api/stories/:id.
func (h *Handler) DeleteStory(c *gin.Context) {
	deleted, err := h.store.Delete(c.Param("id"))
	if err != nil {
		h.logger.Error("story delete failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to delete story"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"detail": "story not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
