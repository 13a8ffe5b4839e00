// Package api exposes the story service over HTTP. Route shapes mirror the
// frontend contract: AI generation endpoints under /api/ai and story
// persistence under /api/stories.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storyforge-dev/storyforge/core/story"
)

// Handler bundles the dependencies the HTTP layer needs.
type Handler struct {
	service *story.Service
	store   *story.Store
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(service *story.Service, store *story.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, store: store, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	aiGroup := router.Group("/api/ai")
	{
		aiGroup.POST("/blueprint", h.GenerateBlueprint)
		aiGroup.POST("/chapter", h.GenerateChapter)
		aiGroup.POST("/chapter/stream", h.StreamChapter)
		aiGroup.POST("/sequel", h.GenerateSequel)
		aiGroup.POST("/analyze_blueprint", h.AnalyzeBlueprint)
		aiGroup.POST("/imagen", h.GenerateImage)
	}

	stories := router.Group("/api/stories")
	{
		stories.GET("", h.ListStories)
		stories.POST("", h.UpsertStory)
		stories.GET("/:id", h.GetStory)
		stories.DELETE("/:id", h.DeleteStory)
	}

	return router
}
