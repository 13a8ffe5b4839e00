// Package cmd wires the storyforge commands: extract (run the recovery
// engine over a file or stdin), generate (one-shot blueprint generation) and
// serve (the HTTP API).
package cmd

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/storyforge-dev/storyforge/core/story"
	"github.com/storyforge-dev/storyforge/internal/config"
	"github.com/storyforge-dev/storyforge/providers/ai/gemini"
)

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Story blueprint generation with resilient structured-output recovery",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional; environment variables win over .env entries.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newService builds the provider stack from settings. Shared by generate
// and serve.
func newService(settings *config.Settings, logger *slog.Logger) *story.Service {
	provider := gemini.New(settings.GeminiAPIKey,
		gemini.WithModel(settings.GeminiTextModel),
		gemini.WithFallbackModel(settings.GeminiTextFallbackModel),
		gemini.WithImagenModel(settings.ImagenModel),
		gemini.WithHTTPClient(&http.Client{Timeout: settings.GeminiTextTimeout}),
		gemini.WithLogger(logger),
	)
	return story.NewService(provider, story.WithLogger(logger))
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
