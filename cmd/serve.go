package cmd

import (
	"github.com/spf13/cobra"

	"github.com/storyforge-dev/storyforge/core/story"
	"github.com/storyforge-dev/storyforge/internal/api"
	"github.com/storyforge-dev/storyforge/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger()

		store, err := story.NewStore(settings.DataDir)
		if err != nil {
			return err
		}
		service := newService(settings, logger)

		addr := settings.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		handler := api.NewHandler(service, store, logger)
		logger.Info("starting server", "addr", addr)
		return handler.Router().Run(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
