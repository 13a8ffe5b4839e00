package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyforge-dev/storyforge/core/prompt"
	"github.com/storyforge-dev/storyforge/core/story"
	"github.com/storyforge-dev/storyforge/internal/config"
	"github.com/storyforge-dev/storyforge/internal/utils"
	"github.com/storyforge-dev/storyforge/providers/ai"
)

var generateFlags struct {
	genre        string
	tone         string
	writingStyle string
	chapters     int
	preset       string
	presetsFile  string
}

var generateCmd = &cobra.Command{
	Use:   "generate <premise>",
	Short: "Generate a story blueprint from a premise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger()
		service := newService(settings, logger)

		req := story.GenerateBlueprintRequest{
			BlueprintRequest: prompt.BlueprintRequest{
				Premise:      args[0],
				Genre:        generateFlags.genre,
				Tone:         generateFlags.tone,
				WritingStyle: generateFlags.writingStyle,
				ChapterCount: generateFlags.chapters,
			},
		}

		if generateFlags.preset != "" {
			presets, err := config.LoadPresets(generateFlags.presetsFile)
			if err != nil {
				return err
			}
			p := config.FindPreset(presets, generateFlags.preset)
			if p == nil {
				return fmt.Errorf("preset %q not found in %s", generateFlags.preset, generateFlags.presetsFile)
			}
			applyPreset(&req, p, cmd)
		}

		b, err := service.GenerateBlueprint(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), utils.JSONToString(b, true))
		return nil
	},
}

// applyPreset fills request fields from a preset; flags the user set
// explicitly win.
func applyPreset(req *story.GenerateBlueprintRequest, p *config.Preset, cmd *cobra.Command) {
	if !cmd.Flags().Changed("genre") && p.Genre != "" {
		req.Genre = p.Genre
	}
	if !cmd.Flags().Changed("tone") && p.Tone != "" {
		req.Tone = p.Tone
	}
	if !cmd.Flags().Changed("style") && p.WritingStyle != "" {
		req.WritingStyle = p.WritingStyle
	}
	if !cmd.Flags().Changed("chapters") && p.ChapterCount > 0 {
		req.ChapterCount = p.ChapterCount
	}
	if p.Temperature != nil || p.TopP != nil || p.TopK != nil || p.MaxOutputTokens != nil {
		req.Config = &ai.GenerationConfig{
			Temperature:     p.Temperature,
			TopP:            p.TopP,
			TopK:            p.TopK,
			MaxOutputTokens: p.MaxOutputTokens,
		}
	}
}

func init() {
	generateCmd.Flags().StringVar(&generateFlags.genre, "genre", "", "story genre")
	generateCmd.Flags().StringVar(&generateFlags.tone, "tone", "", "story tone")
	generateCmd.Flags().StringVar(&generateFlags.writingStyle, "style", "", "writing style")
	generateCmd.Flags().IntVar(&generateFlags.chapters, "chapters", 8, "number of chapters")
	generateCmd.Flags().StringVar(&generateFlags.preset, "preset", "", "named preset to apply")
	generateCmd.Flags().StringVar(&generateFlags.presetsFile, "presets-file", "presets.yaml", "path to the presets file")
	rootCmd.AddCommand(generateCmd)
}
