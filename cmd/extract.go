package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyforge-dev/storyforge/core/recovery"
	"github.com/storyforge-dev/storyforge/internal/utils"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Recover a structured document from raw model output",
	Long: `Reads free-form model output from a file (or stdin when no file is
given), runs the recovery engine over it and prints the recovered document
as canonical JSON. Exits non-zero when no valid document can be recovered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		doc, err := recovery.Extract(string(raw))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), utils.JSONToString(doc, true))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
