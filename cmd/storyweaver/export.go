package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver/pkg/adapters/file"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <state.json>",
	Short: "Export a saved session as a standalone HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := file.ReadState(args[0])
		if err != nil {
			return err
		}
		story := state.ApprovedStory()
		if story == nil {
			return &domain.ExportError{Format: "html", Err: domain.ErrNoStory}
		}
		doc, err := export.HTML(*story)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = export.FileName(*story)
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(out, doc, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Story exported to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Output file (defaults to the story title)")
}
