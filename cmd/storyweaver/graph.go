package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver/internal/presentation/graph"
	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/adapters/file"
	"github.com/aretw0/storyweaver/pkg/domain"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the wizard flow as a Mermaid diagram",
	Long: `Prints the wizard steps and transitions as a Mermaid flowchart.
With --session the step of a saved terminal session is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay

		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			state, err := file.New(cfg.SessionDir).Load(cmd.Context(), sessionID)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("session '%s' not found in %s", sessionID, cfg.SessionDir)
			}
			if err != nil {
				return err
			}
			overlay = &graph.GraphOverlay{CurrentStep: state.Step(), Busy: state.Busy}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(wizard.Steps, wizard.Edges, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the current step of this saved session")
}
