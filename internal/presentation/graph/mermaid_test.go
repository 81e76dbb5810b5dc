package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/storyweaver/internal/presentation/graph"
	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Step Shapes",
			contains: []string{
				"graph TD\n",
				"briefing((\"briefing\"))",
				"proposal[\"proposal\"]",
				"scene_count[/\"scene_count\"/]",
				"style[/\"style\"/]",
				"images[[\"images\"]]",
			},
			excludes: []string{"classDef"},
		},
		{
			name: "User And Result Edges",
			contains: []string{
				"proposal -- \"approve\" --> style",
				"images -- \"restart\" --> briefing",
				"briefing -. \"proposal_received\" .-> proposal",
				"style -. \"images_settled\" .-> images",
			},
		},
		{
			name:    "Current Step Overlay",
			overlay: &graph.GraphOverlay{CurrentStep: domain.StepStyle},
			contains: []string{
				"classDef current",
				"class style current;",
			},
		},
		{
			name:    "Busy Overlay",
			overlay: &graph.GraphOverlay{CurrentStep: domain.StepBriefing, Busy: true},
			contains: []string{
				"class briefing busy;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(wizard.Steps, wizard.Edges, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("GenerateMermaid() unexpectedly contains %q", bad)
				}
			}
		})
	}
}
