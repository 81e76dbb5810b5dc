package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	CurrentStep domain.Step
	Busy        bool
}

// GenerateMermaid produces a Mermaid flowchart of the wizard steps.
// It applies semantic styling:
// - Briefing (entry): ((Circle))
// - Steps that wait for user text: [/Parallelogram/]
// - Images (viewer): [[Subroutine]]
// Result events are drawn dotted since they arrive from a remote call.
func GenerateMermaid(steps []domain.Step, edges []wizard.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, step := range steps {
		id := sanitizeMermaidID(string(step))
		opener, closer := "[", "]"
		switch step {
		case domain.StepBriefing:
			opener, closer = "((", "))"
		case domain.StepSceneCount, domain.StepStyle:
			opener, closer = "[/", "/]"
		case domain.StepImages:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, step, closer)
	}

	for _, e := range edges {
		label := strings.ReplaceAll(string(e.Event), "\"", "'")
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if isResult(e.Event) {
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(string(e.From)), arrow, sanitizeMermaidID(string(e.To)))
	}

	if overlay != nil && overlay.CurrentStep != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef busy fill:#e1f5fe,stroke:#01579b,stroke-width:4px,stroke-dasharray: 5 5,color:#000;\n")
		class := "current"
		if overlay.Busy {
			class = "busy"
		}
		fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(string(overlay.CurrentStep)), class)
	}

	return sb.String()
}

func isResult(ev domain.EventType) bool {
	return ev == domain.EventProposalReceived || ev == domain.EventImagesSettled
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
