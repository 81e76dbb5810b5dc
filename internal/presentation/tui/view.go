package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// Messages renders conversation entries as markdown paragraphs.
func Messages(msgs []domain.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		speaker := "Storyweaver"
		if m.Speaker == domain.SpeakerUser {
			speaker = "You"
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", speaker, escape(m.Text))
	}
	return b.String()
}

// Proposal lists the proposed scenes.
func Proposal(p domain.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Story Proposal: %s\n\n", escape(p.Title))
	for i, sc := range p.Scenes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escape(sc.Description))
	}
	return b.String()
}

// StyleMenu lists the style presets. Any other text is accepted as a style too.
func StyleMenu(presets []string) string {
	var b strings.Builder
	b.WriteString("### Visual style\n\n")
	for i, s := range presets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nPick a number or type a style of your own.\n")
	return b.String()
}

// Scene renders one scene of the story with its position.
func Scene(story domain.Story, index int) string {
	if index < 0 || index >= len(story.Scenes) {
		return ""
	}
	sc := story.Scenes[index]

	var b strings.Builder
	fmt.Fprintf(&b, "### Scene %d of %d\n\n", index+1, len(story.Scenes))
	desc := sc.Description
	if strings.TrimSpace(desc) == "" {
		desc = "N/A"
	}
	fmt.Fprintf(&b, "%s\n\n", escape(desc))
	if sc.Dialogue != "" {
		fmt.Fprintf(&b, "> %s\n\n", escape(sc.Dialogue))
	}
	if sc.Narration != "" {
		fmt.Fprintf(&b, "*%s*\n\n", escape(sc.Narration))
	}
	switch {
	case sc.Image == nil:
		b.WriteString("_No image yet._\n")
	case sc.Image.URL != "":
		fmt.Fprintf(&b, "Image (%s): %s\n", escape(sc.Image.Style), sc.Image.URL)
	default:
		fmt.Fprintf(&b, "Image (%s): inline, %d bytes\n", escape(sc.Image.Style), len(sc.Image.Data))
	}
	return b.String()
}

// Hint is the one-line instruction shown before reading input in the given step.
func Hint(step domain.Step) string {
	switch step {
	case domain.StepBriefing:
		return "Tell me about the story you want to create. E.g., A brave knight, a mysterious forest, and a hidden treasure."
	case domain.StepProposal:
		return "[a]pprove, [s]et the scene count or a[d]just"
	case domain.StepSceneCount:
		return "Number of scenes (e.g., 3)"
	case domain.StepStyle:
		return "Type a style or select above..."
	case domain.StepImages:
		return "[n]ext, [p]revious, a scene number, [e]xport, [r] <style> to restyle or [b]egin again"
	}
	return ""
}

// Error colors an error line.
func Error(msg string) string {
	p := termenv.EnvColorProfile()
	return termenv.String("Error: " + msg).Foreground(p.Color("#ff7b7b")).String()
}

// Status colors a progress line.
func Status(msg string) string {
	p := termenv.EnvColorProfile()
	return termenv.String(msg).Foreground(p.Color("#00f0c8")).String()
}

// escape keeps user and model text from being read as markdown structure.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"#", `\#`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(strings.TrimSpace(s))
}
