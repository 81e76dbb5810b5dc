package storygen

import "fmt"

// SystemPrompt frames the story completion.
const SystemPrompt = "You are a helpful assistant for creating interactive stories."

// StoryPrompt asks for a minified JSON array of numScenes scenes.
func StoryPrompt(briefing string, numScenes int) string {
	return fmt.Sprintf("Create a linear interactive story based on the following briefing: \"%s\". "+
		"The story should have %d scenes. For each scene, provide:\n"+
		"- Scene description\n"+
		"- Character dialogue (if any)\n"+
		"- Narration (if any)\n"+
		"Return ONLY valid minified JSON (no markdown, no explanation, no code block, no extra text) "+
		"as a JSON array of scenes, each with a description, dialogue, and narration fields.",
		briefing, numScenes)
}

// ImagePrompt combines a scene description with an optional style.
func ImagePrompt(description, style string) string {
	if style == "" {
		return description
	}
	return description + " in the style of " + style
}
