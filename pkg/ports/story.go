package ports

import (
	"context"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// StoryService is the generation backend consumed by the wizard.
// Calls are single request/response with no automatic retry; resubmitting issues a
// fresh call.
type StoryService interface {
	// ProposeStory asks for a proposal of numScenes scenes (numScenes >= 1).
	// Failures are reported as *domain.GenerationError.
	ProposeStory(ctx context.Context, briefing string, numScenes int) (domain.Proposal, error)

	// GenerateSceneImage renders one scene description in the given style.
	// Failures are reported as *domain.GenerationError.
	GenerateSceneImage(ctx context.Context, description, style string) (domain.ImageRef, error)
}

// Generator performs the raw model calls behind a story backend.
type Generator interface {
	// CompleteStory returns the raw model output for a story prompt.
	CompleteStory(ctx context.Context, system, prompt string) (string, error)

	// GenerateImage returns a reference to an image rendered from the prompt.
	// A zero ImageRef with a nil error means the backend returned no image.
	GenerateImage(ctx context.Context, prompt string) (domain.ImageRef, error)
}
