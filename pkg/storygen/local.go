package storygen

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

// Messages reported to clients, kept stable because frontends display them.
const (
	MsgMissingStoryFields = "Missing required fields: briefing, numScenes"
	MsgMissingDescription = "Missing required field: sceneDescription"
	MsgUnparseableStory   = "Failed to parse story output from AI."
	MsgNoImage            = "No image URL returned from OpenAI."
)

const (
	opPropose = "propose story"
	opImage   = "generate image"
)

// Local is a ports.StoryService that calls a Generator in-process.
type Local struct {
	gen    ports.Generator
	logger *slog.Logger
}

var _ ports.StoryService = (*Local)(nil)

// LocalOption configures Local.
type LocalOption func(*Local)

// WithLogger sets the logger used to report unparseable model output.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// NewLocal creates a story service on top of gen.
func NewLocal(gen ports.Generator, opts ...LocalOption) *Local {
	l := &Local{gen: gen, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ProposeStory asks the generator for numScenes scenes and parses the answer.
// The proposal title is the briefing.
func (l *Local) ProposeStory(ctx context.Context, briefing string, numScenes int) (domain.Proposal, error) {
	briefing = strings.TrimSpace(briefing)
	if briefing == "" || numScenes < 1 {
		return domain.Proposal{}, &domain.GenerationError{Op: opPropose, Status: 400, Message: MsgMissingStoryFields}
	}

	raw, err := l.gen.CompleteStory(ctx, SystemPrompt, StoryPrompt(briefing, numScenes))
	if err != nil {
		return domain.Proposal{}, asGenerationError(opPropose, err)
	}

	scenes, err := ParseScenes(raw)
	if err != nil {
		l.logger.WarnContext(ctx, "story output is not a scene array", "raw", raw, "err", err)
		return domain.Proposal{}, &domain.GenerationError{
			Op:      opPropose,
			Status:  500,
			Message: MsgUnparseableStory,
			Raw:     raw,
			Err:     err,
		}
	}
	return domain.Proposal{Title: briefing, Scenes: scenes}, nil
}

// GenerateSceneImage renders the description in the given style.
func (l *Local) GenerateSceneImage(ctx context.Context, description, style string) (domain.ImageRef, error) {
	if strings.TrimSpace(description) == "" {
		return domain.ImageRef{}, &domain.GenerationError{Op: opImage, Status: 400, Message: MsgMissingDescription}
	}

	img, err := l.gen.GenerateImage(ctx, ImagePrompt(description, style))
	if err != nil {
		return domain.ImageRef{}, asGenerationError(opImage, err)
	}
	if img.IsZero() {
		return domain.ImageRef{}, &domain.GenerationError{Op: opImage, Status: 500, Message: MsgNoImage}
	}
	img.Style = style
	return img, nil
}

// asGenerationError keeps backend errors that are already typed and wraps the rest.
func asGenerationError(op string, err error) error {
	var gen *domain.GenerationError
	if errors.As(err, &gen) {
		if gen.Op == "" {
			copied := *gen
			copied.Op = op
			return &copied
		}
		return gen
	}
	return &domain.GenerationError{Op: op, Status: 500, Message: err.Error(), Err: err}
}
