package storyweaver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/export"
	"github.com/aretw0/storyweaver/pkg/ports"
)

const (
	// DefaultImageTimeout bounds a single scene image request.
	DefaultImageTimeout = 90 * time.Second

	// DefaultMaxConcurrency bounds the image requests running at once.
	DefaultMaxConcurrency = 8
)

// Engine is the high-level entry point for the storyweaver library.
// It wraps the pure wizard state machine and executes its commands against a StoryService.
type Engine struct {
	service        ports.StoryService
	machine        wizard.Machine
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	imageTimeout   time.Duration
	maxConcurrency int
	defaultScenes  int
	now            func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithImageTimeout sets the per-request timeout of the image fan-out.
func WithImageTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.imageTimeout = d
	}
}

// WithMaxConcurrency bounds the number of image requests in flight.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		e.maxConcurrency = n
	}
}

// WithFanOutPolicy selects what a partially failed image batch does.
func WithFanOutPolicy(p domain.FanOutPolicy) Option {
	return func(e *Engine) {
		e.machine.Policy = p
	}
}

// WithMaxInputSize bounds the briefing and style text, in bytes.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.machine.MaxInputSize = n
	}
}

// WithDefaultScenes sets the scene count of new sessions.
func WithDefaultScenes(n int) Option {
	return func(e *Engine) {
		e.defaultScenes = n
	}
}

// New initializes a new Engine backed by the given story service.
func New(service ports.StoryService, opts ...Option) (*Engine, error) {
	if service == nil {
		return nil, errors.New("story service is required")
	}
	eng := &Engine{
		service:        service,
		imageTimeout:   DefaultImageTimeout,
		maxConcurrency: DefaultMaxConcurrency,
		defaultScenes:  domain.DefaultNumScenes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.imageTimeout <= 0 {
		eng.imageTimeout = DefaultImageTimeout
	}
	if eng.maxConcurrency <= 0 {
		eng.maxConcurrency = DefaultMaxConcurrency
	}
	if _, err := domain.ParseFanOutPolicy(string(eng.machine.Policy)); err != nil {
		return nil, err
	}
	return eng, nil
}

// Start creates the initial state of a session. An empty sessionID gets a random one.
func (e *Engine) Start(ctx context.Context, sessionID string) *domain.State {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	state := domain.NewState(sessionID, e.defaultScenes)
	e.logger.DebugContext(ctx, "session started", "session_id", sessionID)
	return state
}

// Apply runs a single transition and reports it to the lifecycle hooks.
// It performs no remote call; the returned commands are left to the caller.
func (e *Engine) Apply(ctx context.Context, state *domain.State, ev domain.Event) wizard.Result {
	res := e.machine.Transition(state, ev)

	te := &domain.TransitionEvent{
		Timestamp: e.now(),
		SessionID: res.State.SessionID,
		Event:     ev.EventType(),
		From:      state.Step(),
		To:        res.State.Step(),
		Rejected:  res.Rejected != nil,
	}
	if res.Rejected != nil {
		te.Reason = res.Rejected.Error()
		e.logger.DebugContext(ctx, "event rejected",
			"session_id", te.SessionID,
			"event", te.Event,
			"step", te.From,
			"err", res.Rejected,
		)
	} else {
		e.logger.DebugContext(ctx, "transition",
			"session_id", te.SessionID,
			"event", te.Event,
			"from", te.From,
			"to", te.To,
			"revision", res.State.Revision,
		)
	}
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, te)
	}
	return res
}

// Execute performs a command against the story service and returns the result event.
// Remote failures are carried inside the event; the error only reports an unknown command.
func (e *Engine) Execute(ctx context.Context, sessionID string, cmd domain.Command) (domain.Event, error) {
	switch c := cmd.(type) {
	case domain.ProposeCommand:
		return e.propose(ctx, sessionID, c), nil
	case domain.GenerateImagesCommand:
		return e.generateImages(ctx, sessionID, c), nil
	}
	return nil, fmt.Errorf("unknown command %T", cmd)
}

// Dispatch applies ev and then executes every resulting command, feeding the outcomes
// back until the state settles. The returned error is the guard rejection, if any.
func (e *Engine) Dispatch(ctx context.Context, state *domain.State, ev domain.Event) (*domain.State, error) {
	res := e.Apply(ctx, state, ev)
	if res.Rejected != nil {
		return res.State, res.Rejected
	}

	current := res.State
	pending := res.Commands
	for len(pending) > 0 {
		cmd := pending[0]
		pending = pending[1:]

		result, err := e.Execute(ctx, current.SessionID, cmd)
		if err != nil {
			return current, err
		}
		next := e.Apply(ctx, current, result)
		if next.Rejected != nil {
			return current, next.Rejected
		}
		current = next.State
		pending = append(pending, next.Commands...)
	}
	return current, nil
}

// Export renders the approved story of the state as a standalone HTML document.
func (e *Engine) Export(state *domain.State) ([]byte, error) {
	story := state.ApprovedStory()
	if story == nil {
		return nil, &domain.ExportError{Format: "html", Err: domain.ErrNoStory}
	}
	return export.HTML(*story)
}

// Machine returns the state machine configured for this engine.
func (e *Engine) Machine() wizard.Machine {
	return e.machine
}

func (e *Engine) propose(ctx context.Context, sessionID string, cmd domain.ProposeCommand) domain.Event {
	start := e.now()
	proposal, err := e.service.ProposeStory(ctx, cmd.Briefing, cmd.NumScenes)
	e.reportCall(ctx, &domain.RemoteCallEvent{
		Timestamp: start,
		SessionID: sessionID,
		Command:   domain.CommandPropose,
		Duration:  e.now().Sub(start),
		Err:       err,
	})
	if err != nil {
		return domain.ProposalReceived{Err: err}
	}
	if proposal.Title == "" {
		proposal.Title = cmd.Briefing
	}
	return domain.ProposalReceived{Proposal: proposal}
}

// generateImages issues one request per scene, bounded by maxConcurrency, and waits for
// all of them. Each request gets its own timeout; one failure does not cancel the others.
func (e *Engine) generateImages(ctx context.Context, sessionID string, cmd domain.GenerateImagesCommand) domain.Event {
	results := make([]domain.SceneImageResult, len(cmd.Requests))

	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for i, req := range cmd.Requests {
		g.Go(func() error {
			results[i] = e.generateImage(ctx, sessionID, cmd.Style, req)
			return nil
		})
	}
	_ = g.Wait()

	settled := domain.ImagesSettled{Style: cmd.Style, Results: results}
	if err := settled.Err(); err != nil {
		e.logger.WarnContext(ctx, "image fan-out finished with failures",
			"session_id", sessionID,
			"style", cmd.Style,
			"failed", settled.Failed(),
			"total", len(results),
			"err", err,
		)
	}
	return settled
}

func (e *Engine) generateImage(ctx context.Context, sessionID, style string, req domain.ImageRequest) domain.SceneImageResult {
	cctx, cancel := context.WithTimeout(ctx, e.imageTimeout)
	defer cancel()

	start := e.now()
	img, err := e.service.GenerateSceneImage(cctx, req.Description, style)
	if err == nil && img.IsZero() {
		err = &domain.GenerationError{Op: "generate image", Message: "no image returned"}
	}
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = &domain.GenerationError{
			Op:      "generate image",
			Message: fmt.Sprintf("timed out after %s", e.imageTimeout),
			Err:     err,
		}
	}
	e.reportCall(ctx, &domain.RemoteCallEvent{
		Timestamp: start,
		SessionID: sessionID,
		Command:   domain.CommandGenerateImages,
		SceneID:   req.SceneID,
		Duration:  e.now().Sub(start),
		Err:       err,
	})

	if err != nil {
		return domain.SceneImageResult{
			SceneID: req.SceneID,
			Err:     &domain.ImageGenerationError{SceneID: req.SceneID, Err: err},
		}
	}
	if img.Style == "" {
		img.Style = style
	}
	return domain.SceneImageResult{SceneID: req.SceneID, Image: &img}
}

func (e *Engine) reportCall(ctx context.Context, ev *domain.RemoteCallEvent) {
	if ev.Err != nil {
		e.logger.DebugContext(ctx, "remote call failed",
			"session_id", ev.SessionID,
			"command", ev.Command,
			"scene_id", ev.SceneID,
			"duration", ev.Duration,
			"err", ev.Err,
		)
	}
	if e.hooks.OnRemoteCall != nil {
		e.hooks.OnRemoteCall(ctx, ev)
	}
}
