package wizard

import (
	"errors"
	"fmt"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// Result is the outcome of a single transition.
type Result struct {
	// State is the next state. When the event was rejected it is the input state.
	State *domain.State

	// Commands lists the remote work the host must perform.
	Commands []domain.Command

	// Rejected is a *domain.GuardError when the event was refused.
	Rejected error
}

// Accepted reports whether the event changed (or was allowed to leave) the state.
func (r Result) Accepted() bool {
	return r.Rejected == nil
}

// Machine holds the knobs of the state machine. The zero value is ready to use.
type Machine struct {
	// Policy selects the partial fan-out behavior. Empty means FanOutAllOrNothing.
	Policy domain.FanOutPolicy

	// MaxInputSize bounds briefing and style text. Zero means DefaultMaxInputSize.
	MaxInputSize int
}

// Transition applies ev to s using the default Machine.
func Transition(s *domain.State, ev domain.Event) Result {
	return Machine{}.Transition(s, ev)
}

// Transition applies ev to s. The input state is never modified.
func (m Machine) Transition(s *domain.State, ev domain.Event) Result {
	if s == nil {
		s = domain.NewState("", domain.DefaultNumScenes)
	}
	if ev == nil {
		return reject(s, "", domain.ErrUnexpectedEvent)
	}

	// Read-only browsing is allowed while a remote call is in flight.
	if sel, ok := ev.(domain.SelectScene); ok {
		return m.selectScene(s, sel)
	}

	if domain.BlockedWhileBusy(ev) && s.Busy {
		return reject(s, ev.EventType(), domain.ErrBusy)
	}

	switch p := s.Payload.(type) {
	case nil:
		return m.onBriefing(s, domain.BriefingPayload{NumScenes: domain.DefaultNumScenes}, ev)
	case domain.BriefingPayload:
		return m.onBriefing(s, p, ev)
	case domain.ProposalPayload:
		return m.onProposal(s, p, ev)
	case domain.SceneCountPayload:
		return m.onSceneCount(s, p, ev)
	case domain.StylePayload:
		return m.onStyle(s, p, ev)
	case domain.ImagesPayload:
		return m.onImages(s, p, ev)
	}
	return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
}

// Replay folds events over the initial state, skipping rejected ones.
// Commands are discarded: replaying result events reproduces their effect.
func (m Machine) Replay(initial *domain.State, events ...domain.Event) *domain.State {
	s := initial
	for _, ev := range events {
		s = m.Transition(s, ev).State
	}
	return s
}

func (m Machine) policy() domain.FanOutPolicy {
	if m.Policy == "" {
		return domain.FanOutAllOrNothing
	}
	return m.Policy
}

func (m Machine) sanitize(field, text string) (string, error) {
	clean, err := SanitizeInput(text, m.MaxInputSize)
	if err != nil {
		return "", &domain.ValidationError{Field: field, Reason: err.Error()}
	}
	if clean == "" {
		return "", &domain.ValidationError{Field: field, Reason: "must not be blank"}
	}
	return clean, nil
}

func reject(s *domain.State, ev domain.EventType, cause error) Result {
	return Result{
		State:    s,
		Rejected: &domain.GuardError{Step: s.Step(), Event: ev, Cause: cause},
	}
}

// advance returns a copy of s with the revision bumped.
func advance(s *domain.State) *domain.State {
	next := s.Clone()
	next.Revision++
	return next
}

func (m Machine) selectScene(s *domain.State, ev domain.SelectScene) Result {
	story := s.ApprovedStory()
	if story == nil {
		return reject(s, ev.EventType(), domain.ErrNoStory)
	}

	idx := clampIndex(ev.Index, len(story.Scenes))
	if idx == s.ActiveSceneIndex() {
		return Result{State: s}
	}

	next := advance(s)
	switch p := next.Payload.(type) {
	case domain.StylePayload:
		p.ActiveSceneIndex = idx
		next.Payload = p
	case domain.ImagesPayload:
		p.ActiveSceneIndex = idx
		next.Payload = p
	}
	return Result{State: next}
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (m Machine) onBriefing(s *domain.State, p domain.BriefingPayload, ev domain.Event) Result {
	switch e := ev.(type) {
	case domain.SubmitBriefing:
		text, err := m.sanitize("briefing", e.Text)
		if err != nil {
			return reject(s, e.EventType(), err)
		}
		n := e.NumScenes
		if n < 1 {
			n = p.NumScenes
		}
		if n < 1 {
			n = domain.DefaultNumScenes
		}

		next := advance(s)
		next.Payload = domain.BriefingPayload{NumScenes: n}
		next.Log = append(next.Log, userSays(text))
		next.Busy = true
		next.Error = ""
		return Result{
			State:    next,
			Commands: []domain.Command{domain.ProposeCommand{Briefing: text, NumScenes: n}},
		}

	case domain.ProposalReceived:
		if !s.Busy {
			return reject(s, e.EventType(), domain.ErrUnexpectedEvent)
		}
		next := advance(s)
		next.Busy = false

		err := e.Err
		if err == nil && len(e.Proposal.Scenes) == 0 {
			err = &domain.GenerationError{Op: "propose story", Message: msgEmptyProposal}
		}
		if err != nil {
			msg := domain.UserMessage(err)
			next.Error = msg
			next.Log = append(next.Log, systemSays(fmt.Sprintf(fmtProposalFailed, msg)))
			return Result{State: next}
		}

		next.Payload = domain.ProposalPayload{Proposal: e.Proposal.Clone(), NumScenes: p.NumScenes}
		next.Error = ""
		next.Log = append(next.Log, systemSays(msgProposalReady))
		return Result{State: next}
	}
	return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
}

func (m Machine) onProposal(s *domain.State, p domain.ProposalPayload, ev domain.Event) Result {
	switch ev.(type) {
	case domain.Approve:
		next := advance(s)
		next.Payload = domain.StylePayload{Story: p.Proposal.Materialize(0)}
		next.Log = append(next.Log, systemSays(msgChooseStyle))
		return Result{State: next}

	case domain.Adjust:
		// Accepted so hosts can offer the action, but there is nothing to adjust yet.
		return Result{State: s}

	case domain.NegotiateSceneCount:
		next := advance(s)
		next.Payload = domain.SceneCountPayload{
			Proposal: p.Proposal.Clone(),
			Count:    len(p.Proposal.Scenes),
		}
		return Result{State: next}
	}
	return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
}

func (m Machine) onSceneCount(s *domain.State, p domain.SceneCountPayload, ev domain.Event) Result {
	e, ok := ev.(domain.SubmitSceneCount)
	if !ok {
		return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
	}
	n := e.Count
	if n < 1 {
		n = 1
	}

	next := advance(s)
	next.Payload = domain.StylePayload{Story: p.Proposal.Materialize(n)}
	next.Log = append(next.Log, userSays(sceneCountMessage(n)), systemSays(msgChooseStyle))
	return Result{State: next}
}

func (m Machine) onStyle(s *domain.State, p domain.StylePayload, ev domain.Event) Result {
	switch e := ev.(type) {
	case domain.SubmitStyle:
		style, err := m.sanitize("style", e.Style)
		if err != nil {
			return reject(s, e.EventType(), err)
		}
		next := advance(s)
		next.Log = append(next.Log, userSays(fmt.Sprintf(fmtChosenStyle, style)))
		next.Error = ""

		requests := imageRequests(p.Story.MissingImages(style))
		if len(requests) == 0 {
			// Every scene already has an image in this style.
			next.Payload = domain.ImagesPayload{
				Story:            p.Story.Clone(),
				Style:            style,
				ActiveSceneIndex: p.ActiveSceneIndex,
			}
			next.Log = append(next.Log, systemSays(fmt.Sprintf(fmtImagesReady, style)))
			return Result{State: next}
		}

		next.Payload = domain.StylePayload{
			Story:            p.Story.Clone(),
			Style:            style,
			ActiveSceneIndex: p.ActiveSceneIndex,
		}
		next.Log = append(next.Log, systemSays(msgGenerating))
		next.Busy = true
		return Result{
			State:    next,
			Commands: []domain.Command{domain.GenerateImagesCommand{Style: style, Requests: requests}},
		}

	case domain.ImagesSettled:
		if !s.Busy || e.Style != p.Style {
			return reject(s, e.EventType(), domain.ErrUnexpectedEvent)
		}
		story, failures := settle(p.Story, e)
		next := advance(s)
		next.Busy = false

		if len(failures) > 0 && m.policy() == domain.FanOutAllOrNothing {
			msg := failureSummary(failures)
			next.Payload = domain.StylePayload{
				Story:            story,
				Style:            p.Style,
				ActiveSceneIndex: p.ActiveSceneIndex,
				Failures:         failures,
			}
			next.Error = msg
			next.Log = append(next.Log, systemSays(fmt.Sprintf(fmtImagesFailed, msg)))
			return Result{State: next}
		}

		next.Payload = domain.ImagesPayload{
			Story:            story,
			Style:            p.Style,
			ActiveSceneIndex: p.ActiveSceneIndex,
			Failures:         failures,
		}
		finishBatch(next, p.Style, failures)
		return Result{State: next}
	}
	return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
}

func (m Machine) onImages(s *domain.State, p domain.ImagesPayload, ev domain.Event) Result {
	switch e := ev.(type) {
	case domain.SubmitStyle:
		style, err := m.sanitize("style", e.Style)
		if err != nil {
			return reject(s, e.EventType(), err)
		}
		scenes := p.Story.MissingImages(style)
		if len(scenes) == 0 {
			scenes = p.Story.Scenes
		}

		next := advance(s)
		next.Payload = domain.ImagesPayload{
			Story:            p.Story.Clone(),
			Style:            style,
			ActiveSceneIndex: p.ActiveSceneIndex,
		}
		next.Log = append(next.Log, userSays(fmt.Sprintf(fmtChosenStyle, style)), systemSays(msgGenerating))
		next.Busy = true
		next.Error = ""
		return Result{
			State:    next,
			Commands: []domain.Command{domain.GenerateImagesCommand{Style: style, Requests: imageRequests(scenes)}},
		}

	case domain.ImagesSettled:
		if !s.Busy || e.Style != p.Style {
			return reject(s, e.EventType(), domain.ErrUnexpectedEvent)
		}
		story, failures := settle(p.Story, e)
		next := advance(s)
		next.Busy = false
		next.Payload = domain.ImagesPayload{
			Story:            story,
			Style:            p.Style,
			ActiveSceneIndex: p.ActiveSceneIndex,
			Failures:         failures,
		}
		finishBatch(next, p.Style, failures)
		return Result{State: next}

	case domain.Restart:
		n := len(p.Story.Scenes)
		if n < 1 {
			n = domain.DefaultNumScenes
		}
		next := advance(s)
		next.Payload = domain.BriefingPayload{NumScenes: n}
		next.Error = ""
		return Result{State: next}
	}
	return reject(s, ev.EventType(), domain.ErrUnexpectedEvent)
}

// finishBatch records the outcome of a batch that leaves the wizard in Images.
func finishBatch(next *domain.State, style string, failures []domain.SceneFailure) {
	if len(failures) == 0 {
		next.Error = ""
		next.Log = append(next.Log, systemSays(fmt.Sprintf(fmtImagesReady, style)))
		return
	}
	msg := failureSummary(failures)
	next.Error = msg
	next.Log = append(next.Log,
		systemSays(fmt.Sprintf(fmtImagesFailed, msg)),
		systemSays(fmt.Sprintf(fmtImagesReady, style)),
	)
}

// settle merges a batch into the story and lists the scenes that failed.
// A scene with at least one successful result in the batch is not reported as failed.
func settle(story domain.Story, e domain.ImagesSettled) (domain.Story, []domain.SceneFailure) {
	results := make([]domain.SceneImageResult, 0, len(e.Results))
	ok := make(map[string]bool, len(e.Results))
	for _, r := range e.Results {
		if !r.OK() {
			continue
		}
		img := *r.Image
		if img.Style == "" {
			img.Style = e.Style
		}
		r.Image = &img
		results = append(results, r)
		ok[r.SceneID] = true
	}

	var failures []domain.SceneFailure
	reported := make(map[string]bool)
	for _, r := range e.Results {
		if r.OK() || ok[r.SceneID] || reported[r.SceneID] || story.SceneIndex(r.SceneID) < 0 {
			continue
		}
		reported[r.SceneID] = true
		failures = append(failures, domain.SceneFailure{SceneID: r.SceneID, Message: resultMessage(r)})
	}

	out := story.Clone()
	out.Scenes = domain.ReconcileScenes(story.Scenes, results)
	return out, failures
}

func resultMessage(r domain.SceneImageResult) string {
	if r.Err == nil {
		return msgNoImageResult
	}
	var sceneErr *domain.ImageGenerationError
	if errors.As(r.Err, &sceneErr) {
		return domain.UserMessage(sceneErr.Err)
	}
	return domain.UserMessage(r.Err)
}

func imageRequests(scenes []domain.Scene) []domain.ImageRequest {
	reqs := make([]domain.ImageRequest, 0, len(scenes))
	for _, sc := range scenes {
		reqs = append(reqs, domain.ImageRequest{SceneID: sc.ID, Description: sc.Description})
	}
	return reqs
}
