package domain

import (
	"errors"

	"go.uber.org/multierr"
)

// EventType identifies a wizard event.
type EventType string

const (
	EventSubmitBriefing      EventType = "submit_briefing"
	EventApprove             EventType = "approve"
	EventAdjust              EventType = "adjust"
	EventNegotiateSceneCount EventType = "negotiate_scene_count"
	EventSubmitSceneCount    EventType = "submit_scene_count"
	EventSubmitStyle         EventType = "submit_style"
	EventSelectScene         EventType = "select_scene"
	EventRestart             EventType = "restart"

	// Result events, produced by the host after executing a Command.
	EventProposalReceived EventType = "proposal_received"
	EventImagesSettled    EventType = "images_settled"
)

// Event drives a wizard transition.
type Event interface {
	EventType() EventType
}

// SubmitBriefing submits the story premise. NumScenes below 1 falls back to the default.
type SubmitBriefing struct {
	Text      string
	NumScenes int
}

func (SubmitBriefing) EventType() EventType { return EventSubmitBriefing }

// Approve accepts the pending proposal.
type Approve struct{}

func (Approve) EventType() EventType { return EventApprove }

// Adjust asks to rework the proposal. It is accepted but does nothing yet.
type Adjust struct{}

func (Adjust) EventType() EventType { return EventAdjust }

// NegotiateSceneCount switches from the proposal to the scene count form.
type NegotiateSceneCount struct{}

func (NegotiateSceneCount) EventType() EventType { return EventNegotiateSceneCount }

// SubmitSceneCount fixes the number of scenes kept from the proposal.
type SubmitSceneCount struct {
	Count int
}

func (SubmitSceneCount) EventType() EventType { return EventSubmitSceneCount }

// SubmitStyle picks the visual style and starts image generation.
type SubmitStyle struct {
	Style string
}

func (SubmitStyle) EventType() EventType { return EventSubmitStyle }

// SelectScene moves the active scene indicator. It never touches the story.
type SelectScene struct {
	Index int
}

func (SelectScene) EventType() EventType { return EventSelectScene }

// Restart drops the current story and returns to the briefing, keeping the log.
type Restart struct{}

func (Restart) EventType() EventType { return EventRestart }

// ProposalReceived carries the outcome of a ProposeCommand.
type ProposalReceived struct {
	Proposal Proposal
	Err      error
}

func (ProposalReceived) EventType() EventType { return EventProposalReceived }

// ImagesSettled carries the outcome of a GenerateImagesCommand once every request settled.
type ImagesSettled struct {
	Style   string
	Results []SceneImageResult
}

func (ImagesSettled) EventType() EventType { return EventImagesSettled }

// Err combines the failures of the batch, one ImageGenerationError per failed scene.
func (e ImagesSettled) Err() error {
	var err error
	for _, r := range e.Results {
		if r.OK() {
			continue
		}
		cause := r.Err
		if cause == nil {
			cause = &GenerationError{Op: "generate image", Message: "no image returned"}
		}
		var sceneErr *ImageGenerationError
		if errors.As(cause, &sceneErr) {
			err = multierr.Append(err, cause)
			continue
		}
		err = multierr.Append(err, &ImageGenerationError{SceneID: r.SceneID, Err: cause})
	}
	return err
}

// Failed returns the number of scenes without an image in this batch.
func (e ImagesSettled) Failed() int {
	n := 0
	for _, r := range e.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// BlockedWhileBusy reports whether the event must wait for the in-flight call to settle.
// Only result events and read-only browsing get through while a call is outstanding.
func BlockedWhileBusy(ev Event) bool {
	switch ev.(type) {
	case ProposalReceived, ImagesSettled, SelectScene:
		return false
	}
	return true
}
