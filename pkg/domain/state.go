package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step is the wizard step a session is in.
type Step string

const (
	StepBriefing   Step = "briefing"
	StepProposal   Step = "proposal"
	StepSceneCount Step = "scene_count"
	StepStyle      Step = "style"
	StepImages     Step = "images"
)

// Speaker identifies the author of a conversation entry.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// Message is one entry of the conversation log.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// SceneFailure records a scene whose image could not be generated.
type SceneFailure struct {
	SceneID string `json:"scene_id"`
	Message string `json:"message"`
}

// StepPayload is the step-specific part of a State.
// Exactly one payload type exists per Step, so fields that belong to another step
// cannot be set by construction.
type StepPayload interface {
	Step() Step
}

// BriefingPayload holds the input form of the Briefing step.
type BriefingPayload struct {
	NumScenes int `json:"num_scenes"`
}

func (BriefingPayload) Step() Step { return StepBriefing }

// ProposalPayload holds the proposal awaiting approval.
type ProposalPayload struct {
	Proposal  Proposal `json:"proposal"`
	NumScenes int      `json:"num_scenes"`
}

func (ProposalPayload) Step() Step { return StepProposal }

// SceneCountPayload holds the proposal while the scene count is negotiated.
type SceneCountPayload struct {
	Proposal Proposal `json:"proposal"`
	Count    int      `json:"count"`
}

func (SceneCountPayload) Step() Step { return StepSceneCount }

// StylePayload holds the approved story while the user picks a style.
type StylePayload struct {
	Story            Story          `json:"story"`
	Style            string         `json:"style,omitempty"`
	ActiveSceneIndex int            `json:"active_scene_index"`
	Failures         []SceneFailure `json:"failures,omitempty"`
}

func (StylePayload) Step() Step { return StepStyle }

// ImagesPayload holds the illustrated story being viewed.
type ImagesPayload struct {
	Story            Story          `json:"story"`
	Style            string         `json:"style"`
	ActiveSceneIndex int            `json:"active_scene_index"`
	Failures         []SceneFailure `json:"failures,omitempty"`
}

func (ImagesPayload) Step() Step { return StepImages }

// State is the snapshot of one wizard session.
// It is treated as a value: transitions return a new State and never mutate their input.
type State struct {
	SessionID string

	// Revision increases by one on every accepted transition.
	Revision int

	// Payload carries the step and its data.
	Payload StepPayload

	// Log is the append-only conversation.
	Log []Message

	// Busy is set while a propose or image fan-out call is in flight.
	Busy bool

	// BusySince records when Busy was set by the host that started the call.
	// The pure transitions copy it but never set it.
	BusySince time.Time

	// Error is the last user-visible failure, cleared by the next accepted submission.
	Error string
}

// NewState creates a session in the Briefing step.
func NewState(sessionID string, numScenes int) *State {
	if numScenes < 1 {
		numScenes = DefaultNumScenes
	}
	return &State{
		SessionID: sessionID,
		Payload:   BriefingPayload{NumScenes: numScenes},
		Log:       []Message{},
	}
}

// Step returns the current wizard step.
func (s *State) Step() Step {
	if s == nil || s.Payload == nil {
		return StepBriefing
	}
	return s.Payload.Step()
}

// PendingProposal returns the proposal awaiting approval, or nil.
func (s *State) PendingProposal() *Proposal {
	switch p := s.Payload.(type) {
	case ProposalPayload:
		return &p.Proposal
	case SceneCountPayload:
		return &p.Proposal
	}
	return nil
}

// ApprovedStory returns the materialized story, or nil before approval.
func (s *State) ApprovedStory() *Story {
	switch p := s.Payload.(type) {
	case StylePayload:
		return &p.Story
	case ImagesPayload:
		return &p.Story
	}
	return nil
}

// SelectedStyle returns the last submitted style, or "".
func (s *State) SelectedStyle() string {
	switch p := s.Payload.(type) {
	case StylePayload:
		return p.Style
	case ImagesPayload:
		return p.Style
	}
	return ""
}

// ActiveSceneIndex returns the scene currently shown; 0 when there is no story.
func (s *State) ActiveSceneIndex() int {
	switch p := s.Payload.(type) {
	case StylePayload:
		return p.ActiveSceneIndex
	case ImagesPayload:
		return p.ActiveSceneIndex
	}
	return 0
}

// Failures returns the scenes whose last image request failed.
func (s *State) Failures() []SceneFailure {
	switch p := s.Payload.(type) {
	case StylePayload:
		return p.Failures
	case ImagesPayload:
		return p.Failures
	}
	return nil
}

// Clone returns a deep copy that can be modified without affecting s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Log = make([]Message, len(s.Log))
	copy(next.Log, s.Log)
	next.Payload = clonePayload(s.Payload)
	return &next
}

func clonePayload(p StepPayload) StepPayload {
	switch v := p.(type) {
	case ProposalPayload:
		v.Proposal = v.Proposal.Clone()
		return v
	case SceneCountPayload:
		v.Proposal = v.Proposal.Clone()
		return v
	case StylePayload:
		v.Story = v.Story.Clone()
		v.Failures = append([]SceneFailure(nil), v.Failures...)
		return v
	case ImagesPayload:
		v.Story = v.Story.Clone()
		v.Failures = append([]SceneFailure(nil), v.Failures...)
		return v
	}
	return p
}

type stateJSON struct {
	SessionID string          `json:"session_id"`
	Revision  int             `json:"revision"`
	Step      Step            `json:"step"`
	Payload   json.RawMessage `json:"payload"`
	Log       []Message       `json:"log"`
	Busy      bool            `json:"busy"`
	BusySince *time.Time      `json:"busy_since,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// MarshalJSON encodes the payload next to its step tag.
func (s State) MarshalJSON() ([]byte, error) {
	payload := s.Payload
	if payload == nil {
		payload = BriefingPayload{NumScenes: DefaultNumScenes}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", payload.Step(), err)
	}
	log := s.Log
	if log == nil {
		log = []Message{}
	}
	aux := stateJSON{
		SessionID: s.SessionID,
		Revision:  s.Revision,
		Step:      payload.Step(),
		Payload:   raw,
		Log:       log,
		Busy:      s.Busy,
		Error:     s.Error,
	}
	if !s.BusySince.IsZero() {
		since := s.BusySince
		aux.BusySince = &since
	}
	return json.Marshal(aux)
}

// UnmarshalJSON decodes the payload according to its step tag.
func (s *State) UnmarshalJSON(data []byte) error {
	var aux stateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := decodeStepPayload(aux.Step, aux.Payload)
	if err != nil {
		return err
	}

	*s = State{
		SessionID: aux.SessionID,
		Revision:  aux.Revision,
		Payload:   payload,
		Log:       aux.Log,
		Busy:      aux.Busy,
		Error:     aux.Error,
	}
	if aux.BusySince != nil {
		s.BusySince = *aux.BusySince
	}
	if s.Log == nil {
		s.Log = []Message{}
	}
	return nil
}

func decodeStepPayload(step Step, raw json.RawMessage) (StepPayload, error) {
	var payload StepPayload
	var err error
	switch step {
	case StepBriefing, "":
		payload, err = decodePayload[BriefingPayload](raw)
	case StepProposal:
		payload, err = decodePayload[ProposalPayload](raw)
	case StepSceneCount:
		payload, err = decodePayload[SceneCountPayload](raw)
	case StepStyle:
		payload, err = decodePayload[StylePayload](raw)
	case StepImages:
		payload, err = decodePayload[ImagesPayload](raw)
	default:
		return nil, fmt.Errorf("unknown step %q", step)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", step, err)
	}
	return payload, nil
}

func decodePayload[T StepPayload](raw json.RawMessage) (StepPayload, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
