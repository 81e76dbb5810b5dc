package domain

import (
	"encoding/json"
	"reflect"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`
	Revision  int    `json:"revision"`

	// Step is set when the step changed; Payload then carries the full new payload.
	Step    *Step       `json:"step,omitempty"`
	Payload StepPayload `json:"payload,omitempty"`

	Busy  *bool   `json:"busy,omitempty"`
	Error *string `json:"error,omitempty"`

	// Appended holds the conversation entries added since the old state.
	Appended []Message `json:"appended,omitempty"`

	// Images lists scenes whose image changed within the same step.
	Images []SceneImageDelta `json:"images,omitempty"`

	ActiveSceneIndex *int `json:"active_scene_index,omitempty"`
}

// SceneImageDelta is a scene image that appeared or changed.
type SceneImageDelta struct {
	SceneID string    `json:"scene_id"`
	Image   *ImageRef `json:"image"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
		Revision:  newState.Revision,
	}

	if oldState == nil || oldState.Step() != newState.Step() {
		step := newState.Step()
		diff.Step = &step
		diff.Payload = newState.Payload
	} else {
		diff.Images = diffImages(oldState.ApprovedStory(), newState.ApprovedStory())
		if oldState.ActiveSceneIndex() != newState.ActiveSceneIndex() {
			idx := newState.ActiveSceneIndex()
			diff.ActiveSceneIndex = &idx
		}
	}

	if oldState == nil || oldState.Busy != newState.Busy {
		diff.Busy = &newState.Busy
	}
	if oldState == nil {
		if newState.Error != "" {
			diff.Error = &newState.Error
		}
	} else if oldState.Error != newState.Error {
		diff.Error = &newState.Error
	}

	diff.Appended = diffLog(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffLog assumes the append-only behavior of the conversation log.
func diffLog(old, new *State) []Message {
	if old == nil {
		if len(new.Log) == 0 {
			return nil
		}
		return new.Log
	}
	if len(new.Log) > len(old.Log) {
		return new.Log[len(old.Log):]
	}
	return nil
}

func diffImages(old, new *Story) []SceneImageDelta {
	if new == nil {
		return nil
	}
	var deltas []SceneImageDelta
	for i, sc := range new.Scenes {
		var before *ImageRef
		if old != nil && i < len(old.Scenes) {
			before = old.Scenes[i].Image
		}
		if sc.Image != nil && !reflect.DeepEqual(before, sc.Image) {
			deltas = append(deltas, SceneImageDelta{SceneID: sc.ID, Image: sc.Image})
		}
	}
	return deltas
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Step == nil &&
		d.Busy == nil &&
		d.Error == nil &&
		len(d.Appended) == 0 &&
		len(d.Images) == 0 &&
		d.ActiveSceneIndex == nil
}

// UnmarshalJSON decodes the payload according to the step, when one is present.
func (d *StateDiff) UnmarshalJSON(data []byte) error {
	type alias StateDiff
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload,omitempty"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Payload = nil
	if d.Step == nil || len(aux.Payload) == 0 {
		return nil
	}
	payload, err := decodeStepPayload(*d.Step, aux.Payload)
	if err != nil {
		return err
	}
	d.Payload = payload
	return nil
}
