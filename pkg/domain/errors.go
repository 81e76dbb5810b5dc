package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrGuardRejected is matched by every error describing a rejected event.
var ErrGuardRejected = errors.New("event rejected")

// ErrBusy is returned when a user action arrives while a remote call is in flight.
var ErrBusy = errors.New("a request is already in flight")

// ErrUnexpectedEvent is returned when an event is not accepted by the current step.
var ErrUnexpectedEvent = errors.New("event not accepted in current step")

// ErrNoStory is returned when an operation needs an approved story and there is none.
var ErrNoStory = errors.New("no approved story")

// ValidationError reports missing or invalid user input, caught before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GuardError describes why the state machine refused an event.
// The state is left unchanged whenever a GuardError is reported.
type GuardError struct {
	Step  Step
	Event EventType
	Cause error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s rejected at %s: %v", e.Event, e.Step, e.Cause)
}

func (e *GuardError) Unwrap() error { return e.Cause }

// Is makes every GuardError match ErrGuardRejected.
func (e *GuardError) Is(target error) bool { return target == ErrGuardRejected }

// GenerationError reports a failed call to the generation backend.
type GenerationError struct {
	// Op is the backend operation ("propose story", "generate image").
	Op string
	// Status is the HTTP status returned by the backend, 0 for transport errors.
	Status int
	// Message is the human readable reason, taken from the backend when available.
	Message string
	// Raw holds the unparsed response body when parsing failed.
	Raw string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.Status)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ImageGenerationError reports the failure of a single scene in an image fan-out.
type ImageGenerationError struct {
	SceneID string
	Err     error
}

func (e *ImageGenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.SceneID, e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }

// ExportError reports a failure to serialize a story.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// UserMessage turns an error into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var gen *GenerationError
	if errors.As(err, &gen) && gen.Message != "" {
		return gen.Message
	}
	return err.Error()
}
