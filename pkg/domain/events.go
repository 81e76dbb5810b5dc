package domain

import (
	"context"
	"time"
)

// TransitionEvent describes one processed event, accepted or rejected.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Event     EventType `json:"event"`
	From      Step      `json:"from"`
	To        Step      `json:"to"`
	Rejected  bool      `json:"rejected,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// RemoteCallEvent describes one call to the generation backend.
type RemoteCallEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Command   CommandType   `json:"command"`
	SceneID   string        `json:"scene_id,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnRemoteCall func(context.Context, *RemoteCallEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			if h.OnTransition != nil {
				h.OnTransition(ctx, e)
			}
			if other.OnTransition != nil {
				other.OnTransition(ctx, e)
			}
		},
		OnRemoteCall: func(ctx context.Context, e *RemoteCallEvent) {
			if h.OnRemoteCall != nil {
				h.OnRemoteCall(ctx, e)
			}
			if other.OnRemoteCall != nil {
				other.OnRemoteCall(ctx, e)
			}
		},
	}
}
