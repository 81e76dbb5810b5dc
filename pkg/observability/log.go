package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one record per accepted transition and per
// remote call. Rejections are logged at debug level since they are user errors.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if e.Rejected {
				logger.DebugContext(ctx, "event_rejected",
					"session_id", e.SessionID,
					"event", e.Event,
					"step", e.From,
					"reason", e.Reason,
				)
				return
			}
			logger.InfoContext(ctx, "transition",
				"session_id", e.SessionID,
				"event", e.Event,
				"from", e.From,
				"to", e.To,
			)
		},
		OnRemoteCall: func(ctx context.Context, e *domain.RemoteCallEvent) {
			attrs := []any{
				"session_id", e.SessionID,
				"command", e.Command,
				"duration", e.Duration,
			}
			if e.SceneID != "" {
				attrs = append(attrs, "scene_id", e.SceneID)
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "remote_call_failed", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "remote_call", attrs...)
		},
	}
}
