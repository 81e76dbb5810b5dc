package ports

import (
	"context"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// StateStore defines the interface for holding wizard sessions while they are alive.
type StateStore interface {
	// Save stores the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the known sessions.
	List(ctx context.Context) ([]string, error)
}
