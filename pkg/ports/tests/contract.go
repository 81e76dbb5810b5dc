package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

// StateStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.StateStore.
func StateStoreContractTest(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()

	// 1. Load non-existent session
	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-session")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	// 2. Save and load a session with a story payload
	t.Run("Save_Load", func(t *testing.T) {
		state := &domain.State{
			SessionID: "contract-1",
			Revision:  3,
			Payload: domain.StylePayload{
				Story: domain.Proposal{
					Title:  "contract",
					Scenes: []domain.ProposedScene{{Description: "a"}, {Description: "b"}},
				}.Materialize(0),
				Style: "Anime",
			},
			Log: []domain.Message{{Speaker: domain.SpeakerUser, Text: "hello"}},
		}
		if err := store.Save(ctx, state.SessionID, state); err != nil {
			t.Fatalf("failed to save state: %v", err)
		}

		loaded, err := store.Load(ctx, state.SessionID)
		if err != nil {
			t.Fatalf("failed to load state: %v", err)
		}
		if loaded.Step() != domain.StepStyle {
			t.Errorf("expected step %s, got %s", domain.StepStyle, loaded.Step())
		}
		story := loaded.ApprovedStory()
		if story == nil || len(story.Scenes) != 2 || story.Scenes[1].ID != "scene-1" {
			t.Errorf("story mismatch: %+v", story)
		}
		if len(loaded.Log) != 1 || loaded.Log[0].Text != "hello" {
			t.Errorf("log mismatch: %+v", loaded.Log)
		}
		if loaded.Revision != 3 {
			t.Errorf("expected revision 3, got %d", loaded.Revision)
		}
	})

	// 3. Stored state is isolated from the caller's copy
	t.Run("Isolation", func(t *testing.T) {
		state := domain.NewState("contract-2", 2)
		if err := store.Save(ctx, state.SessionID, state); err != nil {
			t.Fatalf("failed to save state: %v", err)
		}
		state.Log = append(state.Log, domain.Message{Text: "mutated after save"})

		loaded, err := store.Load(ctx, state.SessionID)
		if err != nil {
			t.Fatalf("failed to load state: %v", err)
		}
		if len(loaded.Log) != 0 {
			t.Errorf("store leaked caller mutation: %+v", loaded.Log)
		}
	})

	// 4. List contains saved sessions
	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		found := map[string]bool{}
		for _, id := range ids {
			found[id] = true
		}
		if !found["contract-1"] || !found["contract-2"] {
			t.Errorf("expected saved sessions in list, got %v", ids)
		}
	})

	// 5. Delete
	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "contract-1"); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		_, err := store.Load(ctx, "contract-1")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
	})
}
