package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/adapters/memory"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

// recordingLocker is an in-process DistributedLocker that fails on re-entry.
type recordingLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
	err      error
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{held: make(map[string]bool)}
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, fmt.Errorf("lock %q already held", key)
	}
	l.held[key] = true
	l.acquired++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

func (l *recordingLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

// lockCheckingEngine runs the real transitions and notes whether the lock was held
// while remote work ran.
type lockCheckingEngine struct {
	locker       *recordingLocker
	executed     int
	heldInRemote bool
}

func (e *lockCheckingEngine) Apply(_ context.Context, state *domain.State, ev domain.Event) wizard.Result {
	return wizard.Transition(state, ev)
}

func (e *lockCheckingEngine) Execute(_ context.Context, sessionID string, cmd domain.Command) (domain.Event, error) {
	e.executed++
	e.heldInRemote = e.heldInRemote || e.locker.isHeld(sessionID)
	return domain.ProposalReceived{Proposal: domain.Proposal{
		Scenes: []domain.ProposedScene{{Description: "A knight enters the forest"}},
	}}, nil
}

func TestManager_SubmitUnderDistributedLock(t *testing.T) {
	locker := newRecordingLocker()
	mgr := NewManager(memory.NewStore(), WithLocker(locker))
	ctx := context.Background()
	id := "locked"

	_, err := mgr.LoadOrStart(ctx, id, 1)
	require.NoError(t, err)
	locker.acquired = 0

	eng := &lockCheckingEngine{locker: locker}
	state, err := mgr.Submit(ctx, eng, id, domain.SubmitBriefing{Text: "A knight"})
	require.NoError(t, err)

	assert.Equal(t, domain.StepProposal, state.Step())
	assert.False(t, state.Busy)
	assert.Equal(t, 1, eng.executed)
	assert.False(t, eng.heldInRemote, "remote work must run without the lock")
	assert.Equal(t, 2, locker.acquired, "one lock to apply the event, one to apply its outcome")
	assert.False(t, locker.isHeld(id))
	assert.Empty(t, mgr.locks)
}

func TestManager_SubmitLockFailure(t *testing.T) {
	locker := newRecordingLocker()
	mgr := NewManager(memory.NewStore(), WithLocker(locker))
	ctx := context.Background()
	id := "unreachable"

	_, err := mgr.LoadOrStart(ctx, id, 1)
	require.NoError(t, err)

	down := errors.New("connection refused")
	locker.err = down
	eng := &lockCheckingEngine{locker: locker}
	_, err = mgr.Submit(ctx, eng, id, domain.SubmitBriefing{Text: "A knight"})
	require.ErrorIs(t, err, down)
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.Zero(t, eng.executed)
	assert.Empty(t, mgr.locks)

	locker.err = nil
	stored, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepBriefing, stored.Step())
	assert.False(t, stored.Busy)
}

func TestManager_LockLifecycle(t *testing.T) {
	locker := newRecordingLocker()
	mgr := NewManager(memory.NewStore(), WithLocker(locker))
	ctx := context.Background()
	eng := &lockCheckingEngine{locker: locker}

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_, err := mgr.LoadOrStart(ctx, sid, 1)
		require.NoError(t, err)
		_, err = mgr.Submit(ctx, eng, sid, domain.SubmitBriefing{Text: "A knight"})
		require.NoError(t, err)
		require.NoError(t, mgr.Delete(ctx, sid))
	}

	assert.Empty(t, mgr.locks, "per-session locks must be dropped once unused")
	assert.Empty(t, locker.held)
}
