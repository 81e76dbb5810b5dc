package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu     sync.Mutex
	refs   int
	unlock ports.UnlockFunc // Function to release distributed lock (if any)
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration           // Expiry of the distributed lock
	logger  *slog.Logger            // Logger for internal events (like deferred errors)

	listenersMu sync.RWMutex
	listeners   []ChangeListener

	staleAfter time.Duration    // Age after which a busy flag is released; zero disables it
	now        func() time.Time // Clock used to stamp and age busy states
}

// MsgInterrupted is recorded on a session whose remote call was abandoned.
const MsgInterrupted = "The previous request was interrupted. Please submit it again."

// Engine is the part of the storyweaver engine the Manager drives.
type Engine interface {
	Apply(ctx context.Context, state *domain.State, ev domain.Event) wizard.Result
	Execute(ctx context.Context, sessionID string, cmd domain.Command) (domain.Event, error)
}

// ChangeListener is notified after a new state has been saved.
// It runs while the session lock is held, so notifications arrive in revision order.
type ChangeListener func(ctx context.Context, old, new *domain.State)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock is held before it expires.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithChangeListener registers a listener for saved state changes.
func WithChangeListener(l ChangeListener) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, l)
	}
}

// WithStaleAfter releases a busy flag older than d on the next access, so a session whose
// host stopped during a remote call can be used again. Zero keeps it until the call settles.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		m.staleAfter = d
	}
}

// WithClock replaces time.Now for busy stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(), // Default to no-op
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		loaded, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		state, err = m.releaseStale(ctx, loaded, false)
		return err
	})
	return state, err
}

// ReleaseBusy clears the busy flag of a session regardless of its age. Use it when the
// caller knows no other host can settle the outstanding call.
func (m *Manager) ReleaseBusy(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		loaded, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		state, err = m.releaseStale(ctx, loaded, true)
		return err
	})
	return state, err
}

// LoadOrStart tries to load a session. If not found, it initializes a new one in the
// Briefing step with numScenes as the default scene count.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string, numScenes int) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		if err == nil {
			state, err = m.releaseStale(ctx, state, false)
			return err
		}

		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		state = domain.NewState(sessionID, numScenes)

		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		m.notify(ctx, nil, state)
		return nil
	})
	return state, err
}

// Submit applies a user event to a stored session and runs the resulting remote work.
//
// The event is applied and the busy state saved under the session lock. Commands then run
// without the lock, so reads and the busy guard keep working during long calls. Each
// outcome is applied under the lock again, against the latest stored state.
// A rejected event returns the stored state and a *domain.GuardError.
func (m *Manager) Submit(ctx context.Context, eng Engine, sessionID string, ev domain.Event) (*domain.State, error) {
	var res wizard.Result
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if state, err = m.releaseStale(ctx, state, false); err != nil {
			return err
		}
		res = eng.Apply(ctx, state, ev)
		if res.Rejected != nil || res.State == state {
			return nil
		}
		return m.commit(ctx, state, res.State)
	})
	if err != nil {
		return nil, err
	}
	if res.Rejected != nil {
		return res.State, res.Rejected
	}

	current := res.State
	pending := res.Commands
	for len(pending) > 0 {
		cmd := pending[0]
		pending = pending[1:]

		result, err := eng.Execute(ctx, sessionID, cmd)
		if err != nil {
			return current, err
		}

		// The outcome must land even if the caller went away, or the session stays busy.
		settleCtx := context.WithoutCancel(ctx)
		err = m.WithLock(settleCtx, sessionID, func(ctx context.Context) error {
			latest, err := m.store.Load(ctx, sessionID)
			if err != nil {
				return err
			}
			next := eng.Apply(ctx, latest, result)
			if next.Rejected != nil {
				if !latest.Busy {
					// Released while the call ran; the outcome has nowhere to go.
					m.logger.WarnContext(ctx, "dropping result of a released call",
						"session_id", sessionID,
						"event", result.EventType(),
					)
					current = latest
					pending = nil
					return nil
				}
				return next.Rejected
			}
			if err := m.commit(ctx, latest, next.State); err != nil {
				return err
			}
			current = next.State
			pending = append(pending, next.Commands...)
			return nil
		})
		if err != nil {
			return current, err
		}
	}
	return current, nil
}

// commit stamps the busy start, saves next and notifies the listeners.
// The caller holds the session lock.
func (m *Manager) commit(ctx context.Context, old, next *domain.State) error {
	switch {
	case !next.Busy:
		next.BusySince = time.Time{}
	case old != nil && old.Busy && !old.BusySince.IsZero():
		next.BusySince = old.BusySince
	default:
		next.BusySince = m.now().UTC()
	}
	if err := m.store.Save(ctx, next.SessionID, next); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.notify(ctx, old, next)
	return nil
}

// releaseStale clears a busy flag older than staleAfter, or any busy flag when force is set.
// A busy state without a stamp has an unknown age and counts as stale. The caller holds the
// session lock.
func (m *Manager) releaseStale(ctx context.Context, state *domain.State, force bool) (*domain.State, error) {
	if !state.Busy {
		return state, nil
	}
	if !force {
		if m.staleAfter <= 0 {
			return state, nil
		}
		if !state.BusySince.IsZero() && m.now().Sub(state.BusySince) < m.staleAfter {
			return state, nil
		}
	}

	next := state.Clone()
	next.Revision++
	next.Busy = false
	next.Error = MsgInterrupted
	m.logger.WarnContext(ctx, "released busy session",
		"session_id", state.SessionID,
		"step", state.Step(),
		"busy_since", state.BusySince,
	)
	if err := m.commit(ctx, state, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AddChangeListener registers a listener after construction.
func (m *Manager) AddChangeListener(l ChangeListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) notify(ctx context.Context, old, next *domain.State) {
	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l(ctx, old, next)
	}
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, sessionID string, state *domain.State) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, state)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
