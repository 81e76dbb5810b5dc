package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// streamBuffer is the number of diffs queued per subscriber before messages are dropped.
const streamBuffer = 16

// StreamManager fans state diffs out to the SSE subscribers of each session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the session. The returned func unsubscribes and
// closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, streamBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of the session without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// OnChange is a session.ChangeListener broadcasting the diff between old and next.
func (sm *StreamManager) OnChange(ctx context.Context, old, next *domain.State) {
	diff := domain.Diff(old, next)
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.ErrorContext(ctx, "SSE: diff encode failed", "session_id", next.SessionID, "err", err)
		return
	}
	sm.Broadcast(next.SessionID, string(data))
}

// streamSession handles GET /wizard/sessions/{id}/stream (SSE).
// The first message is the full state as a diff against nothing. The optional watch
// parameter (step, busy, error, log, images, scene) filters the following diffs.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Streaming not supported"})
		return
	}

	sessionID := chi.URLParam(r, "id")
	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	// Loaded after subscribing so no change is lost in between.
	state, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if initial, err := json.Marshal(domain.Diff(nil, state)); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", initial)
	}
	flusher.Flush()
	s.logger.DebugContext(r.Context(), "SSE: subscribed", "session_id", sessionID)

	watch := parseWatch(r.URL.Query().Get("watch"))
	for {
		select {
		case <-r.Context().Done():
			s.logger.DebugContext(r.Context(), "SSE: client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func parseWatch(raw string) []string {
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// matchesWatch reports whether the diff touches one of the watched fields.
// Diffs that cannot be decoded are always sent.
func matchesWatch(msg string, watch []string) bool {
	var diff struct {
		Step             *json.RawMessage  `json:"step"`
		Busy             *bool             `json:"busy"`
		Error            *string           `json:"error"`
		Appended         []json.RawMessage `json:"appended"`
		Images           []json.RawMessage `json:"images"`
		ActiveSceneIndex *int              `json:"active_scene_index"`
	}
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "step":
			if diff.Step != nil {
				return true
			}
		case "busy":
			if diff.Busy != nil {
				return true
			}
		case "error":
			if diff.Error != nil {
				return true
			}
		case "log":
			if len(diff.Appended) > 0 {
				return true
			}
		case "images":
			if len(diff.Images) > 0 {
				return true
			}
		case "scene":
			if diff.ActiveSceneIndex != nil {
				return true
			}
		}
	}
	return false
}
