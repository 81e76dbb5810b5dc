package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/export"
)

// CreateSessionRequest is the optional body of POST /wizard/sessions.
type CreateSessionRequest struct {
	NumScenes int `json:"numScenes,omitempty"`
}

// EventRequest is the body of POST /wizard/sessions/{id}/events.
type EventRequest struct {
	Type  domain.EventType `json:"type"`
	Text  string           `json:"text,omitempty"`
	Count int              `json:"count,omitempty"`
	Index int              `json:"index,omitempty"`
}

// Event converts the request into a user event. Result events cannot be submitted.
func (e EventRequest) Event() (domain.Event, error) {
	switch e.Type {
	case domain.EventSubmitBriefing:
		return domain.SubmitBriefing{Text: e.Text, NumScenes: e.Count}, nil
	case domain.EventApprove:
		return domain.Approve{}, nil
	case domain.EventAdjust:
		return domain.Adjust{}, nil
	case domain.EventNegotiateSceneCount:
		return domain.NegotiateSceneCount{}, nil
	case domain.EventSubmitSceneCount:
		return domain.SubmitSceneCount{Count: e.Count}, nil
	case domain.EventSubmitStyle:
		return domain.SubmitStyle{Style: e.Text}, nil
	case domain.EventSelectScene:
		return domain.SelectScene{Index: e.Index}, nil
	case domain.EventRestart:
		return domain.Restart{}, nil
	}
	return nil, fmt.Errorf("unsupported event type %q", e.Type)
}

// ErrorResponse is the failure body of the wizard routes.
// State is set when the event was rejected and the session is unchanged.
type ErrorResponse struct {
	Error string        `json:"error"`
	State *domain.State `json:"state,omitempty"`
}

// createSession handles POST /wizard/sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := s.decode(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	n := body.NumScenes
	if n < 1 {
		n = s.defaultScenes
	}

	state, err := s.sessions.LoadOrStart(r.Context(), uuid.NewString(), n)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, state)
}

// listSessions handles GET /wizard/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// getSession handles GET /wizard/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// deleteSession handles DELETE /wizard/sessions/{id}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postEvent handles POST /wizard/sessions/{id}/events. It returns once the event and
// every remote call it started have settled.
func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	ev, err := body.Event()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	state, err := s.sessions.Submit(r.Context(), s.engine, chi.URLParam(r, "id"), ev)
	if errors.Is(err, domain.ErrGuardRejected) {
		s.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), State: state})
		return
	}
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// exportSession handles GET /wizard/sessions/{id}/export.
func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	story := state.ApprovedStory()
	if story == nil {
		s.writeJSON(w, http.StatusConflict, ErrorResponse{Error: domain.ErrNoStory.Error()})
		return
	}

	doc, err := export.HTML(*story)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(*story)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	s.logger.ErrorContext(r.Context(), "session request failed",
		"path", r.URL.Path,
		"err", err,
	)
	s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
