package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
	"github.com/aretw0/storyweaver/pkg/session"
)

// maxBodySize bounds every JSON request body.
const maxBodySize = 1 << 20

// Server holds the dependencies of the HTTP routes.
type Server struct {
	service       ports.StoryService
	engine        session.Engine
	sessions      *session.Manager
	streams       *StreamManager
	gatherer      prometheus.Gatherer
	logger        *slog.Logger
	defaultScenes int
}

// Option configures the Server.
type Option func(*Server)

// WithStoryService mounts the story backend routes on top of svc.
func WithStoryService(svc ports.StoryService) Option {
	return func(s *Server) {
		s.service = svc
	}
}

// WithWizard mounts the wizard API. The server subscribes to mgr to stream diffs.
func WithWizard(eng session.Engine, mgr *session.Manager) Option {
	return func(s *Server) {
		s.engine = eng
		s.sessions = mgr
	}
}

// WithMetrics mounts /metrics for the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaultScenes sets the scene count of sessions created without one.
func WithDefaultScenes(n int) Option {
	return func(s *Server) {
		s.defaultScenes = n
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(opts ...Option) http.Handler {
	s := &Server{
		logger:        logging.NewNop(),
		defaultScenes: domain.DefaultNumScenes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/cors-test", s.getCORSTest)

	if s.service != nil {
		r.Route("/api", func(r chi.Router) {
			r.Post("/story", s.postStory)
			r.Post("/image", s.postImage)
		})
	}

	if s.sessions != nil && s.engine != nil {
		s.streams = NewStreamManager(s.logger)
		s.sessions.AddChangeListener(s.streams.OnChange)
		r.Route("/wizard/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Get("/", s.listSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/events", s.postEvent)
				r.Get("/export", s.exportSession)
				r.Get("/stream", s.streamSession)
			})
		})
	}

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// getHealth handles GET /health.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getCORSTest handles GET /cors-test.
func (s *Server) getCORSTest(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "CORS is working!"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
