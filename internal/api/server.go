package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Ryo-cool/go-concurrency-learner/internal/config"
	"github.com/Ryo-cool/go-concurrency-learner/internal/executor"
	"github.com/Ryo-cool/go-concurrency-learner/internal/health"
	"github.com/Ryo-cool/go-concurrency-learner/internal/lessons"
	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
	"github.com/Ryo-cool/go-concurrency-learner/internal/storage"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// ResponseCache stores compile responses by code
type ResponseCache interface {
	Get(ctx context.Context, code string) (*playground.Response, error)
	Set(ctx context.Context, code string, resp *playground.Response) error
}

// Dependencies are the components the server routes requests to
type Dependencies struct {
	Lessons  *lessons.Loader
	Sessions session.Manager
	Repo     storage.Repository
	// Upstream runs code for the playground proxy endpoint
	Upstream executor.Compiler
	// Cache is optional
	Cache  ResponseCache
	Health *health.Registry
}

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	lessons  *lessons.Loader
	sessions session.Manager
	repo     storage.Repository
	upstream executor.Compiler
	cache    ResponseCache
	health   *health.Registry
	now      func() time.Time
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Health == nil {
		deps.Health = health.NewRegistry()
	}

	s := &Server{
		config:   cfg,
		lessons:  deps.Lessons,
		sessions: deps.Sessions,
		repo:     deps.Repo,
		upstream: deps.Upstream,
		cache:    deps.Cache,
		health:   deps.Health,
		now:      time.Now,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", LearnerHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.With(middleware.Timeout(timeout)).Get("/health", s.handleHealth)
	r.With(middleware.Timeout(timeout)).Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentifyLearner)

		// The stream endpoint is long-lived and stays outside the request timeout.
		r.Get("/sessions/{id}/stream", s.handleSessionStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Post("/playground", s.handlePlayground)
			r.Post("/screen", s.handleScreen)

			r.Route("/lessons", func(r chi.Router) {
				r.Get("/", s.handleListLessons)
				r.Get("/categories", s.handleListCategories)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetLesson)
					r.Get("/neighbors", s.handleLessonNeighbors)
					r.Post("/check", s.handleCheck)
				})
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleDeleteSession)
					r.Post("/run", s.handleRunSession)
					r.Post("/cancel", s.handleCancelSession)
					r.Get("/outputs", s.handleGetOutputs)
					r.Delete("/outputs", s.handleClearOutputs)
				})
			})

			r.Route("/progress", func(r chi.Router) {
				r.Use(RequireLearner)
				r.Get("/", s.handleListProgress)
				r.Route("/{lessonId}", func(r chi.Router) {
					r.Get("/", s.handleGetProgress)
					r.Put("/", s.handleUpdateProgress)
					r.Post("/start", s.handleStartLesson)
					r.Get("/submissions", s.handleListSubmissions)
				})
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
