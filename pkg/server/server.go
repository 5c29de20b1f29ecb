// Package server implements the HTTP API used by the playground front end.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manimagic/manimagic/pkg/community"
	"github.com/manimagic/manimagic/pkg/config"
	"github.com/manimagic/manimagic/pkg/render"
	"github.com/manimagic/manimagic/pkg/validator"
)

// Renderer renders scene code to video.
// Implementations: *render.Renderer, test fakes.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Video, error)
}

// ProjectStore is the community persistence the API needs.
// Implementations: *community.Store.
type ProjectStore interface {
	Create(ctx context.Context, userID string, np community.NewProject) (*community.Project, error)
	Get(ctx context.Context, id, viewer string) (*community.Project, error)
	Update(ctx context.Context, id, userID string, upd community.ProjectUpdate) (*community.Project, error)
	Delete(ctx context.Context, id, userID string) error
	IncrementViews(ctx context.Context, id string) error
	List(ctx context.Context, opts community.ListOptions) ([]*community.Project, error)
	ListByUser(ctx context.Context, userID string) ([]*community.Project, error)
	ToggleLike(ctx context.Context, projectID, userID string) (bool, int, error)
	HasLiked(ctx context.Context, projectID, userID string) (bool, error)
	Ping(ctx context.Context) error
}

// Server wires the validator, renderer and project store behind gin.
type Server struct {
	validator *validator.Validator
	renderer  Renderer
	store     ProjectStore // nil when the community API is disabled
	cfg       config.ServerConfig
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the community endpoints.
func WithStore(st ProjectStore) Option {
	return func(s *Server) { s.store = st }
}

// WithConfig sets the server configuration.
func WithConfig(cfg config.ServerConfig) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(v *validator.Validator, r Renderer, opts ...Option) *Server {
	s := &Server{
		validator: v,
		renderer:  r,
		cfg:       config.Default().Server,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), s.limitBody())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.POST("/validate", s.handleValidate)
	api.POST("/fix", s.handleFix)
	api.GET("/rules", s.handleRules)
	api.POST("/run-manim", s.handleRunManim)

	if s.store != nil {
		p := api.Group("/projects")
		p.GET("", s.handleListProjects)
		p.POST("", s.requireUser, s.handleCreateProject)
		p.GET("/:id", s.handleGetProject)
		p.PATCH("/:id", s.requireUser, s.handleUpdateProject)
		p.DELETE("/:id", s.requireUser, s.handleDeleteProject)
		p.POST("/:id/like", s.requireUser, s.handleToggleLike)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
