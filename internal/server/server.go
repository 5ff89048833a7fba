// Package server exposes the pipeline, the planning tracker, document
// retrieval and the memory store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sage/internal/memory"
	"sage/internal/planner"
	"sage/internal/retrieval"
	"sage/internal/supervisor"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, taskID string, req supervisor.TaskRequest) *supervisor.PipelineResult
}

type Config struct {
	Host      string
	Port      int
	UploadDir string
}

// Deps are the components the HTTP API fronts. Gatherer may be nil, which
// serves the default Prometheus registry.
type Deps struct {
	Pipeline  Runner
	Tracker   *planner.Tracker
	Documents *retrieval.Engine
	Memory    *memory.Store
	Gatherer  prometheus.Gatherer
}

type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Pipeline == nil || deps.Tracker == nil || deps.Documents == nil || deps.Memory == nil {
		return nil, fmt.Errorf("pipeline, tracker, documents and memory are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 5000, UploadDir: "data/uploaded"}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, deps: deps, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/ping", s.handlePing)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api")

	api.POST("/task/:id/run", s.handleRunTask)
	api.POST("/task/:id", s.handleCreateTask)
	api.GET("/task/:id", s.handleGetTask)
	api.DELETE("/task/:id", s.handleDeleteTask)
	api.PATCH("/task/:id/checkpoints/:cid", s.handleUpdateCheckpoint)
	api.GET("/task/:id/progress", s.handleProgress)
	api.POST("/task/:id/complete", s.handleComplete)

	api.POST("/document", s.handleIngest)
	api.GET("/document/:id/chunks", s.handleChunks)
	api.POST("/document/:id/ask", s.handleAsk)

	api.GET("/memory/:key", s.handleGetMemory)
	api.PUT("/memory/:key", s.handleSetMemory)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "pong"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

func errorJSON(c echo.Context, code int, err error) error {
	return c.JSON(code, ErrorResponse{Error: err.Error()})
}

func notFoundOr(c echo.Context, err error, sentinels ...error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return errorJSON(c, http.StatusNotFound, err)
		}
	}
	return errorJSON(c, http.StatusInternalServerError, err)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}
