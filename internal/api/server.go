// Package api exposes classification and review over HTTP.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/model"
)

// Engine analyzes chunks and reloads configuration.
type Engine interface {
	Analyze(content string) (*model.Analysis, error)
	Reload() (*model.RuleSet, error)
}

// Batcher runs batch classification and resets suggestions.
type Batcher interface {
	ClassifyBatch(ctx context.Context, maxItems int) (model.RunReport, error)
	ResetSuggestions(ctx context.Context) (int64, error)
}

// Reviewer applies review decisions.
type Reviewer interface {
	Approve(ctx context.Context, id string) (*model.Item, error)
	Reject(ctx context.Context, id string, replacement model.TechniqueID) (*model.Item, error)
	BulkApproveByTechnique(ctx context.Context, techniqueID model.TechniqueID) (int64, error)
	Stats(ctx context.Context) (model.ReviewStats, error)
	List(ctx context.Context, limit int) ([]model.Item, error)
}

// Server serves the techtag HTTP API.
type Server struct {
	echo   *echo.Echo
	engine Engine
	batch  Batcher
	review Reviewer
	logger *zap.Logger
	config model.APIConfig
}

// NewServer creates a server. All collaborators are required.
func NewServer(engine Engine, batch Batcher, review Reviewer, logger *zap.Logger, cfg model.APIConfig) (*Server, error) {
	if engine == nil || batch == nil || review == nil {
		return nil, fmt.Errorf("engine, batch and review are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		engine: engine,
		batch:  batch,
		review: review,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/batch", s.handleBatch)
	v1.POST("/reset", s.handleReset)
	v1.POST("/config/reload", s.handleReload)

	v1.GET("/review", s.handleReviewList)
	v1.GET("/review/stats", s.handleReviewStats)
	v1.POST("/review/approve-bulk", s.handleBulkApprove)
	v1.POST("/review/:id/approve", s.handleApprove)
	v1.POST("/review/:id/reject", s.handleReject)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
