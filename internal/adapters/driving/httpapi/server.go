package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Server serves the HTTP API.
type Server struct {
	echo        *echo.Echo
	ingestion   driving.IngestionService
	serviceName string
	log         *slog.Logger
}

// New creates a server with all routes registered.
func New(ingestion driving.IngestionService, serviceName string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		ingestion:   ingestion,
		serviceName: serviceName,
		log:         logger.With("component", "http"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				args = append(args, "error", v.Error)
			}
			s.log.Debug("request", args...)
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/health/db", s.healthDB)

	docs := s.echo.Group("/documents")
	docs.POST("", s.register)
	docs.GET("", s.list)
	docs.GET("/:id", s.status)
	docs.DELETE("/:id", s.delete)
	docs.POST("/:id/reset", s.reset)
	docs.POST("/:id/stages/:stage", s.enqueue)

	s.echo.GET("/jobs/stats", s.stats)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
