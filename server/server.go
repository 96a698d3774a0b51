// Package server assembles the echo HTTP server around the store and the
// embedding client.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/server/ai"
	apiv1 "github.com/usesemdex/semdex/server/router/api/v1"
	"github.com/usesemdex/semdex/store"
)

// Server is the semdex HTTP server.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer creates the server and registers all routes.
func NewServer(_ context.Context, profile *profile.Profile, st *store.Store, embedder ai.Embedder) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			slog.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))

	apiV1Service := apiv1.NewAPIV1Service(profile, st, embedder)
	apiV1Service.Register(e)

	return &Server{
		Profile:    profile,
		Store:      st,
		echoServer: e,
	}, nil
}

// Start runs the HTTP listener until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("mode", s.Profile.Mode),
		slog.String("driver", s.Profile.Driver))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echoServer.Start(address)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}
	slog.Info("server shut down")
}
