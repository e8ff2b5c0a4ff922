// Package frontend serves cached logos and the admin surface over HTTP.
package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"

	"github.com/quotedeck/logocache/internal/blob"
	"github.com/quotedeck/logocache/internal/config"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/refresh"
	"github.com/quotedeck/logocache/internal/state"
)

// Server is the HTTP frontend.
type Server struct {
	cfg        *config.Config
	st         *state.Store
	blobs      blob.Store
	runner     *refresh.Runner
	httpServer *http.Server
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, st *state.Store, blobs blob.Store, runner *refresh.Runner) *Server {
	return &Server{
		cfg:    cfg,
		st:     st,
		blobs:  blobs,
		runner: runner,
	}
}

// Handler builds the full route tree. Exposed separately from Serve so tests
// can drive it with httptest.
func (srv *Server) Handler() http.Handler {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             srv.cfg.LogFormat == "json",
		Concise:          true,
		MessageFieldName: "msg",
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	basePath := path.Join(srv.cfg.Server.BasePath, "api/v1")
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	r.Route(basePath, func(r chi.Router) {
		r.Get("/logos", srv.handleListLogos())
		r.Get("/logos/{ticker}", srv.handleGetLogo())
		r.Get("/manifest", srv.handleManifest())

		r.Route("/admin", func(r chi.Router) {
			r.Use(tokenAuth(srv.cfg.Server.AdminToken))
			r.Get("/status", srv.handleStatus())
			r.Post("/cycle/start", srv.handleCycleStart())
			r.Post("/cycle/tick", srv.handleCycleTick())
		})
	})

	return r
}

// Serve starts the HTTP server and blocks until the context is done or a
// shutdown signal arrives.
func (srv *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(srv.cfg.Server.Host, strconv.Itoa(srv.cfg.Server.Port))
	srv.httpServer = &http.Server{
		Handler:           srv.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Server is starting", "addr", addr)
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Failed to start server", "err", err)
		}
	}()

	srv.gracefulShutdown(ctx)
	return nil
}

// Shutdown stops the HTTP server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer != nil {
		logger.Info(ctx, "Server is shutting down", "addr", srv.httpServer.Addr)
		return srv.httpServer.Shutdown(ctx)
	}
	return nil
}

func (srv *Server) gracefulShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	case <-quit:
		logger.Info(ctx, "Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Failed to shutdown server", "err", err)
	}
}
