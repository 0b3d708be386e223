// Package webservice provides the HTTP server exposing the form revision
// intake and review endpoints.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lvivas2/formTelecom/internal/config"
	"github.com/lvivas2/formTelecom/internal/webservice/handlers"
	"github.com/lvivas2/formTelecom/internal/webservice/metrics"
)

// Server is a struct that holds the HTTP server and its configuration.
type Server struct {
	httpServer *http.Server
	cm         dConfigManager

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context waits until in-flight requests drain before interrupting.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int

	ListenHost string
	ListenPort int
}

type dConfigManager interface {
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
	Lookup(token string) (config.Session, bool)
}

// Store is the persistence surface the web service consumes directly. The
// revision read/write flows go through the review manager instead.
type Store interface {
	handlers.Lister
	handlers.Inserter
}

// New creates a new Server wiring the intake, review, and version routes.
func New(ctx context.Context, cm dConfigManager, db Store, reviewer handlers.Reviewer, reg prometheus.Registerer, sc StaticConfig) (*Server, error) {
	if err := cm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:     cm,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel}

	submissionsHandler := handlers.NewSubmissions(db, int64(sc.MaxBodyBytes))
	revisionsHandler := handlers.NewRevisions(db, reviewer, int64(sc.MaxBodyBytes))

	mw := metrics.New(reg)
	auth := func(h http.Handler) http.Handler { return handlers.Authenticate(cm, h) }

	mux := http.NewServeMux()
	mux.Handle("POST /submissions", mw.Monitor("submissions", auth(submissionsHandler)))
	mux.Handle("GET /revisions", mw.Monitor("revisions_list", auth(http.HandlerFunc(revisionsHandler.List))))
	mux.Handle("GET /revisions/{id}", mw.Monitor("revisions_open", auth(http.HandlerFunc(revisionsHandler.Open))))
	mux.Handle("PATCH /revisions/{id}/form", mw.Monitor("revisions_form", auth(http.HandlerFunc(revisionsHandler.ApplyForm))))
	mux.Handle("POST /revisions/{id}/save", mw.Monitor("revisions_save", auth(http.HandlerFunc(revisionsHandler.Save))))
	mux.Handle("PATCH /revisions/{id}/status", mw.Monitor("revisions_status", auth(http.HandlerFunc(revisionsHandler.SetStatus))))
	mux.Handle("PUT /revisions/{id}", mw.Monitor("revisions_finish", auth(http.HandlerFunc(revisionsHandler.Finish))))
	mux.Handle("DELETE /revisions/{id}/session", mw.Monitor("revisions_close", auth(http.HandlerFunc(revisionsHandler.CloseSession))))
	mux.Handle("GET /version", mw.Monitor("version", http.HandlerFunc(handlers.VersionHandler)))

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", sc.ListenHost, sc.ListenPort),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Handler:        http.TimeoutHandler(mux, sc.RequestTimeout, ""),
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}

	return &s, nil
}

// Run starts the HTTP server and listens for incoming requests.
func (s *Server) Run() error {
	slog.Info("Starting server", "addr", s.httpServer.Addr)

	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	_, watchErr, err := s.cm.Watch(s.gracefulCtx)
	if err != nil {
		return fmt.Errorf("failed to start watching configuration: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-s.gracefulCtx.Done():
		slog.Info("Graceful shutdown initiated")
		// use parent ctx so a direct cancel unblocks Shutdown immediately
		if err := s.httpServer.Shutdown(s.ctx); err != nil {
			slog.Error("Graceful shutdown failed", "err", err)
			return err
		}
		slog.Info("Server shut down gracefully")
		s.cancel()
		return nil

	case err := <-serverErr:
		if err != nil {
			slog.Error("Server encountered error", "err", err)
			s.cancel()
			return err
		}
		// unlikely: ListenAndServe returned nil
		s.cancel()
		return nil
	case err := <-watchErr:
		if err != nil {
			slog.Error("Config watcher encountered unrecoverable error", "err", err)
		}
		errC := s.httpServer.Close()
		s.cancel()

		return errors.Join(err, errC)
	}
}

// Quit shuts down the HTTP server gracefully, or forcefully when asked.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		s.httpServer.Close()
		s.cancel()
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}
