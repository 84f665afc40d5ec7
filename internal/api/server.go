// SPDX-License-Identifier: MIT

// Package api exposes the daemon's HTTP surface: capture control, status,
// artifact download, a websocket event stream and operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/config"
	"github.com/pagetap/pagetap/internal/controller"
	"github.com/pagetap/pagetap/internal/log"
)

// CaptureController is the controller surface the API depends on.
// Implemented by *controller.Controller; tests substitute a stub.
type CaptureController interface {
	StartOrStop(ctx context.Context, target controller.Target, quality capture.QualitySettings) error
	Cancel(ctx context.Context, target controller.Target) error
	Status() []controller.TargetStatus
	TargetState(targetID string) (controller.TargetStatus, bool)
	Artifacts() []*capture.Artifact
	Artifact(id string) (*capture.Artifact, bool)
	Subscribe() (<-chan capture.StatusMessage, func())
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.Config
	ctrl      CaptureController
	bridge    http.Handler
	logger    zerolog.Logger
	startTime time.Time
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithBridge mounts the page bridge websocket endpoint.
func WithBridge(h http.Handler) Option {
	return func(s *Server) { s.bridge = h }
}

// New creates an API server over the given controller.
func New(cfg config.Config, ctrl CaptureController, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		logger:    log.WithComponent("api"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit))

		r.Post("/record", s.handleRecord)
		r.Post("/cancel", s.handleCancel)
		r.Get("/status", s.handleStatus)
		r.Get("/status/{targetID}", s.handleTargetStatus)
		r.Get("/artifacts", s.handleArtifacts)
		r.Get("/artifacts/{artifactID}/download", s.handleDownload)
		r.Get("/events", s.handleEvents)

		if s.bridge != nil {
			r.Method(http.MethodGet, "/bridge", s.bridge)
		}
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
