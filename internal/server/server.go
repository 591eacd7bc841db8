package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer wraps the HTTP handler with sane timeouts.
func NewServer(handler http.Handler, opts ...Option) *Server {
	srv := &Server{
		srv: &http.Server{
			Addr:              "localhost:8080",
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		log: slog.New(&slog.JSONHandler{}),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

type Option func(s *Server)

func WithServerAddr(addr string) Option {
	return func(s *Server) {
		s.srv.Addr = addr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

func (s *Server) Start() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Gracefully shutting down server...")

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}

	return nil
}
