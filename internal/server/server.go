package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/clientmap/internal/client"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/lifecycle"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// shutdownTimeout bounds the graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Server serves the telemetry API for one Integration.
type Server struct {
	integration *client.Integration
	bus         *eventbus.Bus
	topic       string
	logger      *slog.Logger
	mux         *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithTopic sets the publisher name scan signals are published under.
func WithTopic(topic string) Option {
	return func(s *Server) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server. Scan signals are published on bus.
func New(integration *client.Integration, bus *eventbus.Bus, opts ...Option) *Server {
	s := &Server{
		integration: integration,
		bus:         bus,
		topic:       lifecycle.DefaultTopic,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/nodes", s.handleNode)
	s.mux.HandleFunc("POST /api/components", s.handleComponent)
	s.mux.HandleFunc("POST /api/reported/nodes", s.handleReportedNode)
	s.mux.HandleFunc("POST /api/reported/events", s.handleReportedEvent)
	s.mux.HandleFunc("POST /api/scans/start", s.handleScanStarted)
	s.mux.HandleFunc("POST /api/scans/stop", s.handleScanStopped)
	s.mux.HandleFunc("GET /api/session", s.handleGetSession)
	s.mux.HandleFunc("POST /api/session", s.handleChangeSession)
	s.mux.HandleFunc("POST /api/select", s.handleSelect)
	s.mux.HandleFunc("GET /api/details", s.handleDetails)
	s.mux.HandleFunc("POST /api/delete", s.handleDelete)
	s.mux.HandleFunc("GET /api/tree", s.handleTree)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/history/{field}", s.handleHistoryField)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info("telemetry API listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down telemetry API: %w", err)
		}
		<-errCh
		return nil
	}
}

// decode reads a JSON body into v. It writes the error response itself and
// reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Debug("failed to encode response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}
