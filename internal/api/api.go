package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranckBG1/agentic-ia-agent/internal/calendar"
	"github.com/FranckBG1/agentic-ia-agent/internal/flow"
	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
	"github.com/FranckBG1/agentic-ia-agent/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8000"

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Opts holds API server configuration.
type Opts struct {
	// Addr is the listen address (host:port).
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes HTTP requests to the orchestrator and the calendar client.
type Server struct {
	orchestrator *flow.Orchestrator
	calClient    *calendar.Client
	startedAt    time.Time
	httpServer   *http.Server
}

// NewServer builds a server over an already wired orchestrator.
func NewServer(orchestrator *flow.Orchestrator, calClient *calendar.Client) *Server {
	return &Server{
		orchestrator: orchestrator,
		calClient:    calClient,
		startedAt:    time.Now(),
	}
}

// Handler returns the configured route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/orientation/feedback", s.orientationFeedbackHandler)
	mux.HandleFunc("/agenda/confirm_changes", s.agendaConfirmHandler)
	mux.HandleFunc("/session/", s.sessionHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	return mux
}

// Start runs the HTTP server until ctx is canceled, then drains connections.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Start: API listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return nil
	}
}

// Run wires the full application from option sets and serves until ctx is
// canceled: the session store (in-memory, SQLite or PostgreSQL depending on
// the DSN), the LLM client, the calendar client and the orchestrator.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, calOpts []calendar.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := openStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Run: store close failed", "error", err)
		}
	}()

	var client genai.ClientInterface
	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("Run: LLM client unavailable, running on deterministic fallbacks", "error", err)
	} else {
		client = genaiClient
	}

	calClient := calendar.NewClient(calOpts...)
	var calAnalyzer *calendar.Analyzer
	if calClient.Configured() {
		calAnalyzer = calendar.NewAnalyzer(calClient)
	} else {
		slog.Info("Run: no calendar endpoint configured, calendar stage disabled")
	}

	orchestrator := flow.NewOrchestrator(st, client, calAnalyzer)
	server := NewServer(orchestrator, calClient)
	return server.Start(ctx, cfg.Addr)
}

// openStore picks the backend from the DSN: empty means in-memory.
func openStore(opts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("openStore: using in-memory session store")
		return store.NewInMemoryStore(opts...), nil
	}
	switch store.DetectDSNType(cfg.DSN) {
	case "postgres":
		slog.Info("openStore: using PostgreSQL session store")
		return store.NewPostgresStore(opts...)
	default:
		slog.Info("openStore: using SQLite session store")
		return store.NewSQLiteStore(opts...)
	}
}
