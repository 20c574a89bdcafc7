// Package http exposes the catalog services over a JSON HTTP API.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// FreshnessRunner controls the periodic source freshness job.
type FreshnessRunner interface {
	Start(ctx context.Context) bool
	TriggerNow(ctx context.Context) (*domain.IngestResult, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	chatService      driving.ChatService
	ingestService    driving.IngestService
	analyticsService driving.AnalyticsService
	freshness        FreshnessRunner // can be nil

	// Infrastructure
	index Pinger // vector index health check (optional)
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	chatService driving.ChatService,
	ingestService driving.IngestService,
	analyticsService driving.AnalyticsService,
	freshness FreshnessRunner, // can be nil
	index Pinger, // can be nil
) *Server {
	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		chatService:      chatService,
		ingestService:    ingestService,
		analyticsService: analyticsService,
		freshness:        freshness,
		index:            index,
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		// Query handling waits on the model provider
		writeTimeout = 120 * time.Second
	}

	logging := NewLoggingMiddleware()
	recovery := NewRecoveryMiddleware()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      recovery.Handler(logging.Handler(s.router)),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Index management
	s.router.HandleFunc("POST /embed", s.handleEmbed)
	s.router.HandleFunc("DELETE /embed", s.handleDeleteEmbed)
	s.router.HandleFunc("GET /count", s.handleCount)
	s.router.HandleFunc("POST /fileChecker", s.handleFileChecker)

	// Question answering
	s.router.HandleFunc("POST /query", s.handleQuery)
	s.router.HandleFunc("POST /stats", s.handleStats)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
