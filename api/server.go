package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

// Config carries the HTTP listener settings.
type Config struct {
	Host            string        `envconfig:"HOST" split_words:"true" default:"0.0.0.0"`
	Port            string        `envconfig:"PORT" split_words:"true" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

// ChatService is the pipeline entry point the transport layer depends on.
type ChatService interface {
	HandleChat(ctx context.Context, documentID string, messages []contractx.Message, requestID string) contractx.AgentResponse
	Stats() statsx.Snapshot
}

// ReadinessCheck probes an upstream dependency for the health endpoint.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	cfg       Config
	service   ChatService
	readiness ReadinessCheck
	http      *http.Server
}

func NewServer(cfg Config, service ChatService, readiness ReadinessCheck) *Server {
	s := &Server{
		cfg:       cfg,
		service:   service,
		readiness: readiness,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("serveur HTTP démarré")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Handler exposes the routing mux, used by the HTTP tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
