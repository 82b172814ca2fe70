package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/config"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/api/apiv1"
)

const WebhookPath = "/webhooks/mercadopago"

// Pinger reports dependency health for /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the provider webhook, health probes, metrics and, when
// configured, the admin API.
type Server struct {
	router chi.Router
	srv    *http.Server
	log    *zerolog.Logger
}

// NewServer builds the router. admin may be nil to leave the admin API off.
func NewServer(cfg config.HTTPConfig, webhook *WebhookHandler, admin *apiv1.Server, ready Pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	for _, mw := range []Middleware{TraceID(), Recover(&l), RequestLog(&l), Timeout(cfg.RequestTimeout)} {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready.Ping(r.Context()); err != nil {
				l.Warn().Err(err).Msg("readiness check failed")
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, WebhookPath, webhook)

	if admin != nil {
		apiv1.RegisterAPIV1(r, admin)
	}

	return &Server{
		router: r,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: &l,
	}
}

func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
