// Package server provides the HTTP API for the decision advisor backend.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/victor/decision-advisor/internal/advisor"
	"github.com/victor/decision-advisor/internal/billing"
	"github.com/victor/decision-advisor/internal/config"
	"github.com/victor/decision-advisor/internal/llm"
	"github.com/victor/decision-advisor/internal/quota"
)

// Version is stamped at build time.
var Version = "dev"

// Server is the HTTP front of the advisor backend.
type Server struct {
	cfg        *config.Config
	advisor    *advisor.Service
	ledger     *quota.Ledger
	proxy      *llm.Proxy
	proxyModel string
	webhook    *billing.Webhook
	logger     zerolog.Logger
	httpServer *http.Server
}

// New assembles the router and server. webhook may be nil, which leaves
// the Stripe endpoint unmounted.
func New(cfg *config.Config, advisorSvc *advisor.Service, ledger *quota.Ledger, proxy *llm.Proxy, proxyModel string, webhook *billing.Webhook, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		advisor:    advisorSvc,
		ledger:     ledger,
		proxy:      proxy,
		proxyModel: proxyModel,
		webhook:    webhook,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))
	// Permissive CORS: the front end is served from arbitrary origins
	// and preflight must always succeed.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(callerIdentity(cfg.JWTSecret, logger))

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/usage/{callerID}", s.handleUsage)
		r.Post("/proxy", s.handleProxy)
		r.Post("/proxy/stream", s.handleProxyStream)
	})

	if webhook != nil {
		r.Post("/webhook/stripe", s.handleStripeWebhook)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // long enough for a two-stage vision run
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the listener until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"version": Version, "service": "decision-advisor"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request with status and duration.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
