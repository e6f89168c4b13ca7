package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tingoai/payment-gateway/internal/auth"
	"github.com/tingoai/payment-gateway/internal/circuitbreaker"
	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/idempotency"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/metrics"
	"github.com/tingoai/payment-gateway/internal/payments"
	"github.com/tingoai/payment-gateway/internal/ratelimit"
	"github.com/tingoai/payment-gateway/internal/reporting"
)

var serverStartTime = time.Now()

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg         *config.Config
	payments    *payments.Service
	reporting   *reporting.Service
	breakers    *circuitbreaker.Manager
	metrics     *metrics.Metrics
	idempotency idempotency.Store
	logger      zerolog.Logger
}

// New builds the HTTP server with a configured router.
func New(cfg *config.Config, paymentsSvc *payments.Service, reportingSvc *reporting.Service, breakers *circuitbreaker.Manager, metricsCollector *metrics.Metrics, idempotencyStore idempotency.Store, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:         cfg,
			payments:    paymentsSvc,
			reporting:   reportingSvc,
			breakers:    breakers,
			metrics:     metricsCollector,
			idempotency: idempotencyStore,
			logger:      appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, s.handlers)
	return s
}

// ConfigureRouter attaches gateway routes to an existing router.
func ConfigureRouter(router chi.Router, handler handlers) {
	cfg := handler.cfg

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)

	// Structured logging middleware comes before RequestID so the request
	// scoped logger is already in context when later middleware runs.
	router.Use(logger.Middleware(handler.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	rateLimitCfg := ratelimit.Config{
		GlobalEnabled: cfg.RateLimit.GlobalEnabled,
		GlobalLimit:   cfg.RateLimit.GlobalLimit,
		GlobalWindow:  cfg.RateLimit.GlobalWindow.Duration,
		PerIPEnabled:  cfg.RateLimit.PerIPEnabled,
		PerIPLimit:    cfg.RateLimit.PerIPLimit,
		PerIPWindow:   cfg.RateLimit.PerIPWindow.Duration,
		Metrics:       handler.metrics,
	}
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	basicAuth := auth.BasicAuth(auth.Config{
		Enabled:  cfg.Auth.Enabled,
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
	})

	// Lightweight endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", handler.health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Payment endpoints call the processor; give them room.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api/payment", func(r chi.Router) {
			// Webhooks authenticate by decryption, not by credentials.
			r.Post("/webhook", handler.handleWebhook)

			r.Group(func(r chi.Router) {
				r.Use(basicAuth)
				if handler.idempotency != nil {
					r.With(idempotency.Middleware(handler.idempotency, idempotency.DefaultTTL)).
						Post("/initiate", handler.initiatePayment)
				} else {
					r.Post("/initiate", handler.initiatePayment)
				}
				r.Get("/verify/{reference}", handler.verifyTransaction)
			})
		})

		r.Route("/api/transaction", func(r chi.Router) {
			r.Get("/", handler.queryTransactions)
			r.Get("/summary", handler.transactionSummary)
		})
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
