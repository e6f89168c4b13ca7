package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tingoai/payment-gateway/internal/circuitbreaker"
	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/dbpool"
	"github.com/tingoai/payment-gateway/internal/events"
	"github.com/tingoai/payment-gateway/internal/globalpay"
	"github.com/tingoai/payment-gateway/internal/httpserver"
	"github.com/tingoai/payment-gateway/internal/idempotency"
	"github.com/tingoai/payment-gateway/internal/lifecycle"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/metrics"
	"github.com/tingoai/payment-gateway/internal/payments"
	"github.com/tingoai/payment-gateway/internal/reporting"
	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("main.config_load_failed")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "payment-gateway",
		Environment: cfg.Logging.Environment,
	})

	resources := lifecycle.NewManager()
	metricsCollector := metrics.New(prometheus.DefaultRegisterer)

	store, err := buildStore(cfg, resources)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("main.storage_init_failed")
	}

	decryptor, err := webhook.NewDecryptor([]byte(cfg.Webhook.EncryptionKey))
	if err != nil {
		appLogger.Fatal().Err(err).Msg("main.webhook_key_invalid")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		resources.Register("events", kafkaPublisher)
		publisher = kafkaPublisher
		appLogger.Info().
			Strs("brokers", cfg.Events.Brokers).
			Str("topic", cfg.Events.Topic).
			Msg("main.events_enabled")
	}

	breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)
	processor := globalpay.NewClient(cfg.GlobalPay, breakers, metricsCollector)

	paymentsSvc := payments.NewService(store, processor, decryptor, publisher, metricsCollector, cfg.GlobalPay.RefPrefix)
	reportingSvc := reporting.NewService(store)

	idempotencyStore := idempotency.NewMemoryStore()
	resources.Register("idempotency", idempotencyStore)

	server := httpserver.New(cfg, paymentsSvc, reportingSvc, breakers, metricsCollector, idempotencyStore, appLogger)

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Msg("main.listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		appLogger.Info().Str("signal", sig.String()).Msg("main.shutdown_requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("main.server_failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("main.shutdown_failed")
	}

	if err := resources.Close(); err != nil {
		appLogger.Error().Err(err).Msg("main.resource_cleanup_failed")
	}
	appLogger.Info().Msg("main.stopped")
}

// buildStore creates the transaction store, sharing one postgres pool when
// that backend is selected so future repositories reuse its connections.
func buildStore(cfg *config.Config, resources *lifecycle.Manager) (storage.Store, error) {
	storeCfg := storage.StoreConfig{
		Backend:         cfg.Storage.Backend,
		PostgresURL:     cfg.Storage.PostgresURL,
		MongoDBURL:      cfg.Storage.MongoDBURL,
		MongoDBDatabase: cfg.Storage.MongoDBDatabase,
		SQLitePath:      cfg.Storage.SQLitePath,
		PostgresPool:    cfg.Storage.PostgresPool,
	}

	if cfg.Storage.PostgresURL != "" && (cfg.Storage.Backend == "" || cfg.Storage.Backend == "postgres") {
		pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			return nil, err
		}
		resources.Register("dbpool", pool)
		store, err := storage.NewStoreWithDB(storeCfg, pool.DB())
		if err != nil {
			return nil, err
		}
		resources.Register("storage", store)
		return store, nil
	}

	store, err := storage.NewStore(storeCfg)
	if err != nil {
		return nil, err
	}
	resources.Register("storage", store)
	return store, nil
}
