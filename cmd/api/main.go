package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agendum/internal/api"
	"agendum/internal/config"
	"agendum/internal/database"
	"agendum/internal/domain"
	"agendum/internal/events"
	"agendum/internal/export"
	"agendum/internal/google"
	"agendum/internal/logging"
	"agendum/internal/metrics"
	"agendum/internal/repository"
	"agendum/internal/service"
	"agendum/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.SeedTemplates(ctx, db, cfg.TemplatesFile, &logger); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	slotCache := buildSlotCache(cfg, redisClient, &logger)
	eventBus := events.NewEventBus()
	subscribeAuditLog(eventBus, &logger)

	sheetsService := initGoogleSheets(cfg, &logger)

	var syncWorker *worker.AgendaWorker
	if sheetsService != nil {
		syncWorker = worker.NewAgendaWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		go syncWorker.Start(ctx)
	}

	var syncIface domain.SyncWorker
	if syncWorker != nil {
		syncIface = syncWorker
	}

	appts := service.NewAppointmentService(db, eventBus, syncIface, slotCache, cfg.Scheduling, &logger)
	slots := service.NewSlotService(db, slotCache, &logger)

	var exporter *export.AgendaExporter
	if cfg.Exports.Path != "" {
		exporter = export.NewAgendaExporter(db, cfg.Exports.Path, &logger)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, appts, slots, exporter, &logger)
	return serveUntilSignal(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// subscribeAuditLog writes every lifecycle event to the log. External
// delivery (push, e-mail) would subscribe here the same way.
func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{
		events.EventAppointmentRequested,
		events.EventAppointmentConfirmed,
		events.EventAppointmentCancelled,
		events.EventRescheduleProposed,
		events.EventRescheduleAccepted,
		events.EventRescheduleRejected,
	} {
		et := eventType
		bus.Subscribe(et, func(e *events.Event) error {
			logger.Info().Str("event", et).RawJSON("payload", e.Payload).Msg("appointment event")
			return nil
		})
	}
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildSlotCache prefers Redis with an in-process fallback; without Redis
// the in-process cache serves alone.
func buildSlotCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SlotCache {
	ttl := time.Duration(cfg.Scheduling.SlotCacheTTLSec) * time.Second
	memory := repository.NewMemorySlotCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSlotCache(
		repository.NewRedisSlotCache(redisClient, ttl),
		memory,
		logger,
	)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.AgendaSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.AgendaSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveUntilSignal(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
