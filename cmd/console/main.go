package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teesheet/internal/backend"
	"teesheet/internal/config"
	"teesheet/internal/directory"
	"teesheet/internal/domain"
	"teesheet/internal/events"
	"teesheet/internal/logging"
	"teesheet/internal/metrics"
	"teesheet/internal/models"
	"teesheet/internal/reconcile"
	"teesheet/internal/search"
	"teesheet/internal/server"
	"teesheet/internal/sheets"
	"teesheet/internal/store"
	"teesheet/internal/webhooks"
	"teesheet/internal/worker"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditStore, err := store.Open(cfg.Store.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("store_path", cfg.Store.Path).Msg("init audit store")
		return err
	}
	defer auditStore.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	client := backend.NewClient(cfg.Backend, &logger)

	directoryService := initDirectory(ctx, cfg, client, redisClient, &logger)

	eventBus := events.NewEventBus()
	subscribeReconcileEvents(ctx, eventBus, auditStore, &logger)

	startAuditWorker(ctx, cfg, auditStore, &logger)

	webhookService := webhooks.NewService(client, cfg.Exports.Path, &logger)

	searcher := search.NewSearcher(client,
		time.Duration(cfg.Search.DebounceMillis)*time.Millisecond,
		cfg.Search.MinQueryLength, 10, &logger)

	admin := server.New(cfg.Admin, server.Deps{
		Backend:   client,
		Directory: directoryService,
		Search:    searcher,
		Webhooks:  webhookService,
		Audit:     auditStore,
		Bus:       eventBus,
		Rules: reconcile.PlaceholderRules{
			Domains:  cfg.Reconcile.PlaceholderDomains,
			Prefixes: cfg.Reconcile.PlaceholderPrefixes,
		},
	}, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, admin, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "console-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := directory.NewRedisClient(cfg.Redis)
	if err := directory.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initDirectory wires the snapshot cache: redis primary with in-memory
// failover when redis is configured, memory alone otherwise. A background
// refresher keeps the snapshot warm.
func initDirectory(ctx context.Context, cfg *config.Config, client *backend.Client, redisClient *redis.Client, logger *zerolog.Logger) *directory.Service {
	ttl := time.Duration(cfg.Directory.TTLMinutes) * time.Minute
	memory := directory.NewMemoryDirectoryRepository(ttl)

	var repo domain.DirectoryRepository = memory
	if redisClient != nil {
		primary := directory.NewRedisDirectoryRepository(redisClient, ttl)
		repo = directory.NewFailoverDirectoryRepository(primary, memory, logger)
	}

	svc := directory.NewService(client, repo, logger)
	go svc.RunRefresher(ctx, time.Duration(cfg.Directory.RefreshMinutes)*time.Minute)
	return svc
}

// subscribeReconcileEvents records every reconciliation disposal in the
// local audit trail, which in turn feeds the sheet mirror queue.
func subscribeReconcileEvents(ctx context.Context, bus *events.EventBus, auditStore domain.AuditStore, logger *zerolog.Logger) {
	outcomes := map[string]string{
		events.EventUnmatchedResolved: models.OutcomeResolved,
		events.EventMarkedAsEvent:     models.OutcomeMarkedEvent,
		events.EventAssignedToStaff:   models.OutcomeAssignedStaff,
	}

	for eventType, outcome := range outcomes {
		outcome := outcome
		bus.Subscribe(eventType, func(event *events.Event) error {
			var payload events.ReconcileEventPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				logger.Error().Err(err).Str("event_type", event.Type).Msg("decode reconcile event")
				return err
			}

			rec := &models.AuditRecord{
				UnmatchedID:      payload.UnmatchedID,
				TrackmanID:       payload.TrackmanID,
				Outcome:          outcome,
				Route:            payload.Route,
				BookingID:        payload.BookingID,
				OwnerEmail:       payload.OwnerEmail,
				PlayerCount:      payload.PlayerCount,
				FeesRecalculated: payload.FeesRecalculated,
			}
			if err := auditStore.RecordOutcome(ctx, rec); err != nil {
				logger.Error().Err(err).Int64("unmatched_id", payload.UnmatchedID).Msg("record outcome")
				return err
			}
			return nil
		})
	}
}

func startAuditWorker(ctx context.Context, cfg *config.Config, auditStore domain.AuditStore, logger *zerolog.Logger) {
	if cfg.Google.CredentialsFile == "" || cfg.Google.AuditSpreadsheetID == "" {
		logger.Info().Msg("audit sheet mirror disabled")
		return
	}

	sheetsService, err := sheets.NewService(ctx, cfg.Google.CredentialsFile, cfg.Google.AuditSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheet mirror")
		return
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		account, _ := sheets.ServiceAccountEmail(cfg.Google.CredentialsFile)
		logger.Warn().Err(err).
			Str("service_account", account).
			Str("spreadsheet_id", cfg.Google.AuditSpreadsheetID).
			Msg("audit sheet unreachable, share it with the service account; continuing without sheet mirror")
		return
	}

	auditWorker := worker.NewAuditWorker(auditStore, sheetsService, worker.RetryPolicy{}, logger)
	go auditWorker.Start(ctx)
	logger.Info().Msg("audit sheet worker started")
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

func startServer(ctx context.Context, admin *server.Server, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := admin.Start(); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	logger.Info().Int("admin_port", cfg.Admin.Port).Msg("console started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = admin.Shutdown(shutdownCtx)

	logger.Info().Msg("console stopped")
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
