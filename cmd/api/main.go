package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/api"
	"github.com/frenetico9/Navalha.Digital/internal/availability"
	"github.com/frenetico9/Navalha.Digital/internal/config"
	"github.com/frenetico9/Navalha.Digital/internal/database"
	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/export"
	"github.com/frenetico9/Navalha.Digital/internal/google"
	"github.com/frenetico9/Navalha.Digital/internal/logging"
	"github.com/frenetico9/Navalha.Digital/internal/metrics"
	"github.com/frenetico9/Navalha.Digital/internal/notify"
	"github.com/frenetico9/Navalha.Digital/internal/repository"
	"github.com/frenetico9/Navalha.Digital/internal/service"
	"github.com/frenetico9/Navalha.Digital/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthInterval = 10 * time.Second

// locker covers both slot locks and booking rate counters.
type locker interface {
	domain.SlotLocker
	domain.RateLimiter
}

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
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return fmt.Errorf("booking timezone: %w", err)
	}

	redisClient := initRedis(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()
	slotLocker := initLocker(redisClient, &logger)

	eventBus := events.NewEventBus()
	resolver := availability.NewResolver(db, cfg.Booking.SlotStep(), loc, logging.Component(&logger, "availability"))

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger); sheetsWorker != nil {
		syncWorker = sheetsWorker
	}

	svc := api.Services{
		Shops:    service.NewShopService(db, logging.Component(&logger, "shops")),
		Clients:  service.NewClientService(db, logging.Component(&logger, "clients")),
		Catalog:  service.NewCatalogService(db, logging.Component(&logger, "catalog")),
		Reviews:  service.NewReviewService(db, eventBus, logging.Component(&logger, "reviews")),
		Resolver: resolver,
		Exporter: export.NewExporter(cfg.Exports.Path, logging.Component(&logger, "export")),
	}
	svc.Bookings = service.NewBookingService(db, resolver, slotLocker, slotLocker, eventBus, syncWorker, service.BookingOptions{
		MaxBookingDays: cfg.Booking.MaxBookingDays,
		LockTTL:        cfg.Booking.LockTTL(),
		RateLimit:      cfg.Booking.ClientRateLimit,
		RateWindow:     time.Minute,
	}, logging.Component(&logger, "booking"))

	if cfg.Seed.Path != "" {
		if err := seedFromFile(ctx, cfg.Seed.Path, db, svc, &logger); err != nil {
			logger.Error().Err(err).Str("seed_path", cfg.Seed.Path).Msg("seed database")
			return err
		}
	}

	if err := initNotifier(ctx, cfg, db, eventBus, loc, &logger); err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup")).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	ready := readiness(db, redisClient)
	return startServers(ctx, cfg, svc, ready, &logger)
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

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

// initRedis returns nil when redis is not configured. An unreachable server is kept:
// the failover locker falls back to memory until it answers again.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory locks until it recovers")
		return client
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initLocker(client *redis.Client, logger *zerolog.Logger) locker {
	memory := repository.NewMemoryLocker()
	if client == nil {
		return memory
	}
	return repository.NewFailoverLocker(repository.NewRedisLocker(client), memory, logging.Component(logger, "locker"))
}

func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SheetsWorker {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("google sheets sync disabled")
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.AppointmentsSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Warn().Err(err).Str("service_account", email).Msg("google sheets unreachable; share the spreadsheet with the service account")
		} else {
			logger.Warn().Err(err).Msg("google sheets unreachable")
		}
		return nil
	}

	retry := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2, Jitter: 0.2}
	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, retry, logging.Component(logger, "sheets-worker"))
	go sheetsWorker.Start(ctx)

	// Полная пересинхронизация листа при старте
	if err := sheetsWorker.EnqueueResync(ctx); err != nil {
		logger.Warn().Err(err).Msg("enqueue sheets resync")
	}

	logger.Info().Msg("google sheets sync started")
	return sheetsWorker
}

func initNotifier(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	bus *events.EventBus,
	loc *time.Location,
	logger *zerolog.Logger,
) error {
	if !cfg.Telegram.Enabled() {
		logger.Info().Msg("telegram notifications disabled")
		return nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram bot api")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	notifier, err := notify.NewNotifier(botAPI, db, cfg.Telegram.ReminderTime, loc, logging.Component(logger, "notifier"))
	if err != nil {
		return err
	}
	notifier.Subscribe(bus)
	notifier.StartReminders(ctx)

	logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram notifications enabled")
	return nil
}

func readiness(db *database.DB, redisClient *redis.Client) api.ReadinessFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := repository.Ping(ctx, redisClient); err != nil {
				return err
			}
		}
		return nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	cfg *config.Config,
	svc api.Services,
	ready api.ReadinessFunc,
	logger *zerolog.Logger,
) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, ready, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchHealth(ctx, healthInterval)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, svc, ready, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	if grpcServer == nil && httpServer == nil {
		return errors.New("both api.http and api.grpc are disabled")
	}
	logger.Info().Bool("grpc", grpcServer != nil).Bool("http", httpServer != nil).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
