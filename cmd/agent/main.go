package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"uptend/internal/api"
	"uptend/internal/config"
	"uptend/internal/connectivity"
	"uptend/internal/domain"
	"uptend/internal/logging"
	"uptend/internal/metrics"
	"uptend/internal/ops"
	"uptend/internal/queue"
	"uptend/internal/repository"
	"uptend/internal/tracking"
	"uptend/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	kv, redisClient, closeKV, err := initStorage(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if closeKV != nil {
		defer closeKV()
	}
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	store := repository.NewJSONQueueStore(kv, cfg.Queue.StorageKey)
	tokens := repository.NewKVTokenSource(kv, cfg.API.TokenKey)
	client := api.NewClient(cfg.API, tokens)

	deadLetter := initDeadLetter(cfg, redisClient, &logger)

	// The queue asks the monitor for reachability, the monitor drains the
	// queue on recovery; bind the queue side late to break the cycle.
	var monitor *connectivity.Monitor
	q := queue.New(store, client, func() bool { return monitor.Online() }, &logger,
		queue.WithDeadLetter(deadLetter),
		queue.WithMaxRetries(cfg.Queue.RetryBudget()),
	)

	probe := connectivity.NewProbe(func(ctx context.Context) bool {
		return client.Healthy(ctx, cfg.API.ProbePath)
	}, cfg.API.ProbeInterval)

	monitor = connectivity.NewMonitor(probe, func(ctx context.Context) {
		q.Sync(ctx)
	}, &logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	sweeper := worker.NewSweeper(q, cfg.Sync.SweepInterval, &logger)
	go sweeper.Start(ctx)

	if jobID := os.Getenv("TRACK_JOB_ID"); jobID != "" && cfg.Socket.BaseURL != "" {
		tracker := tracking.NewTracker(cfg.Socket, jobID, tracking.WebsocketDialer{}, &logger)
		tracker.Start(ctx)
		defer tracker.Stop()
	}

	if cfg.Ops.Enabled {
		opsServer := ops.NewServer(*cfg, q, monitor, deadLetter, &logger)
		go func() {
			if err := opsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Ops server error")
			}
		}()
		defer func() {
			_ = opsServer.Shutdown(context.Background())
		}()
	}

	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Str("api", cfg.API.BaseURL).
		Msg("Sync agent started")

	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if cfg.Storage.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			logger.Error().Err(err).Msg("Failed to create storage directory")
			return err
		}
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Failed to create exports directory")
			return err
		}
	}
	return nil
}

// initStorage opens the configured backend and wraps it in a failover layer
// so a dead redis or a locked sqlite file degrades to in-memory state
// instead of taking the agent down.
func initStorage(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.KVStore, *redis.Client, func() error, error) {
	switch cfg.Storage.Backend {
	case "redis":
		redisClient := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable")
		}
		kv := repository.NewFailoverKV(repository.NewRedisKV(redisClient), repository.NewMemoryKV(), logger)
		return kv, redisClient, nil, nil

	case "memory":
		return repository.NewMemoryKV(), nil, nil, nil

	default:
		sqliteKV, err := repository.OpenSQLiteKV(cfg.Storage.Path)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open sqlite store")
			return nil, nil, nil, err
		}
		kv := repository.NewFailoverKV(sqliteKV, repository.NewMemoryKV(), logger)
		return kv, nil, sqliteKV.Close, nil
	}
}

func initDeadLetter(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.DeadLetterSink {
	if redisClient != nil {
		return repository.NewRedisDeadLetter(redisClient, cfg.Queue.DeadLetterKey, logger)
	}
	return repository.NewMemoryDeadLetter()
}
