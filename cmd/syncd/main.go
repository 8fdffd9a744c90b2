package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staysync/internal/api"
	"staysync/internal/cache"
	"staysync/internal/config"
	"staysync/internal/ledger"
	mockledger "staysync/internal/ledger/mock"
	"staysync/internal/ledger/retry"
	"staysync/internal/ledger/soroban"
	"staysync/internal/storage"
	"staysync/internal/syncer"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"env", cfg.AppEnv,
		"ledger_backend", cfg.LedgerBackend,
		"contracts", cfg.Contracts,
		"poll_interval", cfg.PollInterval,
		"log_level", cfg.LogLevel,
	)

	// 3. Initialize database connection
	ctx := context.Background()
	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	slog.Info("Database connected successfully")

	// 4. Cache ( optional )
	var c cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		c = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		slog.Info("Redis cache enabled", "addr", cfg.RedisAddr)
	}

	// 5. Ledger client
	var client ledger.Client
	switch cfg.LedgerBackend {
	case config.BackendSoroban:
		client = soroban.New(soroban.Config{
			RPCServerURL:      cfg.RPCServerURL,
			NetworkPassphrase: cfg.NetworkPassphrase,
			BufferSize:        cfg.BufferSize,
			RequestsPerSecond: cfg.RPCRequestsPerSecond,
		})
		slog.Info("Soroban ledger backend configured", "rpc_server", cfg.RPCServerURL)
	default:
		client = mockledger.New()
		slog.Info("Mock ledger backend configured")
	}
	defer client.Close()

	// 6. Sync engine
	mapper, err := syncer.NewStatusMapper(cfg.StatusMap)
	if err != nil {
		log.Fatalf("Invalid status mapping: %v", err)
	}

	strategy := retry.NewStrategy(retry.LoadConfig())

	engine := syncer.New(syncer.Config{
		Contracts:    cfg.Contracts,
		PollInterval: cfg.PollInterval,
		QueryTimeout: cfg.QueryTimeout,
		ApplyTimeout: cfg.ApplyTimeout,
	}, client, store, mapper, strategy, c)

	// 7. API server
	server := api.NewServer(cfg.APIPort, store, c, engine, cfg.CacheTTLSec)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	// 8. Graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		slog.Warn("Interrupt received, shutting down...")
		cancel()
	case err := <-errChan:
		slog.Error("Sync engine error", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down API server", "error", err)
	}

	slog.Info("Shutdown complete")
}
