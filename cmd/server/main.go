package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adgate/internal/config"
	"adgate/internal/data/connection"
	"adgate/internal/database"
	"adgate/internal/logger"
	"adgate/internal/notify"
	"adgate/internal/retry"
	"adgate/internal/scheduler"
	"adgate/internal/server/api"
	"adgate/internal/server/repository"
	"adgate/internal/server/service"
	"adgate/internal/version"

	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		info := version.GetInfo()
		fmt.Println(info.String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.Named("server")
	defer log.Sync()

	retry.SetLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database and run migrations
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Open redis and broker clients
	conns, err := connection.New(ctx, &cfg.Redis, &cfg.Broker, log)
	if err != nil {
		return fmt.Errorf("failed to open connections: %w", err)
	}
	defer func() {
		if err := conns.Close(); err != nil {
			log.Error("Failed to close connections", zap.Error(err))
		}
	}()

	stores := repository.NewSQLStores(db, log)
	if conns.RC != nil {
		stores.Profiles = repository.NewCachedProfileStore(stores.Profiles, conns.RC,
			cfg.Redis.ProfileTTL, cfg.Redis.KeyPrefix, log)
	}

	email, err := notify.NewProvider(&cfg.Email, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email provider: %w", err)
	}

	publisher, err := notify.NewPublisher(&cfg.Broker, conns, log)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	dispatcher := notify.NewDispatcher(publisher, notify.DefaultQueueSize, log)

	sched := scheduler.New(log)

	// Initialize service
	svc, err := service.NewService(&cfg.Ads, service.Dependencies{
		Stores:     stores,
		Email:      email,
		Dispatcher: dispatcher,
		Scheduler:  sched,
		Health: map[string]service.Pinger{
			"database":    service.PingFunc(db.Ping),
			"connections": service.PingFunc(conns.Ping),
		},
	}, log)
	if err != nil {
		_ = dispatcher.Stop(context.Background())
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := svc.Start(); err != nil {
		_ = svc.Stop(context.Background())
		return fmt.Errorf("failed to start service: %w", err)
	}
	sched.Start()

	// Initialize router
	router := api.NewRouter(cfg, svc, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("version", version.GetInfo().Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	log.Info("Starting graceful shutdown")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown error", zap.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error("Service shutdown error", zap.Error(err))
	}

	log.Info("Shutdown complete")
	return runErr
}
