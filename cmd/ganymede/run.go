package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/quota"
	"mercator-hq/ganymede/pkg/quota/counter"
	"mercator-hq/ganymede/pkg/quota/queue"
	"mercator-hq/ganymede/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede quota server",
	Long: `Start the Ganymede quota server with the specified configuration.

The server listens on the configured address and answers quota checks,
records completed queries, and drains the pending-record queue in the
background.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting server
  ganymede run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	setupLogging(cfg)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Ganymede v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	loc, err := time.LoadLocation(cfg.Quota.ResetTimezone)
	if err != nil {
		return cli.NewConfigError("quota.reset_timezone", err.Error())
	}

	// Counter backend
	backend, err := buildBackend(cfg, loc)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer backend.Close()
	fmt.Printf("✓ Counter backend initialized (%s)\n", cfg.Counter.Backend)

	// Pending-record queue store
	store, err := buildQueueStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	// Quota service
	svc := quota.NewService(quota.Config{
		Backend:    backend,
		QueueStore: store,
		DailyLimit: cfg.Quota.DailyLimit,
		Location:   loc,
		RetryDelay: cfg.Quota.RetryDelay,
	})
	quota.SetDefault(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	// Wake signals: SIGHUP and config reloads both trigger a backlog flush.
	hupSignal := quota.NewSignal()
	reloadSignal := quota.NewSignal()
	svc.WatchTriggers(done, hupSignal, reloadSignal)

	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-hupChan:
				hupSignal.Wake()
			}
		}
	}()

	// Scheduled flushes drain the queue even without traffic or signals.
	scheduler := quota.NewFlushScheduler(svc, cfg.Quota.FlushSchedule)
	if err := scheduler.Start(ctx); err != nil {
		slog.Warn("failed to start flush scheduler", "error", err)
	} else {
		defer scheduler.Stop()
		if next := scheduler.NextRun(); next != nil {
			slog.Debug("flush scheduler started", "next_flush", next)
		}
	}

	// Config watcher hot-reloads the daily limit.
	watcher, err := config.NewWatcher(cfgFile)
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			_ = watcher.Watch(func() error {
				if err := config.ReloadConfig(cfgFile); err != nil {
					return err
				}
				reloaded := config.GetConfig()
				svc.SetDailyLimit(reloaded.Quota.DailyLimit)
				slog.Info("daily limit reloaded", "limit", reloaded.Quota.DailyLimit)
				reloadSignal.Wake()
				return nil
			})
		}()
		defer watcher.Stop()
	}

	// HTTP server
	metricsEnabled := cfg.Telemetry.Metrics.Enabled == nil || *cfg.Telemetry.Metrics.Enabled
	srv := server.NewServer(&cfg.Server, svc, metricsEnabled)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if metricsEnabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// setupLogging installs the process-wide slog default from config.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.Telemetry.Logging.Level {
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
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if cfg.Telemetry.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildBackend constructs the counter backend selected by config.
func buildBackend(cfg *config.Config, loc *time.Location) (counter.Backend, error) {
	switch cfg.Counter.Backend {
	case "memory":
		return counter.NewMemoryBackend(loc), nil
	case "sqlite":
		backend, err := counter.NewSQLiteBackend(cfg.Counter.SQLite.Path, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite backend: %w", err)
		}
		return backend, nil
	case "redis":
		backend, err := counter.NewRedisBackend(counter.RedisBackendConfig{
			Address:  cfg.Counter.Redis.Address,
			Password: cfg.Counter.Redis.Password,
			DB:       cfg.Counter.Redis.DB,
			Location: loc,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported counter backend: %s", cfg.Counter.Backend)
	}
}

// buildQueueStore constructs the pending-queue store. An empty path keeps the
// queue in memory, which loses it on restart.
func buildQueueStore(cfg *config.Config) (queue.Store, error) {
	if cfg.Queue.Path == "" {
		slog.Warn("queue.path not configured, pending records will not survive restarts")
		return queue.NewMemoryStore(), nil
	}

	store, err := queue.NewFileStore(cfg.Queue.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}
	return store, nil
}
