package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/ca-monitor/internal/config"
	"github.com/rewired-gh/ca-monitor/internal/detector"
	"github.com/rewired-gh/ca-monitor/internal/dispatch"
	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
	"github.com/rewired-gh/ca-monitor/internal/monitor"
	"github.com/rewired-gh/ca-monitor/internal/status"
	"github.com/rewired-gh/ca-monitor/internal/storage"
	"github.com/rewired-gh/ca-monitor/internal/telegram"
)

var (
	configPath = pflag.StringP("config", "c", "configs/config.yaml", "Path to a yaml config file or a .env file (empty: environment only)")
	logLevel   = pflag.String("log-level", "", "Override logging.level (debug, info, warn, error)")
	noWatch    = pflag.Bool("no-watch", false, "Disable config hot reload")
)

const (
	startupNotice  = "🚀 Solana CA Monitor Bot has started!"
	shutdownNotice = "🛑 Solana CA Monitor Bot has stopped!"
)

func main() {
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.InitWithOptions(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
	})
	logger.Info("Configuration loaded from %s", describePath(*configPath))

	// Initialize source directory
	store := storage.New(cfg.Storage.MaxSources, cfg.Storage.SourcesPath)
	if err := store.Load(); err != nil {
		logger.Warn("Failed to load source directory, starting empty: %v", err)
	}
	logger.Debug("Source directory %s holds %d sources", store.FilePath(), store.Len())

	// Initialize dispatcher
	dispatcher, err := dispatch.New(
		dispatch.Recipients{Owner: cfg.Telegram.OwnerID, Target: cfg.Telegram.TargetID},
		dispatch.WithEviction(dedupPolicy(cfg.Dedup)),
	)
	if err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	// Initialize Telegram client
	telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, cfg.Telegram.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram client: %v", err)
	}

	// Initialize monitor
	svc := monitor.New(
		detector.NewEngine(),
		dispatcher,
		telegramClient,
		store,
		monitor.NewSettings(cfg.Toggles(), cfg.AllowList()),
	)
	logMonitoring(cfg)

	// Config hot reload: toggles, allow-list and log level only
	if !*noWatch {
		err := config.Watch(*configPath, func(next *config.Config) {
			svc.UpdateSettings(monitor.NewSettings(next.Toggles(), next.AllowList()))
			if *logLevel == "" {
				logger.SetLevel(next.Logging.Level)
			}
		}, func(err error) {
			logger.Warn("Ignoring config change: %v", err)
		})
		if err != nil {
			logger.Debug("Config hot reload disabled: %v", err)
		}
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start status server
	var statusServer *status.Server
	if cfg.Status.Enabled {
		var accessLog io.Writer
		if cfg.Status.AccessLog != "" {
			accessLog = logger.RotatingFile(cfg.Status.AccessLog, 0, 0, 0)
		}
		statusServer = status.NewServer(cfg.Status.ListenAddr, status.NewRouter(svc, store, accessLog))
		statusServer.Start()
	}

	notifyOwner(telegramClient, cfg, startupNotice)

	messages := telegramClient.Listen(ctx, telegram.ListenOptions{
		PollTimeout:      cfg.Telegram.PollTimeout,
		PinnedOnlyGroups: cfg.Monitor.GroupsPinnedOnly,
	})

	logger.Info("Starting monitoring service")
	err = svc.Run(ctx, messages, monitor.RunOptions{
		HeartbeatInterval:   cfg.Monitor.HeartbeatInterval,
		PersistenceInterval: cfg.Storage.PersistenceInterval,
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Monitor exited: %v", err)
	}
	logger.Info("Shutdown signal received, cleaning up...")

	notifyOwner(telegramClient, cfg, shutdownNotice)

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server forced to shutdown: %v", err)
		}
	}

	logger.Info("Service stopped")
}

// dedupPolicy maps the dedup config to an eviction policy. With neither a
// window nor a cap each pair is notified once per run.
func dedupPolicy(c config.DedupConfig) dispatch.EvictionPolicy {
	var policies []dispatch.EvictionPolicy
	if c.Window > 0 {
		policies = append(policies, dispatch.TTL(c.Window))
	}
	if c.MaxEntries > 0 {
		policies = append(policies, dispatch.MaxEntries(c.MaxEntries))
	}

	switch len(policies) {
	case 0:
		return dispatch.Lifetime()
	case 1:
		return policies[0]
	default:
		return dispatch.Combine(policies...)
	}
}

// notifyOwner sends a lifecycle notice with its own timeout so it still goes
// out after the main context is cancelled.
func notifyOwner(client *telegram.Client, cfg *config.Config, text string) {
	if !cfg.Telegram.NotifyLifecycle || cfg.Telegram.OwnerID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Notify(ctx, cfg.Telegram.OwnerID, text); err != nil {
		logger.Warn("Could not send lifecycle notification: %v", err)
	}
}

func logMonitoring(cfg *config.Config) {
	logger.Info("Monitoring %d channels, %d groups, %d users (bot enabled: %v)",
		len(cfg.Monitor.Channels),
		len(cfg.Monitor.Groups),
		len(cfg.Monitor.Users),
		cfg.Bot.Enabled,
	)
	toggles := cfg.Toggles()
	for _, p := range models.AllPlatforms {
		logger.Debug("Platform %s enabled: %v", p, toggles.PlatformEnabled(p))
	}
	if cfg.Monitor.GroupsPinnedOnly {
		logger.Info("Groups: only pinned messages are inspected")
	}
	if cfg.Dedup.Window > 0 || cfg.Dedup.MaxEntries > 0 {
		logger.Info("Dedup window: %v, max entries: %d", cfg.Dedup.Window, cfg.Dedup.MaxEntries)
	} else {
		logger.Info("Dedup: each CA is notified once per source per run")
	}
}

func describePath(path string) string {
	if path == "" {
		return "environment"
	}
	return fmt.Sprintf("%s and environment", path)
}
