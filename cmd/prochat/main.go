package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prochat/internal/config"
	"prochat/internal/inbox"
	"prochat/internal/retry"
	"prochat/internal/storage"
	"prochat/internal/tracing"
	"prochat/pkg/marketplace"
	"prochat/pkg/realtime"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("prochat %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting prochat")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.ServiceVersion = Version
	tracingManager := tracing.NewManager(tracingCfg, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}()

	var cache *storage.Storage
	if cfg.Storage.Path != "" {
		cache, err = storage.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open local cache: %w", err)
		}
		defer cache.Close()

		if cfg.API.AuthToken != "" {
			if err := cache.SaveCredentials(ctx, cfg.User.ID, cfg.API.AuthToken); err != nil {
				logger.WithError(err).Warn("Failed to persist credentials")
			}
		} else if storedUser, storedToken, err := cache.GetCredentials(ctx); err == nil && storedToken != "" && storedUser == cfg.User.ID {
			cfg.API.AuthToken = storedToken
			logger.Debug("Using cached auth token")
		}
	}

	apiClient := marketplace.NewClient(cfg.API.BaseURL, cfg.API.AuthToken, time.Duration(cfg.API.TimeoutSec)*time.Second)

	backoffCfg := retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Realtime.ReconnectInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Realtime.ReconnectMaxDelayMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Realtime.ReconnectMaxAttempts,
		Jitter:       true,
	}
	channel := realtime.NewManager(cfg.Realtime.URL, backoffCfg, logger)
	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect real-time channel: %w", err)
	}
	defer func() {
		if err := channel.Close(); err != nil {
			logger.WithError(err).Warn("Real-time channel close failed")
		}
	}()

	userInbox := inbox.New(apiClient, cfg.User.ID, logger)
	if err := userInbox.Refresh(ctx); err != nil {
		logger.WithError(err).Warn("Initial inbox refresh failed")
	}
	persistInbox(ctx, cache, userInbox, logger)

	proSub, err := channel.JoinProfessional(ctx, cfg.User.ID, func(event string, data json.RawMessage) {
		userInbox.HandleEvent(ctx, event, data)
		persistInbox(ctx, cache, userInbox, logger)
	})
	if err != nil {
		return fmt.Errorf("failed to join notification room: %w", err)
	}
	defer func() {
		if err := channel.Unsubscribe(context.Background(), proSub); err != nil {
			logger.WithError(err).Warn("Failed to leave notification room")
		}
	}()

	server := NewServer(cfg.Server.Port, userInbox, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.WithField("user_id", cfg.User.ID).Info("prochat running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown failed")
	}

	logger.Info("prochat stopped")
	return nil
}

// persistInbox mirrors the in-memory inbox into the local cache so the chat
// list can render offline on next start.
func persistInbox(ctx context.Context, cache *storage.Storage, userInbox *inbox.Inbox, logger *logrus.Logger) {
	if cache == nil {
		return
	}
	for _, summary := range userInbox.Chats() {
		if err := cache.UpsertChatSummary(ctx, summary); err != nil {
			logger.WithError(err).WithField("chat_id", summary.ChatID).Warn("Failed to cache chat summary")
			return
		}
	}
}
