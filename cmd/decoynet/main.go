package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sgerhart/decoynet/internal/config"
	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/geoip"
	"github.com/sgerhart/decoynet/internal/orchestrator"
	"github.com/sgerhart/decoynet/internal/publish"
	"github.com/sgerhart/decoynet/internal/sink"
	"github.com/sgerhart/decoynet/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(getEnv("DECOY_LOG_LEVEL", "info")),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting DecoyNet deception engine")

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded",
		"web_port", cfg.WebPort,
		"shell_port", cfg.ShellPort,
		"ftp_port", cfg.FTPPort,
		"db_driver", cfg.DBDriver,
		"db_path", cfg.DBPath,
		"nats_url", cfg.NATSURL,
		"burst_count", cfg.BurstCount,
		"burst_window", cfg.BurstWindow)

	// Durable backend
	backend, err := openBackend(cfg)
	if err != nil {
		logger.Error("Failed to open durable store", "error", err)
		os.Exit(1)
	}
	eventStore := store.New(backend, cfg.RecentCapacity, logger)
	defer eventStore.Close()

	// Fingerprint rules
	rules := fingerprint.DefaultRules()
	if cfg.RulesFile != "" {
		rules, err = fingerprint.LoadRules(cfg.RulesFile)
		if err != nil {
			logger.Error("Failed to load fingerprint rules", "error", err)
			os.Exit(1)
		}
		logger.Info("Fingerprint rules loaded", "file", cfg.RulesFile, "count", len(rules))
	}

	classifier := fingerprint.New(fingerprint.Options{
		Rules:       rules,
		BurstCount:  cfg.BurstCount,
		BurstWindow: cfg.BurstWindow,
		MaxSources:  cfg.MaxSources,
	})

	decoys := decoy.New(decoy.Options{MaxBytes: cfg.MaxResponseBytes})

	// Optional geographic enrichment
	var geo geoip.Resolver = geoip.NoopResolver{}
	if table := getEnv("DECOY_GEOIP_TABLE", ""); table != "" {
		geo, err = geoip.LoadTable(table)
		if err != nil {
			logger.Error("Failed to load geoip table", "error", err)
			os.Exit(1)
		}
	}

	// Optional NATS fan-out
	var publisher sink.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := publish.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	events := sink.New(eventStore, geo, publisher, logger)

	orch := orchestrator.New(cfg, classifier, decoys, events, eventStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		logger.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	logger.Info("DecoyNet started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+5*time.Second)
	defer stopCancel()
	if err := orch.Stop(stopCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	logger.Info("DecoyNet stopped")
}

func loadConfig() *config.Config {
	cfg := config.Default()

	cfg.WebPort = getEnvInt("DECOY_WEB_PORT", cfg.WebPort)
	cfg.ShellPort = getEnvInt("DECOY_SHELL_PORT", cfg.ShellPort)
	cfg.FTPPort = getEnvInt("DECOY_FTP_PORT", cfg.FTPPort)

	cfg.DBDriver = getEnv("DECOY_DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("DECOY_DB_PATH", cfg.DBPath)
	cfg.PostgresDSN = getEnv("DECOY_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.NATSURL = getEnv("DECOY_NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getEnv("DECOY_NATS_SUBJECT", cfg.NATSSubject)

	cfg.RulesFile = getEnv("DECOY_RULES_FILE", cfg.RulesFile)

	cfg.BurstCount = getEnvInt("DECOY_BURST_COUNT", cfg.BurstCount)
	cfg.BurstWindow = time.Duration(getEnvInt("DECOY_BURST_WINDOW_MS", int(cfg.BurstWindow/time.Millisecond))) * time.Millisecond
	cfg.MaxSources = getEnvInt("DECOY_MAX_SOURCES", cfg.MaxSources)

	cfg.RecentCapacity = getEnvInt("DECOY_RECENT_CAPACITY", cfg.RecentCapacity)

	cfg.IdleTimeout = time.Duration(getEnvInt("DECOY_IDLE_TIMEOUT_SEC", int(cfg.IdleTimeout/time.Second))) * time.Second
	cfg.MaxConnLifetime = time.Duration(getEnvInt("DECOY_MAX_CONN_LIFETIME_SEC", int(cfg.MaxConnLifetime/time.Second))) * time.Second
	cfg.MaxPayloadBytes = getEnvInt("DECOY_MAX_PAYLOAD_BYTES", cfg.MaxPayloadBytes)
	cfg.MaxResponseBytes = getEnvInt("DECOY_MAX_RESPONSE_BYTES", cfg.MaxResponseBytes)
	cfg.WebMaxRequests = getEnvInt("DECOY_WEB_MAX_REQUESTS", cfg.WebMaxRequests)
	cfg.ShellMaxAttempts = getEnvInt("DECOY_SHELL_MAX_ATTEMPTS", cfg.ShellMaxAttempts)

	cfg.ShutdownGrace = time.Duration(getEnvInt("DECOY_SHUTDOWN_GRACE_SEC", int(cfg.ShutdownGrace/time.Second))) * time.Second

	return cfg
}

func openBackend(cfg *config.Config) (store.Backend, error) {
	if cfg.DBDriver == "postgres" {
		return store.OpenPostgres(cfg.PostgresDSN)
	}
	return store.OpenSQLite(cfg.DBPath)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
