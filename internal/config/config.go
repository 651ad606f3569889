package config

import (
	"fmt"
	"time"
)

// Config aggregates runtime settings for the deception engine. Values are
// populated from environment variables in cmd/decoynet; all validation
// failures are fatal at startup, before any listener binds.
type Config struct {
	// Listener ports. Port 0 binds an ephemeral port (useful in tests).
	WebPort   int
	ShellPort int
	FTPPort   int

	// Durable store selection. Driver is "sqlite" or "postgres".
	DBDriver    string
	DBPath      string
	PostgresDSN string

	// Optional NATS fan-out. Empty URL disables publishing.
	NATSURL     string
	NATSSubject string

	// Optional YAML file overriding the built-in fingerprint rules.
	RulesFile string

	// Classifier burst heuristic.
	BurstCount  int
	BurstWindow time.Duration
	MaxSources  int

	// Event store memory mirror capacity.
	RecentCapacity int

	// Connection handling limits.
	IdleTimeout      time.Duration
	MaxConnLifetime  time.Duration
	MaxPayloadBytes  int
	MaxResponseBytes int
	WebMaxRequests   int
	ShellMaxAttempts int // 0 means unbounded (lifetime-boxed)

	ShutdownGrace time.Duration
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		WebPort:          8080,
		ShellPort:        2222,
		FTPPort:          2121,
		DBDriver:         "sqlite",
		DBPath:           "data/decoynet.db",
		NATSSubject:      "decoy.events",
		BurstCount:       5,
		BurstWindow:      2 * time.Second,
		MaxSources:       4096,
		RecentCapacity:   1024,
		IdleTimeout:      30 * time.Second,
		MaxConnLifetime:  2 * time.Minute,
		MaxPayloadBytes:  4096,
		MaxResponseBytes: 16384,
		WebMaxRequests:   32,
		ShellMaxAttempts: 0,
		ShutdownGrace:    10 * time.Second,
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	ports := map[string]int{
		"web":   c.WebPort,
		"shell": c.ShellPort,
		"ftp":   c.FTPPort,
	}
	seen := make(map[int]string)
	for name, port := range ports {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
		if port == 0 {
			continue
		}
		if other, dup := seen[port]; dup {
			return fmt.Errorf("%s and %s services share port %d", other, name, port)
		}
		seen[port] = name
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required when driver is postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DBDriver)
	}

	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("NATS subject is required when NATS is enabled")
	}

	if c.BurstCount <= 0 {
		return fmt.Errorf("burst count must be positive, got: %d", c.BurstCount)
	}
	if c.BurstWindow <= 0 {
		return fmt.Errorf("burst window must be positive, got: %v", c.BurstWindow)
	}
	if c.MaxSources <= 0 {
		return fmt.Errorf("max sources must be positive, got: %d", c.MaxSources)
	}
	if c.RecentCapacity <= 0 {
		return fmt.Errorf("recent capacity must be positive, got: %d", c.RecentCapacity)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got: %v", c.IdleTimeout)
	}
	if c.MaxConnLifetime <= 0 {
		return fmt.Errorf("max connection lifetime must be positive, got: %v", c.MaxConnLifetime)
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max payload bytes must be positive, got: %d", c.MaxPayloadBytes)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max response bytes must be positive, got: %d", c.MaxResponseBytes)
	}
	if c.WebMaxRequests <= 0 {
		return fmt.Errorf("web max requests must be positive, got: %d", c.WebMaxRequests)
	}
	if c.ShellMaxAttempts < 0 {
		return fmt.Errorf("shell max attempts cannot be negative, got: %d", c.ShellMaxAttempts)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive, got: %v", c.ShutdownGrace)
	}

	return nil
}
