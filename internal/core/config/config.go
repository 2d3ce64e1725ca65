package config

import (
	"time"

	"github.com/vietddude/txsync/internal/core/domain"
	redisclient "github.com/vietddude/txsync/internal/infra/redis"
	"github.com/vietddude/txsync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Sync     SyncConfig         `yaml:"sync"`
	Projects []ProjectConfig    `yaml:"projects"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SyncConfig holds settings shared by all updaters.
type SyncConfig struct {
	// Enabled turns transaction count syncing on (default: true).
	Enabled *bool `yaml:"enabled"`

	// Storage selects the record repository: "postgres" (default) or "memory".
	Storage string `yaml:"storage"`

	// CheckInterval is how often the clock looks for a new hour.
	CheckInterval time.Duration `yaml:"check_interval"`

	// MaxUnitsPerUpdate caps units enqueued per update (0 = no cap).
	MaxUnitsPerUpdate uint64 `yaml:"max_units_per_update"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Starkex StarkexConfig `yaml:"starkex"`
}

// IsEnabled reports whether syncing is on.
func (s SyncConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// StarkexConfig holds the StarkEx aggregation API shared by all StarkEx
// projects.
type StarkexConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	CallsPerMinute int           `yaml:"calls_per_minute"`
	Workers        int           `yaml:"workers"`
	APIDelay       time.Duration `yaml:"api_delay"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ProjectConfig holds settings for a single synced project.
type ProjectConfig struct {
	ID             domain.ProjectID    `yaml:"id"`
	Type           domain.ProviderType `yaml:"type"` // rpc, zksync, loopring, starkex
	URL            string              `yaml:"url"`
	CallsPerMinute int                 `yaml:"calls_per_minute"`
	Workers        int                 `yaml:"workers"`
	Timeout        time.Duration       `yaml:"timeout"`
	SinceTimestamp int64               `yaml:"since_timestamp"` // unix seconds
	Product        string              `yaml:"product"`         // starkex only
}

// Since returns the first timestamp the project has data for.
func (p ProjectConfig) Since() domain.UnixTime {
	return domain.UnixTime(p.SinceTimestamp)
}
