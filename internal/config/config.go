package config

import (
	"fmt"
	"time"
)

// Storage backends understood by StoreConfig.Backend.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Defaults DefaultsConfig `mapstructure:"defaults" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	World    WorldConfig    `mapstructure:"world" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// DefaultsConfig holds the parameters used by the next start until they are
// changed from the console.
type DefaultsConfig struct {
	// World is the region a start targets. Empty means the first configured world.
	World   string `mapstructure:"world"`
	CenterX int    `mapstructure:"center_x"`
	CenterZ int    `mapstructure:"center_z"`

	// Radius is measured in cells of 16 blocks; the default of 31 covers
	// roughly 500 blocks around the center.
	Radius       int  `mapstructure:"radius" validate:"gte=0,lte=1073741823"`
	QuietSeconds int  `mapstructure:"quiet_seconds" validate:"gte=0"`
	Silent       bool `mapstructure:"silent"`
}

// TaskConfig tunes the generation loop.
type TaskConfig struct {
	// CheckpointEvery is the number of cells between periodic progress saves
	CheckpointEvery int64 `mapstructure:"checkpoint_every" validate:"gt=0"`

	// ReportInterval is the minimum time between progress reports. Zero reports every cell.
	ReportInterval time.Duration `mapstructure:"report_interval" validate:"gte=0"`
}

// StoreConfig selects and configures the progress store backend.
type StoreConfig struct {
	Backend  string              `mapstructure:"backend" validate:"required,oneof=file redis postgres"`
	File     FileStoreConfig     `mapstructure:"file"`
	Redis    RedisStoreConfig    `mapstructure:"redis"`
	Postgres PostgresStoreConfig `mapstructure:"postgres"`
}

// FileStoreConfig configures the YAML file backend.
type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Addr      string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PostgresStoreConfig configures the PostgreSQL backend.
type PostgresStoreConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// WorldConfig describes the host environment.
type WorldConfig struct {
	Names []string `mapstructure:"names" validate:"required,min=1,dive,required"`

	// GenerateLatency simulates the cost of generating a single cell
	GenerateLatency time.Duration `mapstructure:"generate_latency" validate:"gte=0"`
}

// DefaultWorld returns the configured default world, falling back to the
// first known world.
func (c *Config) DefaultWorld() string {
	if c.Defaults.World != "" {
		return c.Defaults.World
	}
	if len(c.World.Names) > 0 {
		return c.World.Names[0]
	}
	return ""
}

// Quiet returns the default quiet interval as a duration.
func (c DefaultsConfig) Quiet() time.Duration {
	return time.Duration(c.QuietSeconds) * time.Second
}

// validateBackend checks the settings the selected backend cannot run without.
func (c StoreConfig) validateBackend() error {
	switch c.Backend {
	case BackendFile:
		if c.File.Path == "" {
			return fmt.Errorf("store.file.path is required for the %s backend", c.Backend)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the %s backend", c.Backend)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("store.postgres.url is required for the %s backend", c.Backend)
		}
	}
	return nil
}
