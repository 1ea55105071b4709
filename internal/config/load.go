package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "CHUNKGEN"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Store.validateBackend(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("defaults.world", "")
	v.SetDefault("defaults.center_x", 0)
	v.SetDefault("defaults.center_z", 0)
	v.SetDefault("defaults.radius", 31)
	v.SetDefault("defaults.quiet_seconds", 0)
	v.SetDefault("defaults.silent", false)

	v.SetDefault("task.checkpoint_every", 256)
	v.SetDefault("task.report_interval", "5s")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.file.path", "chunkgen-progress.yaml")
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "chunkgen:")
	v.SetDefault("store.postgres.url", "")

	v.SetDefault("world.names", []string{"world", "world_nether", "world_the_end"})
	v.SetDefault("world.generate_latency", "0s")
}
