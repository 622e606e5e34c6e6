package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via locateConfigDir's search path), and binds environment
// variables with the SBP_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SBP_SERVER_HOST, SBP_AUTH_API_KEYS, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via locateConfigDir's search path.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := locateConfigDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SBP_SERVER_HOST, SBP_RATE_LIMIT_REQUESTS_PER_MINUTE, etc.
	v.SetEnvPrefix("SBP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// SBP_API_KEYS is accepted as a shorter alias for SBP_AUTH_API_KEYS.
	_ = v.BindEnv("auth.api_keys", "SBP_AUTH_API_KEYS", "SBP_API_KEYS")

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("auth.api_keys", d.Auth.APIKeys)

	v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)

	v.SetDefault("evaluation.interval_ms", d.Evaluation.IntervalMS)
	v.SetDefault("evaluation.max_pheromones", d.Evaluation.MaxPheromones)
	v.SetDefault("evaluation.emission_history_window_ms", d.Evaluation.EmissionHistoryWindowMS)
	v.SetDefault("evaluation.sse_keepalive_seconds", d.Evaluation.SSEKeepaliveSeconds)
}
