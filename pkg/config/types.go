package config

// Config represents the persistent sbp configuration stored as config.toml
// in the .sbp/ directory. The TOML layout uses sections for logical grouping,
// the same shape the CLI's viper precedence chain binds onto.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	Auth       AuthConfig       `toml:"auth"`
	RateLimit  RateLimitConfig  `toml:"rate_limit" mapstructure:"rate_limit"`
	Evaluation EvaluationConfig `toml:"evaluation"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host,omitempty"`
	Port int    `toml:"port,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level,omitempty"`
	// JSON switches to structured JSON log lines instead of text.
	JSON bool `toml:"json,omitempty"`
	// File, if set, additionally writes JSON logs to this path (see pkg/logger.Multi).
	File string `toml:"file,omitempty"`
}

// AuthConfig holds the accepted API keys for the Authorization: Bearer hook.
// An empty list means auth is disabled.
type AuthConfig struct {
	APIKeys []string `toml:"api_keys,omitempty" mapstructure:"api_keys"`
}

// RateLimitConfig holds the token-bucket rate limit applied per agent/IP.
// A zero value disables rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
}

// EvaluationConfig holds blackboard engine tuning knobs.
type EvaluationConfig struct {
	IntervalMS              int64 `toml:"interval_ms,omitempty" mapstructure:"interval_ms"`
	MaxPheromones           int   `toml:"max_pheromones,omitempty" mapstructure:"max_pheromones"`
	EmissionHistoryWindowMS int64 `toml:"emission_history_window_ms,omitempty" mapstructure:"emission_history_window_ms"`
	SSEKeepaliveSeconds     int   `toml:"sse_keepalive_seconds,omitempty" mapstructure:"sse_keepalive_seconds"`
}
