package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchAndReload installs a viper file watcher (backed by fsnotify) that
// calls onChange with the freshly parsed Config every time config.toml is
// written. Errors parsing the new file are swallowed with onChange left
// uncalled, leaving the previously loaded Config in effect; callers that
// care about the parse error should re-run LoadConfig themselves.
func WatchAndReload(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
