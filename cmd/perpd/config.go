package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"perpengine/engine"
	"perpengine/observability/logging"
)

// fileConfig is the on-disk shape of perpd's config file: daemon-level
// knobs alongside the engine's own bootstrap configuration, nested under
// [engine] so the two don't collide.
type fileConfig struct {
	ListenAddress string             `toml:"listen_address"`
	Environment   string             `toml:"environment"`
	LogFile       logging.FileConfig `toml:"log_file"`
	Engine        engine.Config      `toml:"engine"`
}

// loadConfig reads and decodes path as a perpd config file.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("perpd: decode config %s: %w", path, err)
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":9090"
	}
	return cfg, nil
}
