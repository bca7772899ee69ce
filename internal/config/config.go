package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for the allocator and its CLI.
type Config struct {
	Database Database `yaml:"database"`
	HTTP     HTTP     `yaml:"http"`
	NATS     NATS     `yaml:"nats"`
	Log      Log      `yaml:"log"`
}

// Database selects the sqlite file backing the store.
type Database struct {
	Path string `yaml:"path"`
}

// HTTP configures the front end listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// NATS configures allocation event publishing. URL connects to an existing
// broker; EmbeddedAddr starts one in-process. Both empty disables events.
type NATS struct {
	URL          string `yaml:"url"`
	EmbeddedAddr string `yaml:"embedded_addr"`
}

// Log configures the global logger.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: Database{Path: "slavealloc.db"},
		HTTP:     HTTP{Addr: "0.0.0.0:8010"},
		Log:      Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for values that would only fail later at startup.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.NATS.URL != "" && c.NATS.EmbeddedAddr != "" {
		return errors.New("nats.url and nats.embedded_addr are mutually exclusive")
	}
	return nil
}
