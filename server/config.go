package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// Config holds the HTTP shell settings and the codec resource limits.
type Config struct {
	Addr   string      `yaml:"addr"`
	Limits core.Limits `yaml:"limits"`
}

// DefaultConfig listens on :8080 with the default codec limits.
func DefaultConfig() Config {
	return Config{Addr: ":8080", Limits: core.DefaultLimits()}
}

// LoadConfig reads a YAML config file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg, nil
}
