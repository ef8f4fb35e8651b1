// Package config loads the engine's startup configuration: network binding,
// queue scheduling limits, and generation-provider endpoints. These are
// outer concerns the core engine never reads directly — it only ever sees
// the resolved values through queue.Config and the worker providers
// constructed from them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftforge/a2a-genengine/internal/queue"
)

// Config is the engine's full startup configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DemoMode bool `yaml:"demoMode"`

	ImageProviderURL string `yaml:"imageProviderUrl"`
	VideoProviderURL string `yaml:"videoProviderUrl"`

	Queue queue.Config `yaml:"queue"`
}

// defaults returns a Config with the engine's built-in defaults.
func defaults() Config {
	return Config{
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "info",
		Queue: queue.Config{
			MaxConcurrent: queue.DefaultMaxConcurrent,
			MaxRetries:    queue.DefaultMaxRetries,
			RetryDelay:    queue.DefaultRetryDelay,
		},
	}
}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, an optional YAML file at path (skipped if empty or missing),
// and environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Optional file; proceed with defaults + environment.
		default:
			return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DEMO_MODE"); v != "" {
		cfg.DemoMode, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("IMAGE_PROVIDER_URL"); v != "" {
		cfg.ImageProviderURL = v
	}
	if v := os.Getenv("VIDEO_PROVIDER_URL"); v != "" {
		cfg.VideoProviderURL = v
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxConcurrent = n
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxRetries = n
		}
	}
	if v := os.Getenv("RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.RetryDelay = time.Duration(n) * time.Millisecond
		}
	}
}
