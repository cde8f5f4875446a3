package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API   APIConfig
	Cache CacheConfig
	Log   LogConfig
	TUI   TUIConfig
}

type APIConfig struct {
	// BaseURL is the root of the Poils backend, e.g. http://localhost:3001.
	BaseURL string
	// Timeout is the per-request timeout as a duration string.
	Timeout string
}

type CacheConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type TUIConfig struct {
	// Markdown controls glamour rendering of assistant messages.
	Markdown bool
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:3001",
			Timeout: "30s",
		},
		Cache: CacheConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		TUI: TUIConfig{
			Markdown: true,
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/poils/config.json, then applies POILS_* environment
// overrides. A .env file in the working directory is honored before the
// environment is read.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if _, err := url.ParseRequestURI(cfg.API.BaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid api.base_url %q: %w", cfg.API.BaseURL, err)
	}
	if _, err := time.ParseDuration(cfg.API.Timeout); err != nil {
		return Config{}, fmt.Errorf("invalid api.timeout %q: %w", cfg.API.Timeout, err)
	}

	return cfg, nil
}

// RequestTimeout returns the parsed api.timeout. Load validates the value,
// so the fallback only matters for zero-value Configs built in tests.
func (c Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
