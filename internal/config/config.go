// Package config loads TuneSmith configuration from an optional TOML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Errors returned during configuration loading.
var (
	ErrMissingSpotifyCredentials = errors.New("missing Spotify client credentials")
	ErrMissingOpenAIKey          = errors.New("missing OpenAI API key")
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Agent    AgentConfig    `toml:"agent"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// OpenAIConfig contains settings for the reasoning model endpoint.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// AgentConfig bounds the orchestration loop and the tool adapter.
type AgentConfig struct {
	MaxSteps        int     `toml:"max_steps"`
	PreviewLimit    int     `toml:"preview_limit"`
	PageLimit       int     `toml:"page_limit"`
	ToolTimeoutSecs int     `toml:"tool_timeout_secs"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
}

// DatabaseConfig contains the optional Postgres session store settings.
// When URL is empty, sessions are kept in memory.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8080/callback",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxSteps:        8,
			PreviewLimit:    5,
			PageLimit:       100,
			ToolTimeoutSecs: 30,
			RateLimitPerSec: 5.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file at path,
// and environment variable overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No config file is fine; env vars may carry everything.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// ToolTimeout returns the per-tool-call deadline as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Agent.ToolTimeoutSecs) * time.Second
}

// Validate checks that required credentials are present.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return ErrMissingSpotifyCredentials
	}
	if c.OpenAI.APIKey == "" {
		return ErrMissingOpenAIKey
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "TUNESMITH_ADDR")
	setString(&c.Spotify.ClientID, "SPOTIFY_ID")
	setString(&c.Spotify.ClientSecret, "SPOTIFY_SECRET")
	setString(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Logging.Level, "TUNESMITH_LOG_LEVEL")
	setInt(&c.Agent.MaxSteps, "TUNESMITH_MAX_STEPS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}
