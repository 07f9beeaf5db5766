package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL    string `yaml:"backend_url"`
	FeedURL       string `yaml:"feed_url"`
	IdentityToken string `yaml:"identity_token"`

	// BackendMode selects the remote backend ("live") or the in-process
	// stub backend ("stub").
	BackendMode string `yaml:"backend_mode"`

	// RequestTimeout bounds each dispatcher call. Zero means no timeout:
	// a hung call leaves the triggering control pending until the user
	// re-triggers it.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LogLevel          string        `yaml:"log_level"`

	Scanner  ScannerConfig  `yaml:"scanner"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ScannerConfig struct {
	// AlertLimit caps the alerts feed query; the feed never paginates
	// past it.
	AlertLimit int `yaml:"alert_limit"`
}

func Default() Config {
	return Config{
		BackendURL:        "http://127.0.0.1:8000",
		FeedURL:           "ws://127.0.0.1:8000",
		BackendMode:       "stub",
		HeartbeatInterval: 30 * time.Second,
		LogLevel:          "info",
		Scanner: ScannerConfig{
			AlertLimit: 10,
		},
		API: APIConfig{
			Enabled: true,
			Addr:    ":8090",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PATTERNIQ_BACKEND_URL")); v != "" {
		c.BackendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PATTERNIQ_FEED_URL")); v != "" {
		c.FeedURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PATTERNIQ_ID_TOKEN")); v != "" {
		c.IdentityToken = v
	}
	if v := strings.TrimSpace(os.Getenv("PATTERNIQ_BACKEND_MODE")); v != "" {
		c.BackendMode = strings.ToLower(v)
	}
	if v := os.Getenv("PATTERNIQ_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
		c.Telegram.Enabled = true
	}
	if v := os.Getenv("PATTERNIQ_TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := strings.TrimSpace(os.Getenv("PATTERNIQ_API_ADDR")); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("PATTERNIQ_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
}
