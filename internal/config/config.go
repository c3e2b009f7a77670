package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ProxyConfig routes gateway traffic through an optional SOCKS5 proxy.
type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// URL renders the proxy as a socks5 URL for an http.Transport, or nil when
// the proxy is disabled.
func (p ProxyConfig) URL() *url.URL {
	if !p.Enabled || p.Addr == "" {
		return nil
	}
	u := &url.URL{Scheme: "socks5", Host: p.Addr}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// TelegramConfig holds the process-wide settings used to build session
// handles. GatewayURL points at the MTProto gateway sidecar; when empty the
// process runs against the in-memory fake (dry-run mode).
type TelegramConfig struct {
	GatewayURL string      `yaml:"gateway_url"`
	Proxy      ProxyConfig `yaml:"proxy"`
}

// ContentConfig configures the publish-message text generator. BaseURL is an
// OpenAI-compatible chat-completions endpoint; with no APIKey a static
// fallback generator is used.
type ContentConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// PublishConfig bounds the daily publish expansion.
type PublishConfig struct {
	TimesPerDay       int `yaml:"times_per_day"`
	SeparationMinutes int `yaml:"separation_minutes"`
}

type LimitsConfig struct {
	MaxChannelsPerAccount int `yaml:"max_channels_per_account"`
}

type Config struct {
	BindAddr string `yaml:"bind_addr"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`

	// OperationTimeoutSeconds bounds every remote call made under a session
	// lock, so a hung call cannot starve the session forever.
	OperationTimeoutSeconds int `yaml:"operation_timeout_seconds"`

	MediaRoot string `yaml:"media_root"`

	Telegram TelegramConfig `yaml:"telegram"`
	Content  ContentConfig  `yaml:"content"`
	Publish  PublishConfig  `yaml:"publish"`
	Limits   LimitsConfig   `yaml:"limits"`
}

func Default() Config {
	return Config{
		BindAddr:                ":8080",
		DBPath:                  "tennel.db",
		LogLevel:                "info",
		Timezone:                "UTC",
		OperationTimeoutSeconds: 120,
		MediaRoot:               "media",
		Content: ContentConfig{
			Model: "deepseek-chat",
		},
		Publish: PublishConfig{
			TimesPerDay:       10,
			SeparationMinutes: 30,
		},
		Limits: LimitsConfig{
			MaxChannelsPerAccount: 10,
		},
	}
}

// Load reads the YAML file at path (missing file means defaults only) and
// applies TENNEL_* environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Publish.TimesPerDay <= 0 {
		cfg.Publish.TimesPerDay = 10
	}
	if cfg.Publish.SeparationMinutes <= 0 {
		cfg.Publish.SeparationMinutes = 30
	}
	if cfg.OperationTimeoutSeconds <= 0 {
		cfg.OperationTimeoutSeconds = 120
	}
	return cfg, nil
}

func (c Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setStr("TENNEL_BIND_ADDR", &cfg.BindAddr)
	setStr("TENNEL_DB_PATH", &cfg.DBPath)
	setStr("TENNEL_LOG_LEVEL", &cfg.LogLevel)
	setStr("TENNEL_TIMEZONE", &cfg.Timezone)
	setStr("TENNEL_MEDIA_ROOT", &cfg.MediaRoot)
	setStr("TENNEL_GATEWAY_URL", &cfg.Telegram.GatewayURL)
	setStr("TENNEL_PROXY_ADDR", &cfg.Telegram.Proxy.Addr)
	setBool("TENNEL_PROXY_ENABLED", &cfg.Telegram.Proxy.Enabled)
	setStr("TENNEL_CONTENT_BASE_URL", &cfg.Content.BaseURL)
	setStr("TENNEL_CONTENT_API_KEY", &cfg.Content.APIKey)
	setStr("TENNEL_CONTENT_MODEL", &cfg.Content.Model)
	setInt("TENNEL_TIMES_PER_DAY", &cfg.Publish.TimesPerDay)
	setInt("TENNEL_SEPARATION_MINUTES", &cfg.Publish.SeparationMinutes)
	setInt("TENNEL_MAX_CHANNELS_PER_ACCOUNT", &cfg.Limits.MaxChannelsPerAccount)
	setInt("TENNEL_OPERATION_TIMEOUT_SECONDS", &cfg.OperationTimeoutSeconds)
}
