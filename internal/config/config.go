package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Notification providers.
const (
	ProviderLog      = "log"
	ProviderTelegram = "telegram"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: HABIT_ALARM_NOTIFY__PROVIDER sets notify.provider.
const EnvPrefix = "HABIT_ALARM_"

type Config struct {
	DBPath     string           `koanf:"db_path"`
	UserID     string           `koanf:"user_id"`
	Timezone   string           `koanf:"timezone"`
	Log        LogConfig        `koanf:"log"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Notify     NotifyConfig     `koanf:"notify"`
	Graph      GraphConfig      `koanf:"graph"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type DispatcherConfig struct {
	Enabled  bool `koanf:"enabled"`
	Interval int  `koanf:"interval"` // seconds
	Retries  int  `koanf:"retries"`
}

type NotifyConfig struct {
	Provider string         `koanf:"provider"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
	BaseURL  string `koanf:"base_url"`
}

type GraphConfig struct {
	Weeks int `koanf:"weeks"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// The bot variables shared with other Telegram tooling.
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && k.String("notify.telegram.bot_token") == "" {
		k.Set("notify.telegram.bot_token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" && k.String("notify.telegram.chat_id") == "" {
		k.Set("notify.telegram.chat_id", chatID)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.DBPath = expandPath(cfg.DBPath)

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Dispatcher.Interval <= 0 {
		return fmt.Errorf("dispatcher.interval must be positive")
	}
	if c.Dispatcher.Retries < 0 {
		return fmt.Errorf("dispatcher.retries must not be negative")
	}
	if c.Graph.Weeks <= 0 {
		return fmt.Errorf("graph.weeks must be positive")
	}

	switch c.Notify.Provider {
	case ProviderLog:
	case ProviderTelegram:
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("telegram bot token and chat id are required (set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID or add to config file)")
		}
	default:
		return fmt.Errorf("unknown notify provider: %s (supported: %s, %s)",
			c.Notify.Provider, ProviderLog, ProviderTelegram)
	}

	return nil
}

// Location resolves the configured timezone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DispatchInterval returns the dispatcher tick period.
func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.Dispatcher.Interval) * time.Second
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
