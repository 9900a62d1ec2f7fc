package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Detector DetectorConfig `mapstructure:"detector"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BotConfig holds the global on/off switch
type BotConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram transport and recipient configuration
type TelegramConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	OwnerID         int64         `mapstructure:"owner_id"`
	TargetID        int64         `mapstructure:"target_id"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	PollTimeout     int           `mapstructure:"poll_timeout"` // seconds
	NotifyLifecycle bool          `mapstructure:"notify_lifecycle"`
	Debug           bool          `mapstructure:"debug"`
}

// MonitorConfig holds the monitored sources and per-kind switches
type MonitorConfig struct {
	Channels          []int64       `mapstructure:"channels"`
	Groups            []int64       `mapstructure:"groups"`
	Users             []int64       `mapstructure:"users"`
	EnableChannels    bool          `mapstructure:"enable_channel_monitoring"`
	EnableGroups      bool          `mapstructure:"enable_group_monitoring"`
	EnableUsers       bool          `mapstructure:"enable_user_monitoring"`
	GroupsPinnedOnly  bool          `mapstructure:"groups_pinned_only"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// DetectorConfig holds per-platform reporting switches
type DetectorConfig struct {
	EnablePumpFun  bool `mapstructure:"enable_pumpfun"`
	EnableMoonshot bool `mapstructure:"enable_moonshot"`
	EnableRaydium  bool `mapstructure:"enable_raydium"`
	EnableBirdeye  bool `mapstructure:"enable_birdeye"`
	EnableNative   bool `mapstructure:"enable_native"`
}

// DedupConfig holds the notification dedup window. Zero values mean
// "once per process lifetime" and "unbounded".
type DedupConfig struct {
	Window     time.Duration `mapstructure:"window"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// StorageConfig holds the source directory location
type StorageConfig struct {
	SourcesPath         string        `mapstructure:"sources_path"`
	MaxSources          int           `mapstructure:"max_sources"`
	PersistenceInterval time.Duration `mapstructure:"persistence_interval"`
}

// StatusConfig holds the HTTP status endpoint configuration
type StatusConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	AccessLog  string `mapstructure:"access_log"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// envBindings maps config keys to the environment variable names the bot has
// always been deployed with.
var envBindings = map[string]string{
	"bot.enabled":                       "BOT_ENABLED",
	"telegram.bot_token":                "BOT_TOKEN",
	"telegram.owner_id":                 "OWNER_ID",
	"telegram.target_id":                "TO_USER_ID",
	"monitor.channels":                  "MONITOR_CHANNELS",
	"monitor.groups":                    "MONITOR_GROUPS",
	"monitor.users":                     "MONITOR_USERS",
	"monitor.enable_channel_monitoring": "ENABLE_CHANNEL_MONITORING",
	"monitor.enable_group_monitoring":   "ENABLE_GROUP_MONITORING",
	"monitor.enable_user_monitoring":    "ENABLE_USER_MONITORING",
	"detector.enable_pumpfun":           "ENABLE_PUMPFUN",
	"detector.enable_moonshot":          "ENABLE_MOONSHOT",
	"detector.enable_raydium":           "ENABLE_RAYDIUM",
	"detector.enable_birdeye":           "ENABLE_BIRDEYE",
	"detector.enable_native":            "ENABLE_NATIVE",
}

// Load reads configuration from file and environment variables.
// A path ending in .env is loaded into the environment instead of parsed as a
// config file; an empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch reloads the config file whenever it changes on disk and hands every
// valid new configuration to onChange. Invalid edits are reported to onError
// and otherwise ignored. Only yaml/json/toml files can be watched.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" || isDotEnv(path) {
		return fmt.Errorf("config %q cannot be watched", path)
	}

	v, err := newViper(path)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CA_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	switch {
	case path == "":
	case isDotEnv(path):
		if err := gotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func isDotEnv(path string) bool {
	return filepath.Ext(path) == ".env" || filepath.Base(path) == ".env"
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.enabled", true)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.owner_id", 0)
	v.SetDefault("telegram.target_id", 0)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.notify_lifecycle", true)
	v.SetDefault("telegram.debug", false)

	// Monitor defaults
	v.SetDefault("monitor.channels", []int64{})
	v.SetDefault("monitor.groups", []int64{})
	v.SetDefault("monitor.users", []int64{})
	v.SetDefault("monitor.enable_channel_monitoring", true)
	v.SetDefault("monitor.enable_group_monitoring", true)
	v.SetDefault("monitor.enable_user_monitoring", false)
	v.SetDefault("monitor.groups_pinned_only", false)
	v.SetDefault("monitor.heartbeat_interval", "60s")

	// Detector defaults
	v.SetDefault("detector.enable_pumpfun", true)
	v.SetDefault("detector.enable_moonshot", true)
	v.SetDefault("detector.enable_raydium", true)
	v.SetDefault("detector.enable_birdeye", true)
	v.SetDefault("detector.enable_native", true)

	// Dedup defaults
	v.SetDefault("dedup.window", "0s")
	v.SetDefault("dedup.max_entries", 0)

	// Storage defaults
	v.SetDefault("storage.sources_path", "./data/sources.json")
	v.SetDefault("storage.max_sources", 1000)
	v.SetDefault("storage.persistence_interval", "5m")

	// Status defaults
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen_addr", "127.0.0.1:8080")
	v.SetDefault("status.access_log", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
}

// Validate checks that all configuration values are valid. Failures are
// *models.ConfigurationError and are fatal at startup.
func (c *Config) Validate() error {
	// Validate Telegram config
	if c.Telegram.BotToken == "" {
		return &models.ConfigurationError{Field: "telegram.bot_token", Reason: "is required"}
	}
	if c.Telegram.OwnerID == 0 && c.Telegram.TargetID == 0 {
		return &models.ConfigurationError{Field: "telegram.owner_id/telegram.target_id", Reason: "at least one recipient is required"}
	}
	if c.Telegram.MaxRetries < 1 {
		return &models.ConfigurationError{Field: "telegram.max_retries", Reason: "must be at least 1"}
	}
	if c.Telegram.PollTimeout < 0 {
		return &models.ConfigurationError{Field: "telegram.poll_timeout", Reason: "must not be negative"}
	}

	// Validate Monitor config
	if c.Monitor.HeartbeatInterval < time.Second {
		return &models.ConfigurationError{Field: "monitor.heartbeat_interval", Reason: "must be at least 1 second"}
	}

	// Validate Dedup config
	if c.Dedup.Window < 0 {
		return &models.ConfigurationError{Field: "dedup.window", Reason: "must not be negative"}
	}
	if c.Dedup.MaxEntries < 0 {
		return &models.ConfigurationError{Field: "dedup.max_entries", Reason: "must not be negative"}
	}

	// Validate Storage config
	if c.Storage.MaxSources < 0 {
		return &models.ConfigurationError{Field: "storage.max_sources", Reason: "must not be negative"}
	}
	if c.Storage.PersistenceInterval < time.Second {
		return &models.ConfigurationError{Field: "storage.persistence_interval", Reason: "must be at least 1 second"}
	}

	// Validate Status config
	if c.Status.Enabled && c.Status.ListenAddr == "" {
		return &models.ConfigurationError{Field: "status.listen_addr", Reason: "is required when status is enabled"}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ConfigurationError{Field: "logging.level", Reason: "must be one of: debug, info, warn, error"}
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return &models.ConfigurationError{Field: "logging.format", Reason: "must be one of: json, text"}
	}

	return nil
}

// Toggles returns the detection switches as one immutable value
func (c *Config) Toggles() models.Toggles {
	return models.Toggles{
		BotEnabled: c.Bot.Enabled,
		Channels:   c.Monitor.EnableChannels,
		Groups:     c.Monitor.EnableGroups,
		Users:      c.Monitor.EnableUsers,
		PumpFun:    c.Detector.EnablePumpFun,
		Moonshot:   c.Detector.EnableMoonshot,
		Raydium:    c.Detector.EnableRaydium,
		Birdeye:    c.Detector.EnableBirdeye,
		Native:     c.Detector.EnableNative,
	}
}

// AllowList returns the monitored source IDs keyed by source kind
func (c *Config) AllowList() map[models.SourceKind][]int64 {
	return map[models.SourceKind][]int64{
		models.SourceChannel: c.Monitor.Channels,
		models.SourceGroup:   c.Monitor.Groups,
		models.SourceUser:    c.Monitor.Users,
	}
}
