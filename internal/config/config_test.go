package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	content := `
bot:
  enabled: true

telegram:
  bot_token: "test_token"
  owner_id: 111
  target_id: 222
  max_retries: 5
  retry_delay_base: 2s

monitor:
  channels: [-1001234567890, -1009876543210]
  groups: [-100555]
  enable_user_monitoring: true
  heartbeat_interval: 30s

detector:
  enable_raydium: false

dedup:
  window: 1h
  max_entries: 5000

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeTemp(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "test_token" {
		t.Errorf("Unexpected bot token: %s", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.OwnerID != 111 || cfg.Telegram.TargetID != 222 {
		t.Errorf("Unexpected recipients: owner=%d target=%d", cfg.Telegram.OwnerID, cfg.Telegram.TargetID)
	}
	if cfg.Telegram.RetryDelayBase != 2*time.Second {
		t.Errorf("Unexpected retry delay: %v", cfg.Telegram.RetryDelayBase)
	}
	if len(cfg.Monitor.Channels) != 2 || cfg.Monitor.Channels[0] != -1001234567890 {
		t.Errorf("Unexpected channels: %v", cfg.Monitor.Channels)
	}
	if cfg.Monitor.HeartbeatInterval != 30*time.Second {
		t.Errorf("Unexpected heartbeat interval: %v", cfg.Monitor.HeartbeatInterval)
	}
	if cfg.Dedup.Window != time.Hour || cfg.Dedup.MaxEntries != 5000 {
		t.Errorf("Unexpected dedup config: %+v", cfg.Dedup)
	}

	toggles := cfg.Toggles()
	if !toggles.BotEnabled || !toggles.Users || toggles.Raydium {
		t.Errorf("Unexpected toggles: %+v", toggles)
	}
	// Untouched switches keep their defaults.
	if !toggles.PumpFun || !toggles.Native || !toggles.Channels {
		t.Errorf("Defaults lost: %+v", toggles)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env_token")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("TO_USER_ID", "43")
	t.Setenv("MONITOR_CHANNELS", "-1001,-1002")
	t.Setenv("ENABLE_MOONSHOT", "false")
	t.Setenv("BOT_ENABLED", "false")
	t.Setenv("CA_MONITOR_LOGGING_LEVEL", "warn")

	cfg, err := Load(writeTemp(t, "config.yaml", "telegram:\n  bot_token: file_token\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "env_token" {
		t.Errorf("environment should override file, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.OwnerID != 42 || cfg.Telegram.TargetID != 43 {
		t.Errorf("Unexpected recipients: owner=%d target=%d", cfg.Telegram.OwnerID, cfg.Telegram.TargetID)
	}
	if len(cfg.Monitor.Channels) != 2 || cfg.Monitor.Channels[1] != -1002 {
		t.Errorf("Unexpected channels: %v", cfg.Monitor.Channels)
	}
	if cfg.Detector.EnableMoonshot {
		t.Error("ENABLE_MOONSHOT=false was ignored")
	}
	if cfg.Bot.Enabled {
		t.Error("BOT_ENABLED=false was ignored")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("prefixed override ignored, level=%s", cfg.Logging.Level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	keys := []string{"BOT_TOKEN", "OWNER_ID", "MONITOR_GROUPS", "ENABLE_NATIVE"}
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			t.Skipf("%s already set in environment", k)
		}
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	path := writeTemp(t, ".env", "BOT_TOKEN=dotenv_token\nOWNER_ID=7\nMONITOR_GROUPS=-100777\nENABLE_NATIVE=false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "dotenv_token" || cfg.Telegram.OwnerID != 7 {
		t.Errorf("Unexpected telegram config: %+v", cfg.Telegram)
	}
	if len(cfg.Monitor.Groups) != 1 || cfg.Monitor.Groups[0] != -100777 {
		t.Errorf("Unexpected groups: %v", cfg.Monitor.Groups)
	}
	if cfg.Detector.EnableNative {
		t.Error("ENABLE_NATIVE=false was ignored")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Bot: BotConfig{Enabled: true},
		Telegram: TelegramConfig{
			BotToken:   "token",
			OwnerID:    1,
			MaxRetries: 3,
		},
		Monitor: MonitorConfig{HeartbeatInterval: time.Minute},
		Storage: StorageConfig{PersistenceInterval: time.Minute},
		Status:  StatusConfig{ListenAddr: "127.0.0.1:8080"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"valid", func(c *Config) {}, "", false},
		{"target only", func(c *Config) { c.Telegram.OwnerID, c.Telegram.TargetID = 0, 5 }, "", false},
		{"missing bot token", func(c *Config) { c.Telegram.BotToken = "" }, "telegram.bot_token", true},
		{"no recipients", func(c *Config) { c.Telegram.OwnerID = 0 }, "telegram.owner_id/telegram.target_id", true},
		{"zero retries", func(c *Config) { c.Telegram.MaxRetries = 0 }, "telegram.max_retries", true},
		{"short heartbeat", func(c *Config) { c.Monitor.HeartbeatInterval = time.Millisecond }, "monitor.heartbeat_interval", true},
		{"negative dedup window", func(c *Config) { c.Dedup.Window = -time.Second }, "dedup.window", true},
		{"negative dedup entries", func(c *Config) { c.Dedup.MaxEntries = -1 }, "dedup.max_entries", true},
		{"negative max sources", func(c *Config) { c.Storage.MaxSources = -1 }, "storage.max_sources", true},
		{"short persistence interval", func(c *Config) { c.Storage.PersistenceInterval = 0 }, "storage.persistence_interval", true},
		{"status without address", func(c *Config) { c.Status = StatusConfig{Enabled: true} }, "status.listen_addr", true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level", true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var cfgErr *models.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *models.ConfigurationError, got %T", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, expected %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestAllowList(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.Channels = []int64{-1001}
	cfg.Monitor.Users = []int64{99}

	allow := cfg.AllowList()
	if got := allow[models.SourceChannel]; len(got) != 1 || got[0] != -1001 {
		t.Errorf("Unexpected channels: %v", got)
	}
	if got := allow[models.SourceGroup]; len(got) != 0 {
		t.Errorf("Unexpected groups: %v", got)
	}
	if got := allow[models.SourceUser]; len(got) != 1 || got[0] != 99 {
		t.Errorf("Unexpected users: %v", got)
	}
}

func TestWatchRejectsDotEnv(t *testing.T) {
	if err := Watch("", func(*Config) {}, nil); err == nil {
		t.Error("expected error for empty path")
	}
	if err := Watch("prod.env", func(*Config) {}, nil); err == nil {
		t.Error("expected error for .env path")
	}
}

func TestWatchReload(t *testing.T) {
	path := writeTemp(t, "config.yaml", "telegram:\n  bot_token: a\n  owner_id: 1\ndetector:\n  enable_pumpfun: true\n")

	reloaded := make(chan *Config, 4)
	if err := Watch(path, func(c *Config) { reloaded <- c }, nil); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("telegram:\n  bot_token: a\n  owner_id: 1\ndetector:\n  enable_pumpfun: false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if !cfg.Detector.EnablePumpFun {
				return
			}
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}
