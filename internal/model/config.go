package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerConfig describes the backend the client talks to.
type ServerConfig struct {
	// BaseURL is the origin of the backend (e.g., https://market.example.com).
	// The WebSocket URL is derived from it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutSec bounds every REST call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"gte=1"`
}

// RealtimeConfig tunes the persistent connection.
type RealtimeConfig struct {
	ReconnectDelayMS     int `mapstructure:"reconnect_delay_ms" yaml:"reconnect_delay_ms" validate:"gte=0"`
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts" validate:"gte=1"`
	PingIntervalSec      int `mapstructure:"ping_interval_sec" yaml:"ping_interval_sec" validate:"gte=1"`
}

// FeedConfig tunes the aggregated feed and its polling fallback.
type FeedConfig struct {
	Limit           int `mapstructure:"limit" yaml:"limit" validate:"gte=1"`
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"gte=1"`
}

// PushConfig identifies this device for push registration. A terminal
// has no browser or OS prompt, so the permission and the platform
// credential (native token or web endpoint with keys) are configured.
type PushConfig struct {
	Platform   string `mapstructure:"platform" yaml:"platform" validate:"oneof=web ios android"`
	DeviceName string `mapstructure:"device_name" yaml:"device_name"`
	Permission string `mapstructure:"permission" yaml:"permission" validate:"omitempty,oneof=granted prompt denied"`

	Token    string `mapstructure:"token" yaml:"token,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	P256dh   string `mapstructure:"p256dh" yaml:"p256dh,omitempty"`
	Auth     string `mapstructure:"auth" yaml:"auth,omitempty"`
}

// StoreConfig locates the local SQLite cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Feed     FeedConfig     `mapstructure:"feed" yaml:"feed"`
	Push     PushConfig     `mapstructure:"push" yaml:"push"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (c RealtimeConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

// PingInterval returns how often an open connection is health checked.
func (c RealtimeConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

// PollInterval returns the fallback polling interval.
func (c FeedConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Timeout returns the per-request timeout.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ConfigDir returns ~/.config/notifycore, or the working directory if the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifycore")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifycore/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:    "http://localhost:5000",
			TimeoutSec: 30,
		},
		Realtime: RealtimeConfig{
			ReconnectDelayMS:     3000,
			MaxReconnectAttempts: 5,
			PingIntervalSec:      25,
		},
		Feed: FeedConfig{
			Limit:           30,
			PollIntervalSec: 60,
		},
		Push: PushConfig{
			Platform:   string(PlatformWeb),
			Permission: string(PermissionPrompt),
		},
		Store: StoreConfig{
			Path: filepath.Join(ConfigDir(), "cache.db"),
		},
	}
}

// setDefaults registers every default with v so missing keys resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	v.SetDefault("realtime.reconnect_delay_ms", d.Realtime.ReconnectDelayMS)
	v.SetDefault("realtime.max_reconnect_attempts", d.Realtime.MaxReconnectAttempts)
	v.SetDefault("realtime.ping_interval_sec", d.Realtime.PingIntervalSec)
	v.SetDefault("feed.limit", d.Feed.Limit)
	v.SetDefault("feed.poll_interval_sec", d.Feed.PollIntervalSec)
	v.SetDefault("push.platform", d.Push.Platform)
	v.SetDefault("push.device_name", d.Push.DeviceName)
	v.SetDefault("push.permission", d.Push.Permission)
	v.SetDefault("push.token", "")
	v.SetDefault("push.endpoint", "")
	v.SetDefault("push.p256dh", "")
	v.SetDefault("push.auth", "")
	v.SetDefault("store.path", d.Store.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden with NOTIFYCORE_* environment variables
// (e.g., NOTIFYCORE_SERVER_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("notifycore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("realtime", cfg.Realtime)
	v.Set("feed", cfg.Feed)
	v.Set("push", cfg.Push)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ValidationError reports the first struct field that failed validation.
type ValidationError struct {
	Field string
	Tag   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: failed on '%s' validation", e.Field, e.Tag)
}

var configValidator = validator.New()

// Validate checks the configuration against its struct tags.
func (c *AppConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Namespace(), Tag: fe.Tag()}
		}
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}
