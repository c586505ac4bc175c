// Package config loads server and CLI settings from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

const (
	StoreFirestore = services.BackendFirestore
	StoreMemory    = services.BackendMemory
)

type Config struct {
	Port         string `mapstructure:"port"`
	StoreBackend string `mapstructure:"store_backend"`
	ProjectID    string `mapstructure:"google_cloud_project"`

	// Sign-in
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleCallbackURL  string `mapstructure:"google_callback_url"`

	// Calendar access
	CalendarClientID      string `mapstructure:"google_calendar_client_id"`
	CalendarClientSecret  string `mapstructure:"google_calendar_client_secret"`
	CalendarRedirectURI   string `mapstructure:"google_calendar_redirect_uri"`
	CalendarWebhookURL    string `mapstructure:"calendar_webhook_url"`
	CalendarRenewSchedule string `mapstructure:"calendar_renew_schedule"`

	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionSecure   bool          `mapstructure:"session_secure"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	TriggersEnabled bool          `mapstructure:"triggers_enabled"`

	LineChannelToken  string `mapstructure:"line_channel_token"`
	LineNotifyTo      string `mapstructure:"line_notify_to"`
	LineChannelSecret string `mapstructure:"line_channel_secret"`

	LogLevel string `mapstructure:"log_level"`
}

var defaults = map[string]any{
	"port":                          "8080",
	"store_backend":                 StoreFirestore,
	"google_cloud_project":          "",
	"google_client_id":              "",
	"google_client_secret":          "",
	"google_callback_url":           "http://localhost:8080/auth/google/callback",
	"google_calendar_client_id":     "",
	"google_calendar_client_secret": "",
	"google_calendar_redirect_uri":  "http://localhost:8080/api/auth/calendar/callback",
	"calendar_webhook_url":          "",
	"calendar_renew_schedule":       "@every 6h",
	"jwt_secret":                    "",
	"session_secure":                false,
	"session_ttl":                   "24h",
	"triggers_enabled":              true,
	"line_channel_token":            "",
	"line_notify_to":                "",
	"line_channel_secret":           "",
	"log_level":                     "info",
}

// Load reads .env (if present) into the process environment and then
// builds the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment. When CONFIG_FILE
// names a YAML file its values sit between the defaults and the
// environment.
func FromEnv() (*Config, error) {
	v := viper.New()
	for key, def := range defaults {
		v.SetDefault(key, def)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or malformed setting the server needs.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreBackend {
	case StoreFirestore:
		if c.ProjectID == "" {
			errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT is required for the firestore backend"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.CalendarWebhookURL != "" {
		if _, err := cron.ParseStandard(c.CalendarRenewSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid CALENDAR_RENEW_SCHEDULE: %w", err))
		}
	}
	if c.LineChannelToken == "" && (c.LineNotifyTo != "" || c.LineChannelSecret != "") {
		errs = append(errs, errors.New("LINE_CHANNEL_TOKEN is required when LINE_NOTIFY_TO or LINE_CHANNEL_SECRET is set"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStore checks only what the operator CLI needs.
func (c *Config) ValidateStore() error {
	if c.StoreBackend == StoreFirestore && c.ProjectID == "" {
		return errors.New("GOOGLE_CLOUD_PROJECT is required for the firestore backend")
	}
	return nil
}

func (c *Config) NotificationsEnabled() bool {
	return c.LineChannelToken != "" && c.LineNotifyTo != ""
}

// LineBotEnabled reports whether the LINE bot webhook should be served.
func (c *Config) LineBotEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// OpenStore opens the configured store backend.
func (c *Config) OpenStore() (services.Store, error) {
	return services.OpenStore(c.StoreBackend, c.ProjectID)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// NewLogger returns a JSON logger writing to stdout at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := c.SlogLevel()
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
