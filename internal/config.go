package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notesjson/internal/exchange"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Exchange ExchangeConfig    `yaml:"exchange"`
	Inbox    InboxConfig       `yaml:"inbox"`
	Events   EventsConfig      `yaml:"events"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Exchange.Validate(); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	if err := c.Inbox.Validate(); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ExchangeConfig holds the directory export files are written to and
// file imports are read from.
type ExchangeConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the exchange configuration.
func (c *ExchangeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// InboxConfig controls the watched import directory.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern"`
	Mode    string `yaml:"mode"`
}

// Validate validates the inbox configuration. Path is only required when
// the inbox is enabled.
func (c *InboxConfig) Validate() error {
	if c.Pattern == "" {
		c.Pattern = "*.json"
	}
	if c.Mode == "" {
		c.Mode = exchange.ModeMerge.String()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Pattern, validation.By(func(any) error {
			if !doublestar.ValidatePattern(c.Pattern) {
				return fmt.Errorf("invalid glob %q", c.Pattern)
			}
			return nil
		})),
		validation.Field(&c.Mode, validation.In(exchange.ModeMerge.String(), exchange.ModeReplace.String())),
	)
}

// ImportMode returns the parsed inbox import mode.
func (c *InboxConfig) ImportMode() (exchange.Mode, error) {
	return exchange.ParseMode(c.Mode)
}

// EventsConfig tunes the /api/events stream.
type EventsConfig struct {
	// Throttle is the minimum gap between notes.changed events.
	Throttle time.Duration `yaml:"throttle"`
	// Heartbeat is the keep-alive interval; 0 disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`
	// History is how many events are kept for Last-Event-ID replay.
	History int `yaml:"history"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
		validation.Field(&c.History, validation.Min(0), validation.Max(10000)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./notes.db",
		},
		Exchange: ExchangeConfig{
			Dir: "./exports",
		},
		Inbox: InboxConfig{
			Path:    "./inbox",
			Pattern: "*.json",
			Mode:    exchange.ModeMerge.String(),
		},
		Events: EventsConfig{
			Throttle:  2 * time.Second,
			Heartbeat: 15 * time.Second,
			History:   64,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
