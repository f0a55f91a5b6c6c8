package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/halvard/jera/internal/recurrence"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Recurrence RecurrenceConfig  `yaml:"recurrence"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Recurrence.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
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

// RecurrenceConfig holds the recurrence engine settings.
type RecurrenceConfig struct {
	Enabled                  bool     `yaml:"enabled"`
	TerminalStatuses         []string `yaml:"terminal_statuses"`
	DefaultStatus            string   `yaml:"default_status"`
	SuppressionWindowMinutes int      `yaml:"suppression_window_minutes"`
	HealingDelaySeconds      int      `yaml:"healing_delay_seconds"`
	SettleDelayMillis        int      `yaml:"settle_delay_ms"`
}

// Validate validates the recurrence configuration.
func (c *RecurrenceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TerminalStatuses, validation.Required),
		validation.Field(&c.DefaultStatus, validation.Required),
		validation.Field(&c.SuppressionWindowMinutes, validation.Required, validation.Min(1), validation.Max(30)),
		validation.Field(&c.HealingDelaySeconds, validation.Min(0), validation.Max(300)),
		validation.Field(&c.SettleDelayMillis, validation.Min(0), validation.Max(10000)),
	)
}

// Settings converts the config into the engine's immutable settings struct.
func (c *RecurrenceConfig) Settings() recurrence.Settings {
	return recurrence.Settings{
		Enabled:          c.Enabled,
		TerminalStatuses: c.TerminalStatuses,
		DefaultStatus:    c.DefaultStatus,
	}
}

// SuppressionWindow returns the prompt suppression window as a duration.
func (c *RecurrenceConfig) SuppressionWindow() time.Duration {
	return time.Duration(c.SuppressionWindowMinutes) * time.Minute
}

// HealingDelay returns the pause between startup sync and the healing scan.
func (c *RecurrenceConfig) HealingDelay() time.Duration {
	return time.Duration(c.HealingDelaySeconds) * time.Second
}

// SettleDelay returns the metadata re-index settle pause.
func (c *RecurrenceConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMillis) * time.Millisecond
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./jera.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Recurrence: RecurrenceConfig{
			Enabled:                  true,
			TerminalStatuses:         []string{"complete", "wont-do"},
			DefaultStatus:            "open",
			SuppressionWindowMinutes: 5,
			HealingDelaySeconds:      3,
			SettleDelayMillis:        250,
		},
	}
}
