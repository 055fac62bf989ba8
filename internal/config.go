package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/inject"
	"github.com/starford/playtrace/internal/notes"
	"github.com/starford/playtrace/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Console ConsoleConfig     `yaml:"console"`
	Notes   NotesConfig       `yaml:"notes"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Inject  InjectConfig      `yaml:"inject"`
	Relay   RelayConfig       `yaml:"relay"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Console.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Inject.Validate(); err != nil {
		return err
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

// StoreConfig selects the persistent store backend.
//
// Driver "fs" keeps one JSON file per key under Path; driver "sqlite"
// keeps every key in the SQLite database at Path.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverFS, store.DriverSQLite)),
		validation.Field(&c.Path, validation.Required),
	)
}

// ConsoleConfig sizes the log buffer and its display window.
type ConsoleConfig struct {
	Capacity int `yaml:"capacity"`
	Window   int `yaml:"window"`
}

// Validate validates the console configuration. The display window must
// be smaller than the buffer.
func (c *ConsoleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.Window, validation.Required, validation.Min(1), validation.Max(c.Capacity-1)),
	)
}

// NotesConfig holds note registry settings.
type NotesConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// CatalogConfig points at the launcher's game catalog.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// InjectConfig holds agent injection defaults. Enabled applies until the
// flag is toggled once; the persisted flag wins afterwards.
type InjectConfig struct {
	Enabled       bool `yaml:"enabled"`
	AgentCapacity int  `yaml:"agent_capacity"`
}

// Validate validates the inject configuration.
func (c *InjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AgentCapacity, validation.Min(0)),
	)
}

// RelayConfig restricts which window origins the relay accepts. An empty
// list accepts every origin.
type RelayConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: store.DriverFS,
			Path:   "./data",
		},
		Console: ConsoleConfig{
			Capacity: console.DefaultCapacity,
			Window:   console.DefaultWindow,
		},
		Notes: NotesConfig{
			Debounce: notes.DefaultDebounce,
		},
		Catalog: CatalogConfig{
			Path:  "./config/games.yaml",
			Watch: true,
		},
		Inject: InjectConfig{
			AgentCapacity: inject.DefaultAgentCapacity,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
