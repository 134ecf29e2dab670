package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultgraph/internal/activation"
	"github.com/starford/vaultgraph/internal/metastore"
	"github.com/starford/vaultgraph/internal/suggest"
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
	Cache      CacheConfig       `yaml:"cache"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Activation ActivationConfig  `yaml:"activation"`
	Suggest    SuggestConfig     `yaml:"suggest"`
	Rebuild    RebuildConfig     `yaml:"rebuild"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.Cache, &c.SQLite, &c.Auth, &c.Activation, &c.Suggest, &c.Rebuild,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// CacheConfig holds the location of the persisted graph, weights, file
// snapshot and stale ledger. Dir is relative to the vault root.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
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

// ActivationConfig holds the default spreading activation parameters.
type ActivationConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MaxHops        int     `yaml:"max_hops"`
	MaxActiveNodes int     `yaml:"max_active_nodes"`
}

// Validate validates the activation configuration.
func (c *ActivationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxHops, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxActiveNodes, validation.Required, validation.Min(1)),
	)
}

// Params converts the configuration into activation parameters.
func (c *ActivationConfig) Params() activation.Params {
	return activation.Params{
		Threshold:      c.Threshold,
		MaxHops:        c.MaxHops,
		MaxActiveNodes: c.MaxActiveNodes,
	}
}

// SuggestConfig holds link suggestion defaults.
type SuggestConfig struct {
	MinScore       float64 `yaml:"min_score"`
	MaxSuggestions int     `yaml:"max_suggestions"`
}

// Validate validates the suggestion configuration.
func (c *SuggestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinScore, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxSuggestions, validation.Required, validation.Min(1)),
	)
}

// RebuildConfig controls stale tracking.
//
// StaleRatio is the share of stale nodes above which a full rebuild is
// required. With Auto set, the server rebuilds on its own once the ratio is
// crossed; Watch enables the file watcher that feeds the stale ledger.
type RebuildConfig struct {
	StaleRatio    float64       `yaml:"stale_ratio"`
	Auto          bool          `yaml:"auto"`
	Watch         bool          `yaml:"watch"`
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the rebuild configuration.
func (c *RebuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StaleRatio, validation.Required, validation.Min(0.0), validation.Max(1.0)),
	)
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
		Cache: CacheConfig{
			Dir: metastore.DefaultDir,
		},
		SQLite: SQLiteConfig{
			Path: "./vaultgraph.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Activation: ActivationConfig{
			Threshold:      activation.DefaultThreshold,
			MaxHops:        activation.DefaultMaxHops,
			MaxActiveNodes: activation.DefaultMaxActiveNodes,
		},
		Suggest: SuggestConfig{
			MinScore:       suggest.DefaultMinScore,
			MaxSuggestions: suggest.DefaultMaxSuggestions,
		},
		Rebuild: RebuildConfig{
			StaleRatio:    metastore.DefaultStaleRatio,
			Auto:          true,
			Watch:         true,
			EventThrottle: 2 * time.Second,
		},
	}
}
