package extension

import "time"

// Config holds the Settle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settle" or "settle" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for settle routes (default: "/settle").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// AccessBaseURL is the public base URL embedded in invoice access
	// links sent to payers.
	AccessBaseURL string `json:"access_base_url" mapstructure:"access_base_url" yaml:"access_base_url"`

	// TokenTTL is the validity window for newly issued invoice access
	// tokens (default: 720h).
	TokenTTL time.Duration `json:"token_ttl" mapstructure:"token_ttl" yaml:"token_ttl"`

	// SyncInterval enables the background ledger sync worker when set to
	// a positive duration. Zero leaves periodic sync disabled.
	SyncInterval time.Duration `json:"sync_interval" mapstructure:"sync_interval" yaml:"sync_interval"`

	// RatePolicy controls whether settlement requires a locked exchange
	// rate. Accepted values: "best_effort" (default) and "required".
	RatePolicy string `json:"rate_policy" mapstructure:"rate_policy" yaml:"rate_policy"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:   30 * 24 * time.Hour,
		RatePolicy: "best_effort",
	}
}
