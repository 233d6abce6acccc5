package extension

import (
	"time"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
)

// Option configures the Settle Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settlement engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithSettleOption passes a settle.Option through to the underlying engine.
func WithSettleOption(opt settle.Option) Option {
	return func(e *Extension) {
		e.settleOpts = append(e.settleOpts, opt)
	}
}

// WithPlugin registers a settle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.settleOpts = append(e.settleOpts, settle.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for settle routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithAccessBaseURL sets the public base URL embedded in invoice access links.
func WithAccessBaseURL(url string) Option {
	return func(e *Extension) { e.config.AccessBaseURL = url }
}

// WithTokenTTL sets the validity window for newly issued access tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.TokenTTL = d }
}

// WithSyncInterval enables the background ledger sync worker.
func WithSyncInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SyncInterval = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
