// Package extension provides the Forge extension adapter for Settle.
//
// It implements the forge.Extension interface to integrate Settle
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settle" or "settle" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "On-chain settlement and reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Settle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *settle.Engine
	store      store.Store
	settleOpts []settle.Option
}

// New creates a new Settle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying settlement engine.
// This is nil until Register is called.
func (e *Extension) Engine() *settle.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the settlement engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildSettleOpts()

	eng := settle.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*settle.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settle: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settle: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildSettleOpts constructs settle.Option values from the resolved config.
func (e *Extension) buildSettleOpts() []settle.Option {
	opts := make([]settle.Option, 0, len(e.settleOpts)+4)

	if e.config.TokenTTL > 0 {
		opts = append(opts, settle.WithTokenTTL(e.config.TokenTTL))
	}
	if e.config.SyncInterval > 0 {
		opts = append(opts, settle.WithSyncInterval(e.config.SyncInterval))
	}
	if e.config.AccessBaseURL != "" {
		opts = append(opts, settle.WithAccessBaseURL(e.config.AccessBaseURL))
	}
	if e.config.RatePolicy == "required" {
		opts = append(opts, settle.WithRatePolicy(settle.RateRequired))
	}

	// Append any pass-through settle options.
	opts = append(opts, e.settleOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settle: configuration is required but not found in config files; " +
				"ensure 'extensions.settle' or 'settle' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settle: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("token_ttl", e.config.TokenTTL),
		forge.F("sync_interval", e.config.SyncInterval),
		forge.F("rate_policy", e.config.RatePolicy),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.settle" first (namespaced pattern).
	if cm.IsSet("extensions.settle") {
		if err := cm.Bind("extensions.settle", &cfg); err == nil {
			e.Logger().Debug("settle: loaded config from file",
				forge.F("key", "extensions.settle"),
			)
			return cfg, true
		}
		e.Logger().Warn("settle: failed to bind extensions.settle config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "settle" key.
	if cm.IsSet("settle") {
		if err := cm.Bind("settle", &cfg); err == nil {
			e.Logger().Debug("settle: loaded config from file",
				forge.F("key", "settle"),
			)
			return cfg, true
		}
		e.Logger().Warn("settle: failed to bind settle config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.RatePolicy == "" {
		cfg.RatePolicy = defaults.RatePolicy
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.AccessBaseURL == "" && programmaticConfig.AccessBaseURL != "" {
		yamlConfig.AccessBaseURL = programmaticConfig.AccessBaseURL
	}
	if yamlConfig.RatePolicy == "" && programmaticConfig.RatePolicy != "" {
		yamlConfig.RatePolicy = programmaticConfig.RatePolicy
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.TokenTTL == 0 && programmaticConfig.TokenTTL != 0 {
		yamlConfig.TokenTTL = programmaticConfig.TokenTTL
	}
	if yamlConfig.SyncInterval == 0 && programmaticConfig.SyncInterval != 0 {
		yamlConfig.SyncInterval = programmaticConfig.SyncInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
