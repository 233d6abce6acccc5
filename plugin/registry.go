package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onSettlementSubmitted []OnSettlementSubmitted
	onSettlementFailed    []OnSettlementFailed
	onPaymentRecorded     []OnPaymentRecorded
	onPaymentConflict     []OnPaymentConflict
	onTokenIssued         []OnTokenIssued
	onTokenConsumed       []OnTokenConsumed
	onRateLocked          []OnRateLocked
	onRateUnavailable     []OnRateUnavailable
	onSyncCompleted       []OnSyncCompleted
	onDriftRepaired       []OnDriftRepaired
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSettlementSubmitted); ok {
		r.onSettlementSubmitted = append(r.onSettlementSubmitted, v)
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnPaymentConflict); ok {
		r.onPaymentConflict = append(r.onPaymentConflict, v)
	}
	if v, ok := p.(OnTokenIssued); ok {
		r.onTokenIssued = append(r.onTokenIssued, v)
	}
	if v, ok := p.(OnTokenConsumed); ok {
		r.onTokenConsumed = append(r.onTokenConsumed, v)
	}
	if v, ok := p.(OnRateLocked); ok {
		r.onRateLocked = append(r.onRateLocked, v)
	}
	if v, ok := p.(OnRateUnavailable); ok {
		r.onRateUnavailable = append(r.onRateUnavailable, v)
	}
	if v, ok := p.(OnSyncCompleted); ok {
		r.onSyncCompleted = append(r.onSyncCompleted, v)
	}
	if v, ok := p.(OnDriftRepaired); ok {
		r.onDriftRepaired = append(r.onDriftRepaired, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnSettlementSubmitted)(nil)).Elem(), "OnSettlementSubmitted")
	checkInterface(reflect.TypeOf((*OnSettlementFailed)(nil)).Elem(), "OnSettlementFailed")
	checkInterface(reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem(), "OnPaymentRecorded")
	checkInterface(reflect.TypeOf((*OnPaymentConflict)(nil)).Elem(), "OnPaymentConflict")
	checkInterface(reflect.TypeOf((*OnTokenIssued)(nil)).Elem(), "OnTokenIssued")
	checkInterface(reflect.TypeOf((*OnTokenConsumed)(nil)).Elem(), "OnTokenConsumed")
	checkInterface(reflect.TypeOf((*OnRateLocked)(nil)).Elem(), "OnRateLocked")
	checkInterface(reflect.TypeOf((*OnRateUnavailable)(nil)).Elem(), "OnRateUnavailable")
	checkInterface(reflect.TypeOf((*OnSyncCompleted)(nil)).Elem(), "OnSyncCompleted")
	checkInterface(reflect.TypeOf((*OnDriftRepaired)(nil)).Elem(), "OnDriftRepaired")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementSubmitted emits a settlement broadcast event.
func (r *Registry) EmitSettlementSubmitted(ctx context.Context, inv interface{}, txHash, chainID string) {
	r.mu.RLock()
	plugins := r.onSettlementSubmitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementSubmitted(ctx, inv, txHash, chainID)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementSubmitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementFailed emits a settlement failure event.
func (r *Registry) EmitSettlementFailed(ctx context.Context, inv interface{}, failure error) {
	r.mu.RLock()
	plugins := r.onSettlementFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementFailed(ctx, inv, failure)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRecorded(ctx, inv)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentConflict emits a payment conflict event.
func (r *Registry) EmitPaymentConflict(ctx context.Context, inv interface{}, txHash string) {
	r.mu.RLock()
	plugins := r.onPaymentConflict
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentConflict(ctx, inv, txHash)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentConflict failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTokenIssued emits a token issued event.
func (r *Registry) EmitTokenIssued(ctx context.Context, token interface{}) {
	r.mu.RLock()
	plugins := r.onTokenIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTokenIssued(ctx, token)
		}); err != nil {
			r.logger.Warn("plugin OnTokenIssued failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTokenConsumed emits a token consumed event.
func (r *Registry) EmitTokenConsumed(ctx context.Context, token interface{}) {
	r.mu.RLock()
	plugins := r.onTokenConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTokenConsumed(ctx, token)
		}); err != nil {
			r.logger.Warn("plugin OnTokenConsumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRateLocked emits a rate locked event.
func (r *Registry) EmitRateLocked(ctx context.Context, snapshot interface{}) {
	r.mu.RLock()
	plugins := r.onRateLocked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRateLocked(ctx, snapshot)
		}); err != nil {
			r.logger.Warn("plugin OnRateLocked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRateUnavailable emits a rate resolution failure event.
func (r *Registry) EmitRateUnavailable(ctx context.Context, pair string, cause error) {
	r.mu.RLock()
	plugins := r.onRateUnavailable
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRateUnavailable(ctx, pair, cause)
		}); err != nil {
			r.logger.Warn("plugin OnRateUnavailable failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSyncCompleted emits a ledger sync completion event.
func (r *Registry) EmitSyncCompleted(ctx context.Context, report interface{}) {
	r.mu.RLock()
	plugins := r.onSyncCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSyncCompleted(ctx, report)
		}); err != nil {
			r.logger.Warn("plugin OnSyncCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDriftRepaired emits a drift repair event.
func (r *Registry) EmitDriftRepaired(ctx context.Context, documentID, field string) {
	r.mu.RLock()
	plugins := r.onDriftRepaired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDriftRepaired(ctx, documentID, field)
		}); err != nil {
			r.logger.Warn("plugin OnDriftRepaired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
