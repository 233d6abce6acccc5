package settle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/fee"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// RatePolicy controls how payment recording treats exchange rate failures.
type RatePolicy int

const (
	// RateBestEffort records the payment with a nil snapshot when the rate
	// cannot be resolved; BackfillRates fills it in later.
	RateBestEffort RatePolicy = iota
	// RateRequired fails the payment when the rate cannot be resolved.
	RateRequired
)

// Engine is the settlement and reconciliation engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	feePolicy  fee.Policy
	rates      *rate.Locker
	ratePolicy RatePolicy
	chains     *chain.Registry
	executor   *settlement.Executor
	signer     chain.Signer
	authorizer Authorizer

	tokenTTL      time.Duration
	accessBaseURL string
	syncInterval  time.Duration

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		chains:   chain.NewRegistry(),
		tokenTTL: accesstoken.DefaultTTL,
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.executor = settlement.NewExecutor(e.chains, e.logger)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithFeePolicy sets the platform fee policy applied to settlements.
func WithFeePolicy(p fee.Policy) Option {
	return func(e *Engine) {
		e.feePolicy = p
	}
}

// WithRateLocker sets the exchange rate locker used to freeze valuations at
// payment time.
func WithRateLocker(l *rate.Locker) Option {
	return func(e *Engine) {
		e.rates = l
	}
}

// WithRatePolicy controls whether payments fail when no rate is available.
func WithRatePolicy(p RatePolicy) Option {
	return func(e *Engine) {
		e.ratePolicy = p
	}
}

// WithChainRegistry sets the registry of blockchain clients.
func WithChainRegistry(r *chain.Registry) Option {
	return func(e *Engine) {
		e.chains = r
	}
}

// WithSigner sets the default signer funding settlements when the caller
// does not provide one.
func WithSigner(s chain.Signer) Option {
	return func(e *Engine) {
		e.signer = s
	}
}

// WithTokenTTL sets the validity window for issued access tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.tokenTTL = ttl
	}
}

// WithAccessBaseURL sets the base URL payment links are built from.
func WithAccessBaseURL(u string) Option {
	return func(e *Engine) {
		e.accessBaseURL = u
	}
}

// WithSyncInterval enables the periodic ledger sync worker.
func WithSyncInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.syncInterval = interval
	}
}

// WithAuthorizer sets the authorizer consulted for invoice access.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) {
		e.authorizer = a
	}
}

// Start migrates the store, initializes plugins and begins background
// workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	if e.syncInterval > 0 {
		e.wg.Add(1)
		go e.syncWorker(ctx)
	}

	e.logger.Info("settle engine started",
		"fee_bps", e.feePolicy.BasisPoints,
		"token_ttl", e.tokenTTL,
		"sync_interval", e.syncInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// FeePolicy returns the configured platform fee policy.
func (e *Engine) FeePolicy() fee.Policy { return e.feePolicy }

// ──────────────────────────────────────────────────
// Invoice Management
// ──────────────────────────────────────────────────

// CreateInvoice creates a new invoice. The owner is derived from the
// issuer's organization membership: organization-owned when the issuer
// belongs to one, issuer-owned otherwise.
func (e *Engine) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if inv.ID.IsNil() {
		inv.ID = id.NewInvoiceID()
	}
	inv.Entity = types.NewEntity()
	if inv.Status == "" {
		inv.Status = invoice.StatusDraft
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = time.Now().UTC()
	}

	if inv.Owner.IsZero() && !inv.IssuerID.IsNil() {
		owner, err := e.resolveOwner(ctx, inv.IssuerID)
		if err != nil {
			return err
		}
		inv.Owner = owner
	}

	return e.store.CreateInvoice(ctx, inv)
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invID)
}

// ListInvoices lists invoices matching opts.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return e.store.ListInvoices(ctx, opts)
}

// UpdateInvoice persists invoice changes. Paid invoices are immutable: the
// store refuses the write atomically with ErrAlreadyPaid, so a payment
// committing mid-update can never be reverted.
func (e *Engine) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return e.store.UpdateInvoice(ctx, inv)
}

// ──────────────────────────────────────────────────
// Payable Management
// ──────────────────────────────────────────────────

// CreatePayable creates a new payable owned like invoices: by the issuer's
// organization when one exists.
func (e *Engine) CreatePayable(ctx context.Context, p *payable.Payable) error {
	if p.ID.IsNil() {
		p.ID = id.NewPayableID()
	}
	p.Entity = types.NewEntity()
	if p.Status == "" {
		p.Status = payable.StatusDraft
	}

	if p.Owner.IsZero() && !p.IssuerID.IsNil() {
		owner, err := e.resolveOwner(ctx, p.IssuerID)
		if err != nil {
			return err
		}
		p.Owner = owner
	}

	return e.store.CreatePayable(ctx, p)
}

// GetPayable retrieves a payable by ID.
func (e *Engine) GetPayable(ctx context.Context, pblID id.PayableID) (*payable.Payable, error) {
	return e.store.GetPayable(ctx, pblID)
}

// ListPayables lists payables matching opts.
func (e *Engine) ListPayables(ctx context.Context, opts payable.ListOpts) ([]*payable.Payable, error) {
	return e.store.ListPayables(ctx, opts)
}

// UpdatePayable persists payable changes.
func (e *Engine) UpdatePayable(ctx context.Context, p *payable.Payable) error {
	return e.store.UpdatePayable(ctx, p)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// resolveOwner maps a user to the owner documents they create belong to.
func (e *Engine) resolveOwner(ctx context.Context, userID id.UserID) (types.Owner, error) {
	orgID, err := e.store.GetMembership(ctx, userID)
	if err != nil {
		return types.Owner{}, err
	}
	if !orgID.IsNil() {
		return types.OrganizationOwner(orgID), nil
	}
	return types.IndividualOwner(userID), nil
}

// syncWorker runs periodic ledger syncs until Stop.
func (e *Engine) syncWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := e.SyncLedger(ctx)
			if err != nil {
				e.logger.Error("periodic ledger sync failed", "error", err)
				continue
			}
			e.logger.Info("periodic ledger sync completed",
				"processed", report.Processed,
				"fixed", report.Fixed,
				"failed", len(report.Failed),
			)
		}
	}
}
