package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/rate"
	settlestore "github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// compile-time interface check
var _ settlestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("settle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settle/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_kind = $%d", argIdx), kind)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_id = $%d", argIdx), ownerID)
	}
	if opts.MissingRate {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(invoice.StatusPaid))
		q = q.Where("tx_hash <> ''")
		q = q.Where("exchange_rate IS NULL")
	}
	if !opts.AfterID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("id > $%d", argIdx), opts.AfterID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// UpdateInvoice rewrites an invoice row. The WHERE clause excludes paid
// invoices: they are immutable, and a full-row write racing a payment
// commit must never revert the recorded evidence.
func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Where("status <> $1", string(invoice.StatusPaid)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetInvoice(ctx, inv.ID); err != nil {
			return err
		}
		return settle.ErrAlreadyPaid
	}
	return nil
}

// SetInvoiceRate attaches a valuation snapshot write-once: the WHERE
// clause matches only while no snapshot is stored.
func (s *Store) SetInvoiceRate(ctx context.Context, invID id.InvoiceID, snapshot *rate.Snapshot) error {
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("exchange_rate = $1", marshalSnapshot(snapshot)).
		Set("updated_at = $2", now()).
		Where("id = $3", invID.String()).
		Where("exchange_rate IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetInvoice(ctx, invID); err != nil {
			return err
		}
		return settle.ErrAlreadyExists
	}
	return nil
}

// MarkInvoicePaid is the payment recording compare-and-swap: the WHERE
// clause matches only while the invoice is not yet paid, so concurrent
// callers resolve to exactly one winner inside PostgreSQL.
func (s *Store) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) error {
	t := now()
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("status = $1", string(invoice.StatusPaid)).
		Set("tx_hash = $2", txHash).
		Set("exchange_rate = $3", marshalSnapshot(snapshot)).
		Set("paid_at = $4", paidAt).
		Set("updated_at = $5", t).
		Where("id = $6", invID.String()).
		Where("status <> $7", string(invoice.StatusPaid)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Lost the race or the invoice does not exist.
		if _, err := s.GetInvoice(ctx, invID); err != nil {
			return err
		}
		return settle.ErrAlreadyPaid
	}
	return nil
}

func (s *Store) UpdateInvoiceOwner(ctx context.Context, invID id.InvoiceID, owner types.Owner) error {
	kind, ownerID := toOwnerFields(owner)
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("owner_kind = $1", kind).
		Set("owner_id = $2", ownerID).
		Set("updated_at = $3", now()).
		Where("id = $4", invID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return settle.ErrInvoiceNotFound
	}
	return nil
}

// ==================== Payable Store ====================

func (s *Store) CreatePayable(ctx context.Context, p *payable.Payable) error {
	m := toPayableModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetPayable(ctx context.Context, pblID id.PayableID) (*payable.Payable, error) {
	m := new(payableModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", pblID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrPayableNotFound
		}
		return nil, err
	}
	return fromPayableModel(m)
}

func (s *Store) ListPayables(ctx context.Context, opts payable.ListOpts) ([]*payable.Payable, error) {
	var models []payableModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_kind = $%d", argIdx), kind)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_id = $%d", argIdx), ownerID)
	}
	if !opts.AfterID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("id > $%d", argIdx), opts.AfterID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payable.Payable, len(models))
	for i := range models {
		p, err := fromPayableModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePayable(ctx context.Context, p *payable.Payable) error {
	m := toPayableModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return settle.ErrPayableNotFound
	}
	return nil
}

func (s *Store) UpdatePayableOwner(ctx context.Context, pblID id.PayableID, owner types.Owner) error {
	kind, ownerID := toOwnerFields(owner)
	res, err := s.pg.NewUpdate((*payableModel)(nil)).
		Set("owner_kind = $1", kind).
		Set("owner_id = $2", ownerID).
		Set("updated_at = $3", now()).
		Where("id = $4", pblID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return settle.ErrPayableNotFound
	}
	return nil
}

// ==================== Access token Store ====================

func (s *Store) CreateAccessToken(ctx context.Context, t *accesstoken.Token) error {
	m := toAccessTokenModel(t)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetAccessToken(ctx context.Context, token string) (*accesstoken.Token, error) {
	m := new(accessTokenModel)
	err := s.pg.NewSelect(m).
		Where("token = $1", token).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrTokenNotFound
		}
		return nil, err
	}
	return fromAccessTokenModel(m)
}

func (s *Store) ListAccessTokens(ctx context.Context, invID id.InvoiceID) ([]*accesstoken.Token, error) {
	var models []accessTokenModel
	err := s.pg.NewSelect(&models).
		Where("invoice_id = $1", invID.String()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*accesstoken.Token, len(models))
	for i := range models {
		t, err := fromAccessTokenModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ConsumeAccessToken flips used only while it is still false; the row-level
// conditional UPDATE makes concurrent consumers resolve to exactly one
// winner.
func (s *Store) ConsumeAccessToken(ctx context.Context, token, usedBy string, usedAt time.Time) error {
	res, err := s.pg.NewUpdate((*accessTokenModel)(nil)).
		Set("used = TRUE").
		Set("used_at = $1", usedAt).
		Set("used_by = $2", usedBy).
		Set("updated_at = $3", now()).
		Where("token = $4", token).
		Where("used = FALSE").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetAccessToken(ctx, token); err != nil {
			return err
		}
		return settle.ErrTokenUsed
	}
	return nil
}

// ==================== Ledger entry Store ====================

func (s *Store) UpsertEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	t := now()

	res, err := s.pg.NewUpdate((*entryModel)(nil)).
		Set("owner_kind = $1", m.OwnerKind).
		Set("owner_id = $2", m.OwnerID).
		Set("direction = $3", m.Direction).
		Set("amount = $4", m.Amount).
		Set("currency = $5", m.Currency).
		Set("status = $6", m.Status).
		Set("counterparty_name = $7", m.CounterpartyName).
		Set("counterparty_email = $8", m.CounterpartyEmail).
		Set("last_synced_at = $9", m.LastSyncedAt).
		Set("updated_at = $10", t).
		Where("source_kind = $11", m.SourceKind).
		Where("source_id = $12", m.SourceID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	m.CreatedAt = t
	m.UpdatedAt = t
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetEntryBySource(ctx context.Context, src entry.Source) (*entry.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("source_kind = $1", string(src.Kind)).
		Where("source_id = $2", src.DocumentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_kind = $%d", argIdx), kind)
		argIdx++
		q = q.Where(fmt.Sprintf("owner_id = $%d", argIdx), ownerID)
	}
	if opts.Direction != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("direction = $%d", argIdx), string(opts.Direction))
	}
	if !opts.AfterID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("id > $%d", argIdx), opts.AfterID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Membership Store ====================

func (s *Store) GetMembership(ctx context.Context, userID id.UserID) (id.OrganizationID, error) {
	m := new(membershipModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", userID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return id.Nil, nil
		}
		return id.Nil, err
	}
	if m.OrganizationID == "" {
		return id.Nil, nil
	}
	orgID, err := id.ParseOrganizationID(m.OrganizationID)
	if err != nil {
		return id.Nil, fmt.Errorf("settle/postgres: membership org id: %w", err)
	}
	return orgID, nil
}

func (s *Store) SetMembership(ctx context.Context, userID id.UserID, orgID id.OrganizationID) error {
	t := now()
	res, err := s.pg.NewUpdate((*membershipModel)(nil)).
		Set("organization_id = $1", orgID.String()).
		Set("updated_at = $2", t).
		Where("id = $3", userID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	m := &membershipModel{
		ID:             userID.String(),
		OrganizationID: orgID.String(),
		CreatedAt:      t,
		UpdatedAt:      t,
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks if an error wraps sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
