package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colInvoices    = "settle_invoices"
	colPayables    = "settle_payables"
	colTokens      = "settle_access_tokens"
	colEntries     = "settle_ledger_entries"
	colMemberships = "settle_memberships"
)

// compile-time interface check
var _ settlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all settle collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("settle/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return settle.ErrAlreadyExists
		}
		return fmt.Errorf("settle/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settle.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("settle/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		filter["owner_kind"] = kind
		filter["owner_id"] = ownerID
	}
	if opts.MissingRate {
		filter["status"] = string(invoice.StatusPaid)
		filter["tx_hash"] = bson.M{"$nin": bson.A{nil, ""}}
		filter["exchange_rate"] = nil
	}
	if !opts.AfterID.IsNil() {
		filter["_id"] = bson.M{"$gt": opts.AfterID.String()}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list invoices: %w", err)
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

// UpdateInvoice rewrites an invoice document. The filter excludes paid
// invoices: they are immutable, and a full-document write racing a payment
// commit must never revert the recorded evidence.
func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{
			"_id":    m.ID,
			"status": bson.M{"$ne": string(invoice.StatusPaid)},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetInvoice(ctx, inv.ID); err != nil {
			return err
		}
		return settle.ErrAlreadyPaid
	}
	return nil
}

// SetInvoiceRate attaches a valuation snapshot write-once: the filter
// matches only while no snapshot is stored.
func (s *Store) SetInvoiceRate(ctx context.Context, invID id.InvoiceID, snapshot *rate.Snapshot) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{
			"_id":           invID.String(),
			"exchange_rate": nil,
		}).
		Set("exchange_rate", toSnapshotModel(snapshot)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: set invoice rate: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetInvoice(ctx, invID); err != nil {
			return err
		}
		return settle.ErrAlreadyExists
	}
	return nil
}

// MarkInvoicePaid is the payment recording compare-and-swap: the filter
// matches only while the invoice is not yet paid, so concurrent callers
// resolve to exactly one winner inside MongoDB.
func (s *Store) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{
			"_id":    invID.String(),
			"status": bson.M{"$ne": string(invoice.StatusPaid)},
		}).
		Set("status", string(invoice.StatusPaid)).
		Set("tx_hash", txHash).
		Set("exchange_rate", toSnapshotModel(snapshot)).
		Set("paid_at", paidAt).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: mark invoice paid: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String()}).
		Set("owner_kind", kind).
		Set("owner_id", ownerID).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update invoice owner: %w", err)
	}
	if res.MatchedCount() == 0 {
		return settle.ErrInvoiceNotFound
	}
	return nil
}

// ==================== Payable Store ====================

func (s *Store) CreatePayable(ctx context.Context, p *payable.Payable) error {
	m := toPayableModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return settle.ErrAlreadyExists
		}
		return fmt.Errorf("settle/mongo: create payable: %w", err)
	}
	return nil
}

func (s *Store) GetPayable(ctx context.Context, pblID id.PayableID) (*payable.Payable, error) {
	var m payableModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": pblID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settle.ErrPayableNotFound
		}
		return nil, fmt.Errorf("settle/mongo: get payable: %w", err)
	}
	return fromPayableModel(&m)
}

func (s *Store) ListPayables(ctx context.Context, opts payable.ListOpts) ([]*payable.Payable, error) {
	var models []payableModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		filter["owner_kind"] = kind
		filter["owner_id"] = ownerID
	}
	if !opts.AfterID.IsNil() {
		filter["_id"] = bson.M{"$gt": opts.AfterID.String()}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list payables: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update payable: %w", err)
	}
	if res.MatchedCount() == 0 {
		return settle.ErrPayableNotFound
	}
	return nil
}

func (s *Store) UpdatePayableOwner(ctx context.Context, pblID id.PayableID, owner types.Owner) error {
	kind, ownerID := toOwnerFields(owner)
	res, err := s.mdb.NewUpdate((*payableModel)(nil)).
		Filter(bson.M{"_id": pblID.String()}).
		Set("owner_kind", kind).
		Set("owner_id", ownerID).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update payable owner: %w", err)
	}
	if res.MatchedCount() == 0 {
		return settle.ErrPayableNotFound
	}
	return nil
}

// ==================== Access token Store ====================

func (s *Store) CreateAccessToken(ctx context.Context, t *accesstoken.Token) error {
	m := toAccessTokenModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return settle.ErrAlreadyExists
		}
		return fmt.Errorf("settle/mongo: create access token: %w", err)
	}
	return nil
}

func (s *Store) GetAccessToken(ctx context.Context, token string) (*accesstoken.Token, error) {
	var m accessTokenModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"token": token}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settle.ErrTokenNotFound
		}
		return nil, fmt.Errorf("settle/mongo: get access token: %w", err)
	}
	return fromAccessTokenModel(&m)
}

func (s *Store) ListAccessTokens(ctx context.Context, invID id.InvoiceID) ([]*accesstoken.Token, error) {
	var models []accessTokenModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: list access tokens: %w", err)
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

// ConsumeAccessToken flips used only while it is still false; MongoDB
// serializes the single-document update, so concurrent consumers resolve to
// exactly one winner.
func (s *Store) ConsumeAccessToken(ctx context.Context, token, usedBy string, usedAt time.Time) error {
	res, err := s.mdb.NewUpdate((*accessTokenModel)(nil)).
		Filter(bson.M{"token": token, "used": false}).
		Set("used", true).
		Set("used_at", usedAt).
		Set("used_by", usedBy).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: consume access token: %w", err)
	}
	if res.MatchedCount() == 0 {
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

	res, err := s.mdb.NewUpdate((*entryModel)(nil)).
		Filter(bson.M{"source_kind": m.SourceKind, "source_id": m.SourceID}).
		Set("owner_kind", m.OwnerKind).
		Set("owner_id", m.OwnerID).
		Set("direction", m.Direction).
		Set("amount", m.Amount).
		Set("currency", m.Currency).
		Set("status", m.Status).
		Set("counterparty_name", m.CounterpartyName).
		Set("counterparty_email", m.CounterpartyEmail).
		Set("last_synced_at", m.LastSyncedAt).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: upsert entry: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}

	m.CreatedAt = t
	m.UpdatedAt = t
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		// A concurrent sync inserted the same source first; its values
		// are as fresh as ours.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("settle/mongo: insert entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntryBySource(ctx context.Context, src entry.Source) (*entry.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"source_kind": string(src.Kind), "source_id": src.DocumentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settle.ErrNotFound
		}
		return nil, fmt.Errorf("settle/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel

	filter := bson.M{}
	if !opts.Owner.IsZero() {
		kind, ownerID := toOwnerFields(opts.Owner)
		filter["owner_kind"] = kind
		filter["owner_id"] = ownerID
	}
	if opts.Direction != "" {
		filter["direction"] = string(opts.Direction)
	}
	if !opts.AfterID.IsNil() {
		filter["_id"] = bson.M{"$gt": opts.AfterID.String()}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list entries: %w", err)
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
	var m membershipModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return id.Nil, nil
		}
		return id.Nil, fmt.Errorf("settle/mongo: get membership: %w", err)
	}
	if m.OrganizationID == "" {
		return id.Nil, nil
	}
	orgID, err := id.ParseOrganizationID(m.OrganizationID)
	if err != nil {
		return id.Nil, fmt.Errorf("settle/mongo: membership org id: %w", err)
	}
	return orgID, nil
}

func (s *Store) SetMembership(ctx context.Context, userID id.UserID, orgID id.OrganizationID) error {
	t := now()
	res, err := s.mdb.NewUpdate((*membershipModel)(nil)).
		Filter(bson.M{"_id": userID.String()}).
		Set("organization_id", orgID.String()).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: set membership: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}

	m := &membershipModel{
		ID:             userID.String(),
		OrganizationID: orgID.String(),
		CreatedAt:      t,
		UpdatedAt:      t,
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("settle/mongo: set membership: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all settle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{Keys: bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "exchange_rate", Value: 1}}},
			{Keys: bson.D{{Key: "issuer_id", Value: 1}}},
		},
		colPayables: {
			{Keys: bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "issuer_id", Value: 1}}},
		},
		colTokens: {
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colEntries: {
			{
				Keys:    bson.D{{Key: "source_kind", Value: 1}, {Key: "source_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "direction", Value: 1}}},
		},
		colMemberships: {},
	}
}
