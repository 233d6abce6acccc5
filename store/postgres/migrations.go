package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Settle store.
var Migrations = migrate.NewGroup("settle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settle_invoices",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_invoices (
    id             TEXT PRIMARY KEY,
    number         TEXT NOT NULL DEFAULT '',
    issuer_id      TEXT NOT NULL DEFAULT '',
    owner_kind     TEXT NOT NULL DEFAULT '',
    owner_id       TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'draft',
    client_name    TEXT NOT NULL DEFAULT '',
    client_email   TEXT NOT NULL DEFAULT '',
    total          NUMERIC(78, 0) NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT '',
    token_address  TEXT NOT NULL DEFAULT '',
    token_decimals SMALLINT NOT NULL DEFAULT 0,
    payee_address  TEXT NOT NULL DEFAULT '',
    chain_id       TEXT NOT NULL DEFAULT '',
    tx_hash        TEXT NOT NULL DEFAULT '',
    exchange_rate  JSONB,
    paid_at        TIMESTAMPTZ,
    issue_date     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    due_date       TIMESTAMPTZ,
    memo           TEXT NOT NULL DEFAULT '',
    metadata       JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settle_invoices_owner ON settle_invoices (owner_kind, owner_id, status);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_issuer ON settle_invoices (issuer_id);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_missing_rate ON settle_invoices (status) WHERE exchange_rate IS NULL AND tx_hash <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_payables",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_payables (
    id           TEXT PRIMARY KEY,
    number       TEXT NOT NULL DEFAULT '',
    issuer_id    TEXT NOT NULL DEFAULT '',
    owner_kind   TEXT NOT NULL DEFAULT '',
    owner_id     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'draft',
    vendor_name  TEXT NOT NULL DEFAULT '',
    vendor_email TEXT NOT NULL DEFAULT '',
    amount       NUMERIC(30, 10) NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    due_date     TIMESTAMPTZ,
    paid_at      TIMESTAMPTZ,
    tx_hash      TEXT NOT NULL DEFAULT '',
    memo         TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settle_payables_owner ON settle_payables (owner_kind, owner_id, status);
CREATE INDEX IF NOT EXISTS idx_settle_payables_issuer ON settle_payables (issuer_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_payables`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_access_tokens",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_access_tokens (
    id              TEXT PRIMARY KEY,
    token           TEXT NOT NULL,
    invoice_id      TEXT NOT NULL,
    recipient_email TEXT NOT NULL DEFAULT '',
    issuer_id       TEXT NOT NULL DEFAULT '',
    organization_id TEXT NOT NULL DEFAULT '',
    expires_at      TIMESTAMPTZ NOT NULL,
    used            BOOLEAN NOT NULL DEFAULT FALSE,
    used_at         TIMESTAMPTZ,
    used_by         TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_tokens_token ON settle_access_tokens (token);
CREATE INDEX IF NOT EXISTS idx_settle_tokens_invoice ON settle_access_tokens (invoice_id);
CREATE INDEX IF NOT EXISTS idx_settle_tokens_expires ON settle_access_tokens (expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_access_tokens`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_ledger_entries",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_ledger_entries (
    id                 TEXT PRIMARY KEY,
    owner_kind         TEXT NOT NULL DEFAULT '',
    owner_id           TEXT NOT NULL DEFAULT '',
    source_kind        TEXT NOT NULL,
    source_id          TEXT NOT NULL,
    direction          TEXT NOT NULL,
    amount             NUMERIC(30, 10) NOT NULL DEFAULT 0,
    currency           TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT '',
    counterparty_name  TEXT NOT NULL DEFAULT '',
    counterparty_email TEXT NOT NULL DEFAULT '',
    last_synced_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_entries_source ON settle_ledger_entries (source_kind, source_id);
CREATE INDEX IF NOT EXISTS idx_settle_entries_owner ON settle_ledger_entries (owner_kind, owner_id, direction);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_ledger_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_memberships",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_memberships (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_memberships`)
				return err
			},
		},
	)
}
