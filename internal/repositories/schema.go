package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
)

// migrations create the ledger schema. The CHECK constraints mirror the balance
// invariants so a buggy writer cannot commit an invalid account.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS wallet_accounts (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL UNIQUE,
		total_balance NUMERIC(20,2) NOT NULL DEFAULT 0,
		available_balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (available_balance >= 0),
		blocked_balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (blocked_balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (total_balance = available_balance + blocked_balance)
	);`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id VARCHAR(26) COLLATE "C" PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES wallet_accounts(id),
		owner_id UUID NOT NULL,
		kind VARCHAR(16) NOT NULL,
		amount NUMERIC(20,2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		external_reference VARCHAR(128) NOT NULL UNIQUE,
		metadata JSONB NOT NULL DEFAULT '{}',
		failure_reason TEXT NOT NULL DEFAULT '',
		attempts INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		dispatched_at TIMESTAMPTZ,
		settled_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_owner_idx ON wallet_transactions (owner_id, id DESC);`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_pending_idx ON wallet_transactions (id) WHERE status = 'PENDING';`,
}

// Migrate creates the ledger tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			logger.Log.Errorw("migration failed", "statement", m, "error", err)
			return classifyError(err)
		}
	}
	logger.Log.Infow("ledger schema ready", "statements", len(migrations))
	return nil
}
