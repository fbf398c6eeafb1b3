package postgres

import (
	"context"
	"fmt"
)

// ddl is idempotent: every statement is safe to re-run. Claims carry no
// uniqueness constraint beyond the primary key: a wallet accumulates one
// row per grant, and the cooldown window is enforced by the conditional
// insert, not the schema.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS claims (
		id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		amount_claimed NUMERIC(38, 18) NOT NULL,
		tx_hash        TEXT,
		last_claim_at  TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`DROP INDEX IF EXISTS idx_claims_one_pending`,
	`CREATE INDEX IF NOT EXISTS idx_claims_wallet_last_claim
		ON claims (wallet_address, last_claim_at DESC)`,
	`CREATE TABLE IF NOT EXISTS transfer_events (
		tx_hash      TEXT PRIMARY KEY,
		chain_id     BIGINT NOT NULL,
		from_address TEXT NOT NULL,
		to_address   TEXT NOT NULL,
		token_type   TEXT NOT NULL,
		amount       NUMERIC(38, 18) NOT NULL,
		block_number BIGINT NOT NULL,
		status       TEXT NOT NULL,
		observed_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_events_to
		ON transfer_events (to_address, block_number DESC)`,
	`CREATE TABLE IF NOT EXISTS token_balances (
		wallet_address TEXT NOT NULL,
		token_type     TEXT NOT NULL,
		balance        NUMERIC(38, 18) NOT NULL,
		locked_balance NUMERIC(38, 18) NOT NULL DEFAULT 0,
		updated_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (wallet_address, token_type)
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          UUID PRIMARY KEY,
		chain_id    BIGINT NOT NULL,
		alert_type  TEXT NOT NULL,
		severity    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		resolved    BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_active
		ON alerts (chain_id, alert_type) WHERE resolved = false`,
	`CREATE TABLE IF NOT EXISTS sync_cursors (
		name       TEXT PRIMARY KEY,
		last_block BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
