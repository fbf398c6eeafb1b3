package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

// Store provides Postgres persistence for claims, transfers, balances,
// alerts, and reconciliation cursors.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// wrapErr maps connection-level failures onto storage.ErrUnavailable so
// callers can fail closed without inspecting pgx internals.
func wrapErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
}

// LatestClaim returns the most recent claim for a wallet.
func (s *Store) LatestClaim(ctx context.Context, wallet string) (model.ClaimRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, amount_claimed, COALESCE(tx_hash, ''), last_claim_at, created_at
		FROM claims
		WHERE wallet_address = $1
		ORDER BY last_claim_at DESC
		LIMIT 1
	`, wallet)

	record, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ClaimRecord{}, false, nil
		}
		return model.ClaimRecord{}, false, wrapErr("latest claim", err)
	}
	return record, true, nil
}

// InsertClaimIfEligible appends a claim only when no claim for the wallet
// exists inside the cooldown window. The check and the insert are a single
// statement so two concurrent claims cannot both pass the window.
func (s *Store) InsertClaimIfEligible(ctx context.Context, wallet string, amount decimal.Decimal, cooldown time.Duration) (model.ClaimRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO claims (wallet_address, amount_claimed, last_claim_at, created_at)
		SELECT $1, $2, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM claims
			WHERE wallet_address = $1
			  AND last_claim_at > now() - make_interval(secs => $3)
		)
		RETURNING id, wallet_address, amount_claimed, COALESCE(tx_hash, ''), last_claim_at, created_at
	`, wallet, amount.String(), cooldown.Seconds())

	record, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ClaimRecord{}, false, nil
		}
		return model.ClaimRecord{}, false, wrapErr("insert claim", err)
	}
	return record, true, nil
}

// ListClaims returns all claims for a wallet, newest first.
func (s *Store) ListClaims(ctx context.Context, wallet string) ([]model.ClaimRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet_address, amount_claimed, COALESCE(tx_hash, ''), last_claim_at, created_at
		FROM claims
		WHERE wallet_address = $1
		ORDER BY last_claim_at DESC
	`, wallet)
	if err != nil {
		return nil, wrapErr("list claims", err)
	}
	defer rows.Close()

	claims := make([]model.ClaimRecord, 0)
	for rows.Next() {
		record, err := scanClaim(rows)
		if err != nil {
			return nil, wrapErr("scan claim", err)
		}
		claims = append(claims, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list claims", err)
	}
	return claims, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (model.ClaimRecord, error) {
	var record model.ClaimRecord
	var amount string
	if err := row.Scan(&record.ID, &record.WalletAddress, &amount, &record.TxHash, &record.LastClaimAt, &record.CreatedAt); err != nil {
		return model.ClaimRecord{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.ClaimRecord{}, fmt.Errorf("parse amount: %w", err)
	}
	record.AmountClaimed = parsed
	return record, nil
}

// UpsertTransfers merges transfer events keyed by tx hash. Status only
// transitions forward: a row that already reached a final state keeps it.
func (s *Store) UpsertTransfers(ctx context.Context, transfers []model.TransferEvent) error {
	if len(transfers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, transfer := range transfers {
		batch.Queue(`
			INSERT INTO transfer_events (
				tx_hash, chain_id, from_address, to_address, token_type,
				amount, block_number, status, observed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (tx_hash)
			DO UPDATE SET
				status = EXCLUDED.status,
				block_number = EXCLUDED.block_number,
				observed_at = EXCLUDED.observed_at
			WHERE transfer_events.status = 'pending'
			  AND EXCLUDED.status <> 'pending'
		`,
			transfer.TxHash,
			int64(transfer.ChainID),
			transfer.FromAddress,
			transfer.ToAddress,
			string(transfer.TokenType),
			transfer.Amount.String(),
			int64(transfer.BlockNumber),
			string(transfer.Status),
			transfer.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range transfers {
		if _, err := br.Exec(); err != nil {
			return wrapErr("upsert transfers", err)
		}
	}
	return nil
}

// UpsertBalances merges balance entries keyed by (wallet, token).
// UpdatedAt never moves backward.
func (s *Store) UpsertBalances(ctx context.Context, balances []model.TokenBalanceEntry) error {
	if len(balances) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range balances {
		batch.Queue(`
			INSERT INTO token_balances (
				wallet_address, token_type, balance, locked_balance, updated_at
			) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (wallet_address, token_type)
			DO UPDATE SET
				balance = EXCLUDED.balance,
				locked_balance = EXCLUDED.locked_balance,
				updated_at = EXCLUDED.updated_at
			WHERE token_balances.updated_at <= EXCLUDED.updated_at
		`,
			entry.WalletAddress,
			string(entry.TokenType),
			entry.Balance.String(),
			entry.LockedBalance.String(),
			entry.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range balances {
		if _, err := br.Exec(); err != nil {
			return wrapErr("upsert balances", err)
		}
	}
	return nil
}

// TransferCount returns the number of stored transfer events.
func (s *Store) TransferCount(ctx context.Context) (int64, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM transfer_events`)
	if err := row.Scan(&count); err != nil {
		return 0, wrapErr("transfer count", err)
	}
	return count, nil
}

// ActiveAlerts returns unresolved alerts, newest first.
func (s *Store) ActiveAlerts(ctx context.Context, chainID uint64) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chain_id, alert_type, severity, title, description, resolved, created_at, resolved_at
		FROM alerts
		WHERE resolved = false
		  AND ($1 = 0 OR chain_id = $1)
		ORDER BY created_at DESC
	`, int64(chainID))
	if err != nil {
		return nil, wrapErr("active alerts", err)
	}
	defer rows.Close()

	alerts := make([]model.Alert, 0)
	for rows.Next() {
		var alert model.Alert
		var chain int64
		var alertType, severity string
		if err := rows.Scan(&alert.ID, &chain, &alertType, &severity, &alert.Title, &alert.Description, &alert.Resolved, &alert.CreatedAt, &alert.ResolvedAt); err != nil {
			return nil, wrapErr("scan alert", err)
		}
		alert.ChainID = uint64(chain)
		alert.Type = model.AlertType(alertType)
		alert.Severity = model.AlertSeverity(severity)
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("active alerts", err)
	}
	return alerts, nil
}

// InsertAlert stores a new alert.
func (s *Store) InsertAlert(ctx context.Context, alert model.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, chain_id, alert_type, severity, title, description, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`,
		alert.ID,
		int64(alert.ChainID),
		string(alert.Type),
		string(alert.Severity),
		alert.Title,
		alert.Description,
		alert.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert alert", err)
	}
	return nil
}

// ResolveAlert marks an alert resolved. The WHERE clause keeps the call
// idempotent: an already-resolved alert keeps its original resolved_at.
func (s *Store) ResolveAlert(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE alerts
		SET resolved = true, resolved_at = now()
		WHERE id = $1 AND resolved = false
	`, id)
	if err != nil {
		return wrapErr("resolve alert", err)
	}
	return nil
}

// LoadCursor returns the last reconciled block for a scope.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM sync_cursors WHERE name = $1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, wrapErr("load cursor", err)
	}
	return uint64(block), true, nil
}

// SaveCursor upserts the last reconciled block for a scope.
func (s *Store) SaveCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_cursors (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	if err != nil {
		return wrapErr("save cursor", err)
	}
	return nil
}
