package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"faucetScope/internal/model"
)

// ErrUnavailable reports that the backing store could not be reached.
// Eligibility checks treat it as "not eligible" (fail closed).
var ErrUnavailable = errors.New("store unavailable")

// Store is the persistence boundary shared by the oracle, recorder,
// reconciler, and annotator. All uniqueness and cooldown invariants are
// enforced here with conditional writes, never by read-then-write in the
// caller: any concurrent request may be served by a different process.
type Store interface {
	// LatestClaim returns the most recent claim for a wallet, if any.
	LatestClaim(ctx context.Context, wallet string) (model.ClaimRecord, bool, error)

	// InsertClaimIfEligible atomically appends a claim unless another
	// claim for the wallet exists inside the cooldown window. It reports
	// whether a row was inserted.
	InsertClaimIfEligible(ctx context.Context, wallet string, amount decimal.Decimal, cooldown time.Duration) (model.ClaimRecord, bool, error)

	// ListClaims returns all claims for a wallet, newest first.
	ListClaims(ctx context.Context, wallet string) ([]model.ClaimRecord, error)

	// UpsertTransfers merges observed transfers keyed by tx hash.
	// Re-observing a known hash is a no-op beyond a forward status
	// transition.
	UpsertTransfers(ctx context.Context, transfers []model.TransferEvent) error

	// UpsertBalances merges balance entries keyed by (wallet, token).
	// UpdatedAt only moves forward.
	UpsertBalances(ctx context.Context, balances []model.TokenBalanceEntry) error

	// TransferCount returns the number of stored transfer events.
	TransferCount(ctx context.Context) (int64, error)

	// ActiveAlerts returns unresolved alerts, newest first. A zero
	// chainID means all chains.
	ActiveAlerts(ctx context.Context, chainID uint64) ([]model.Alert, error)

	// InsertAlert stores a new alert.
	InsertAlert(ctx context.Context, alert model.Alert) error

	// ResolveAlert marks an alert resolved. Resolving an already
	// resolved alert is a no-op; the original ResolvedAt is kept.
	ResolveAlert(ctx context.Context, id uuid.UUID) error

	// LoadCursor returns the last reconciled block for a named scope.
	LoadCursor(ctx context.Context, name string) (uint64, bool, error)

	// SaveCursor upserts the last reconciled block for a named scope.
	SaveCursor(ctx context.Context, name string, block uint64) error
}
