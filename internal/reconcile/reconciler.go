package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"faucetScope/internal/chain"
	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

// ErrLedgerUnavailable reports that a network's RPC endpoint could not be
// reached. The affected scope is skipped; other scopes proceed.
var ErrLedgerUnavailable = errors.New("external ledger unavailable")

// Ledger is the slice of the chain client the reconciler depends on.
type Ledger interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	TransferLogs(ctx context.Context, fromBlock, toBlock uint64, contracts []common.Address) ([]chain.TransferLog, error)
	BalanceOf(ctx context.Context, contract, holder common.Address) (*big.Int, error)
}

// Network is one reconciliation scope: a chain endpoint plus the token
// contracts tracked on it.
type Network struct {
	Name      string
	Ledger    Ledger
	Registry  *model.TokenRegistry
	Contracts []common.Address
	// Decimals converts raw token units to display units. Zero means 18.
	Decimals int32
}

// Config holds runtime settings for the reconciler.
type Config struct {
	// BatchSize is the block span per log query.
	BatchSize uint64
	// Lookback bounds the first scan of a network with no cursor.
	Lookback uint64
	// MaxResults caps the transfers merged per scope per run.
	MaxResults int
	// Confirmations is how many blocks behind the head a transfer must
	// be to count as confirmed; shallower observations stay pending.
	Confirmations uint64
	MaxRetries    int
	RetryBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 2000
	}
	if c.Lookback == 0 {
		c.Lookback = 5000
	}
	if c.MaxResults == 0 {
		c.MaxResults = 100
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

// ScopeResult reports what one network's reconciliation merged.
type ScopeResult struct {
	Scope           string `json:"scope"`
	ChainID         uint64 `json:"chain_id,omitempty"`
	FromBlock       uint64 `json:"from_block,omitempty"`
	ToBlock         uint64 `json:"to_block,omitempty"`
	TransfersMerged int    `json:"transfers_merged"`
	BalancesMerged  int    `json:"balances_merged"`
	Error           string `json:"error,omitempty"`
}

// Result aggregates per-scope outcomes of one reconciliation run.
type Result struct {
	Scopes []ScopeResult `json:"scopes"`
}

// TransfersMerged sums merged transfers across scopes.
func (r Result) TransfersMerged() int {
	total := 0
	for _, scope := range r.Scopes {
		total += scope.TransfersMerged
	}
	return total
}

// Failed returns the scopes that did not complete.
func (r Result) Failed() []ScopeResult {
	failed := make([]ScopeResult, 0)
	for _, scope := range r.Scopes {
		if scope.Error != "" {
			failed = append(failed, scope)
		}
	}
	return failed
}

// Reconciler merges on-chain transfer truth into the local cache. Every
// write is an idempotent upsert, so overlapping runs, webhook deliveries,
// and resumed batches converge to the same state.
type Reconciler struct {
	cfg    Config
	store  storage.Store
	audit  *storage.JsonlAudit
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(cfg Config, store storage.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		cfg:    cfg.withDefaults(),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetAudit attaches an optional JSONL audit sink for merged transfers.
func (r *Reconciler) SetAudit(audit *storage.JsonlAudit) {
	r.audit = audit
}

// SetClock overrides the reconciler clock, for tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// ReconcileAll reconciles every network independently. A failing scope is
// recorded in its result and does not abort the batch.
func (r *Reconciler) ReconcileAll(ctx context.Context, networks []Network, wallet string) Result {
	result := Result{Scopes: make([]ScopeResult, 0, len(networks))}
	for _, network := range networks {
		scope, err := r.ReconcileNetwork(ctx, network, wallet)
		if err != nil {
			scope.Error = err.Error()
			r.logger.Warn("scope reconciliation failed",
				zap.String("scope", network.Name),
				zap.Error(err),
			)
		}
		result.Scopes = append(result.Scopes, scope)

		if ctx.Err() != nil {
			break
		}
	}
	return result
}

// ReconcileNetwork pulls transfer logs for one network in bounded block
// ranges and merges them. When wallet is non-empty only transfers touching
// that wallet are merged. The scan resumes from the persisted cursor and
// the cursor advances per batch, so an interrupted run picks up where it
// stopped without re-creating rows.
func (r *Reconciler) ReconcileNetwork(ctx context.Context, network Network, wallet string) (ScopeResult, error) {
	result := ScopeResult{Scope: network.Name}

	if network.Ledger == nil {
		return result, fmt.Errorf("ledger is nil")
	}
	if len(network.Contracts) == 0 {
		return result, fmt.Errorf("no token contracts configured")
	}

	chainID, err := network.Ledger.ChainID(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: chain id: %v", ErrLedgerUnavailable, err)
	}
	result.ChainID = chainID

	latest, err := network.Ledger.LatestBlockNumber(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: latest block: %v", ErrLedgerUnavailable, err)
	}

	from := uint64(0)
	if latest > r.cfg.Lookback {
		from = latest - r.cfg.Lookback
	}
	cursorName := fmt.Sprintf("reconcile:%s", network.Name)
	if cursor, ok, err := r.store.LoadCursor(ctx, cursorName); err != nil {
		return result, fmt.Errorf("load cursor: %w", err)
	} else if ok && cursor >= from {
		from = cursor + 1
	}

	if from > latest {
		result.FromBlock = from
		result.ToBlock = latest
		return result, nil
	}
	result.FromBlock = from
	result.ToBlock = latest

	spans, err := splitSpan(from, latest, r.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	decimals := network.Decimals
	if decimals == 0 {
		decimals = 18
	}

	touched := make(map[common.Address]map[string]struct{})
	merged := 0

	for _, span := range spans {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		logs, err := r.transferLogsWithRetry(ctx, network, span.from, span.to)
		if err != nil {
			return result, fmt.Errorf("%w: logs %d-%d: %v", ErrLedgerUnavailable, span.from, span.to, err)
		}

		transfers := make([]model.TransferEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				continue
			}
			// Stamp from the block header so re-observations of the same
			// transfer carry the same time; wall clock only when the
			// header cannot be fetched.
			observedAt := r.now().UTC()
			if ts, err := network.Ledger.BlockTimestamp(ctx, log.BlockNumber); err == nil {
				observedAt = time.Unix(int64(ts), 0).UTC()
			}
			transfer := r.buildTransfer(chainID, network, log, latest, decimals, observedAt)
			if wallet != "" && transfer.FromAddress != wallet && transfer.ToAddress != wallet {
				continue
			}
			transfers = append(transfers, transfer)
			markTouched(touched, log, wallet)
		}

		if len(transfers) > 0 {
			if err := r.store.UpsertTransfers(ctx, transfers); err != nil {
				return result, fmt.Errorf("upsert transfers: %w", err)
			}
			if r.audit != nil {
				if err := r.audit.AppendTransfers(transfers); err != nil {
					r.logger.Warn("audit append failed", zap.Error(err))
				}
			}
			merged += len(transfers)
			result.TransfersMerged = merged
		}

		if err := r.store.SaveCursor(ctx, cursorName, span.to); err != nil {
			return result, fmt.Errorf("save cursor: %w", err)
		}

		if merged >= r.cfg.MaxResults {
			result.ToBlock = span.to
			break
		}
	}

	balances, err := r.refreshBalances(ctx, network, touched, decimals)
	if err != nil {
		return result, err
	}
	result.BalancesMerged = balances

	r.logger.Info("scope reconciled",
		zap.String("scope", network.Name),
		zap.Uint64("chain_id", chainID),
		zap.Uint64("from", result.FromBlock),
		zap.Uint64("to", result.ToBlock),
		zap.Int("transfers", result.TransfersMerged),
		zap.Int("balances", result.BalancesMerged),
	)
	return result, nil
}

func (r *Reconciler) transferLogsWithRetry(ctx context.Context, network Network, fromBlock, toBlock uint64) ([]chain.TransferLog, error) {
	var logs []chain.TransferLog
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = network.Ledger.TransferLogs(ctx, fromBlock, toBlock, network.Contracts)
		if err != nil {
			r.logger.Warn("transfer logs failed",
				zap.String("scope", network.Name),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
				zap.Error(err),
			)
		}
		return err
	})
	return logs, err
}

func (r *Reconciler) buildTransfer(chainID uint64, network Network, log chain.TransferLog, latest uint64, decimals int32, observedAt time.Time) model.TransferEvent {
	status := model.TransferPending
	if log.BlockNumber+r.cfg.Confirmations <= latest {
		status = model.TransferConfirmed
	}

	return model.TransferEvent{
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		ChainID:     chainID,
		FromAddress: strings.ToLower(log.From.Hex()),
		ToAddress:   strings.ToLower(log.To.Hex()),
		TokenType:   network.Registry.Resolve(log.Contract.Hex()),
		Amount:      decimal.NewFromBigInt(log.Value, -decimals),
		BlockNumber: log.BlockNumber,
		Status:      status,
		ObservedAt:  observedAt,
	}
}

func markTouched(touched map[common.Address]map[string]struct{}, log chain.TransferLog, wallet string) {
	for _, holder := range []common.Address{log.From, log.To} {
		normalized := strings.ToLower(holder.Hex())
		if wallet != "" && normalized != wallet {
			continue
		}
		if touched[log.Contract] == nil {
			touched[log.Contract] = make(map[string]struct{})
		}
		touched[log.Contract][normalized] = struct{}{}
	}
}

// refreshBalances queries the authoritative balance for every (contract,
// holder) pair the scan touched. A single failing balance call is logged
// and skipped: transfers and balances are independently idempotent, so a
// later run fills the gap.
func (r *Reconciler) refreshBalances(ctx context.Context, network Network, touched map[common.Address]map[string]struct{}, decimals int32) (int, error) {
	entries := make([]model.TokenBalanceEntry, 0)
	updatedAt := r.now().UTC()

	for contract, holders := range touched {
		tokenType := network.Registry.Resolve(contract.Hex())
		for holder := range holders {
			raw, err := network.Ledger.BalanceOf(ctx, contract, common.HexToAddress(holder))
			if err != nil {
				r.logger.Warn("balance query failed",
					zap.String("scope", network.Name),
					zap.String("wallet", holder),
					zap.String("contract", contract.Hex()),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, model.TokenBalanceEntry{
				WalletAddress: holder,
				TokenType:     tokenType,
				Balance:       decimal.NewFromBigInt(raw, -decimals),
				LockedBalance: decimal.Zero,
				UpdatedAt:     updatedAt,
			})
		}
	}

	if len(entries) == 0 {
		return 0, nil
	}
	if err := r.store.UpsertBalances(ctx, entries); err != nil {
		return 0, fmt.Errorf("upsert balances: %w", err)
	}
	return len(entries), nil
}
