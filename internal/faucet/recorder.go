package faucet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

// DefaultGrantAmount is the fixed token grant per claim.
var DefaultGrantAmount = decimal.NewFromInt(10)

// ErrNotEligible reports a claim attempt inside the cooldown window.
var ErrNotEligible = errors.New("wallet not eligible to claim")

// Recorder appends claim records. Eligibility is re-validated inside the
// store's conditional insert, so two concurrent claims for one wallet
// inside the cooldown window cannot both succeed regardless of which
// process serves them.
type Recorder struct {
	store    storage.Store
	cooldown time.Duration
	grant    decimal.Decimal
	logger   *zap.Logger
}

func NewRecorder(store storage.Store, cooldown time.Duration, grant decimal.Decimal, logger *zap.Logger) *Recorder {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if grant.IsZero() {
		grant = DefaultGrantAmount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:    store,
		cooldown: cooldown,
		grant:    grant,
		logger:   logger,
	}
}

// GrantAmount returns the configured grant size.
func (r *Recorder) GrantAmount() decimal.Decimal {
	return r.grant
}

// RecordClaim appends a claim for the wallet. The on-chain transfer of the
// grant is a separate signing step; this only manages the eligibility
// ledger. Returns ErrNotEligible when the cooldown has not elapsed and
// storage.ErrUnavailable when the store cannot be reached.
func (r *Recorder) RecordClaim(ctx context.Context, wallet string) (model.ClaimRecord, error) {
	normalized, ok := model.NormalizeAddress(wallet)
	if !ok {
		return model.ClaimRecord{}, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}

	record, inserted, err := r.store.InsertClaimIfEligible(ctx, normalized, r.grant, r.cooldown)
	if err != nil {
		r.logger.Error("claim insert failed", zap.String("wallet", normalized), zap.Error(err))
		return model.ClaimRecord{}, err
	}
	if !inserted {
		return model.ClaimRecord{}, fmt.Errorf("%w: %s", ErrNotEligible, normalized)
	}

	r.logger.Info("claim recorded",
		zap.String("wallet", normalized),
		zap.String("amount", record.AmountClaimed.String()),
		zap.Time("last_claim_at", record.LastClaimAt),
	)
	return record, nil
}
