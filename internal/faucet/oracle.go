package faucet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

// DefaultCooldown is the wait between faucet claims for one wallet.
const DefaultCooldown = 24 * time.Hour

// ErrInvalidAddress reports a wallet address that is not valid hex.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Eligibility is the answer to an eligibility check.
type Eligibility struct {
	Eligible          bool          `json:"eligible"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
}

// Oracle decides whether a wallet may claim the faucet grant. It holds no
// claim state of its own: every check re-reads the store, and a store
// failure is reported as not eligible rather than allowing unlimited
// claims.
type Oracle struct {
	store    storage.Store
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewOracle(store storage.Store, cooldown time.Duration, logger *zap.Logger) *Oracle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the oracle clock, for tests.
func (o *Oracle) SetClock(now func() time.Time) {
	o.now = now
}

// Check returns whether the wallet may claim and how long it must wait
// otherwise. A wallet with no prior claim is unconditionally eligible.
// On store failure the result is not-eligible and the error is returned.
func (o *Oracle) Check(ctx context.Context, wallet string) (Eligibility, error) {
	normalized, ok := model.NormalizeAddress(wallet)
	if !ok {
		return Eligibility{}, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}

	latest, found, err := o.store.LatestClaim(ctx, normalized)
	if err != nil {
		o.logger.Warn("eligibility check failed closed", zap.String("wallet", normalized), zap.Error(err))
		return Eligibility{Eligible: false}, err
	}
	if !found {
		return Eligibility{Eligible: true}, nil
	}

	remaining := o.cooldown - o.now().Sub(latest.LastClaimAt)
	if remaining <= 0 {
		return Eligibility{Eligible: true}, nil
	}
	return Eligibility{Eligible: false, CooldownRemaining: remaining}, nil
}

// CanClaim reports eligibility only.
func (o *Oracle) CanClaim(ctx context.Context, wallet string) (bool, error) {
	result, err := o.Check(ctx, wallet)
	return result.Eligible, err
}

// TimeUntilNextClaim returns the remaining cooldown, floored at zero.
func (o *Oracle) TimeUntilNextClaim(ctx context.Context, wallet string) (time.Duration, error) {
	result, err := o.Check(ctx, wallet)
	if err != nil {
		return 0, err
	}
	return result.CooldownRemaining, nil
}

// FormatWait renders a cooldown as whole hours and minutes, e.g. "23h 59m".
func FormatWait(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
