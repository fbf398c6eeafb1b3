package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faucetScope/internal/model"
)

func sampleTransfer(status model.TransferStatus) model.TransferEvent {
	return model.TransferEvent{
		TxHash:      "0xtx1",
		ChainID:     97,
		FromAddress: "0xfrom",
		ToAddress:   "0xto",
		TokenType:   model.TokenVEX,
		Amount:      decimal.NewFromInt(10),
		BlockNumber: 50,
		Status:      status,
		ObservedAt:  time.Now().UTC(),
	}
}

func TestUpsertTransfersIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := []model.TransferEvent{sampleTransfer(model.TransferConfirmed)}
	require.NoError(t, store.UpsertTransfers(ctx, batch))
	require.NoError(t, store.UpsertTransfers(ctx, batch))

	count, err := store.TransferCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertTransfersStatusForwardOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertTransfers(ctx, []model.TransferEvent{sampleTransfer(model.TransferPending)}))
	require.NoError(t, store.UpsertTransfers(ctx, []model.TransferEvent{sampleTransfer(model.TransferConfirmed)}))

	stored, ok := store.TransferByHash("0xtx1")
	require.True(t, ok)
	assert.Equal(t, model.TransferConfirmed, stored.Status)

	// A stale pending observation must not demote a final status.
	require.NoError(t, store.UpsertTransfers(ctx, []model.TransferEvent{sampleTransfer(model.TransferPending)}))
	stored, ok = store.TransferByHash("0xtx1")
	require.True(t, ok)
	assert.Equal(t, model.TransferConfirmed, stored.Status)
}

func TestUpsertBalancesForwardOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	newer := model.TokenBalanceEntry{
		WalletAddress: "0xabc",
		TokenType:     model.TokenVEX,
		Balance:       decimal.NewFromInt(20),
		UpdatedAt:     base.Add(time.Hour),
	}
	older := model.TokenBalanceEntry{
		WalletAddress: "0xabc",
		TokenType:     model.TokenVEX,
		Balance:       decimal.NewFromInt(5),
		UpdatedAt:     base,
	}

	require.NoError(t, store.UpsertBalances(ctx, []model.TokenBalanceEntry{newer}))
	require.NoError(t, store.UpsertBalances(ctx, []model.TokenBalanceEntry{older}))

	stored, ok := store.Balance("0xabc", model.TokenVEX)
	require.True(t, ok)
	assert.Equal(t, "20", stored.Balance.String())
	assert.Equal(t, base.Add(time.Hour), stored.UpdatedAt)
}

func TestInsertClaimIfEligibleWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return base })

	amount := decimal.NewFromInt(10)
	cooldown := 24 * time.Hour

	_, inserted, err := store.InsertClaimIfEligible(ctx, "0xabc", amount, cooldown)
	require.NoError(t, err)
	require.True(t, inserted)

	_, inserted, err = store.InsertClaimIfEligible(ctx, "0xabc", amount, cooldown)
	require.NoError(t, err)
	assert.False(t, inserted)

	store.SetClock(func() time.Time { return base.Add(24*time.Hour + time.Minute) })
	_, inserted, err = store.InsertClaimIfEligible(ctx, "0xabc", amount, cooldown)
	require.NoError(t, err)
	assert.True(t, inserted)

	claims, err := store.ListClaims(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	// Newest first.
	assert.True(t, claims[0].LastClaimAt.After(claims[1].LastClaimAt))
}

func TestCursorRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.LoadCursor(ctx, "reconcile:testnet")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveCursor(ctx, "reconcile:testnet", 42))
	block, ok, err := store.LoadCursor(ctx, "reconcile:testnet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), block)
}
