package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"faucetScope/internal/model"
)

// SampleMetrics observes network health: average block time over the last
// span blocks and the active validator set size. Validator count comes
// from clique_getSigners on PoA networks; when the method is unavailable
// the peer count is used as a proxy.
func (c *Client) SampleMetrics(ctx context.Context, span uint64) (model.MetricsSample, error) {
	if span == 0 {
		span = 20
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return model.MetricsSample{}, fmt.Errorf("chain id: %w", err)
	}

	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return model.MetricsSample{}, fmt.Errorf("latest block: %w", err)
	}
	if latest < span {
		span = latest
	}
	if span == 0 {
		return model.MetricsSample{}, fmt.Errorf("chain has no block history")
	}

	newest, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(latest))
	if err != nil {
		return model.MetricsSample{}, fmt.Errorf("header %d: %w", latest, err)
	}
	oldest, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(latest-span))
	if err != nil {
		return model.MetricsSample{}, fmt.Errorf("header %d: %w", latest-span, err)
	}

	elapsed := int64(newest.Time) - int64(oldest.Time)
	if elapsed < 0 {
		elapsed = 0
	}
	avgBlockTime := time.Duration(elapsed) * time.Second / time.Duration(span)

	validators, err := c.validatorCount(ctx)
	if err != nil {
		// No sample at all: reporting zero validators here would raise a
		// health alert for what is only RPC degradation.
		return model.MetricsSample{}, fmt.Errorf("validator count: %w", err)
	}

	return model.MetricsSample{
		ChainID:          chainID,
		ActiveValidators: validators,
		AvgBlockTime:     avgBlockTime,
		LatestBlock:      latest,
		SampledAt:        time.Now().UTC(),
	}, nil
}

func (c *Client) validatorCount(ctx context.Context) (int, error) {
	var signers []common.Address
	if err := c.CallRPC(ctx, &signers, "clique_getSigners", "latest"); err == nil {
		return len(signers), nil
	}

	var peers hexutil.Uint64
	if err := c.CallRPC(ctx, &peers, "net_peerCount"); err != nil {
		return 0, err
	}
	return int(peers), nil
}
