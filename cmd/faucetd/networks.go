package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"faucetScope/internal/chain"
	"faucetScope/internal/config"
	"faucetScope/internal/model"
	"faucetScope/internal/reconcile"
	"faucetScope/internal/storage"
)

// builtNetwork keeps the concrete chain client next to the reconcile
// scope so the watch loop can also sample health metrics from it.
type builtNetwork struct {
	scope  reconcile.Network
	client *chain.Client
}

func buildNetworks(ctx context.Context, configs []config.NetworkConfig, logger *zap.Logger) ([]builtNetwork, func(), error) {
	built := make([]builtNetwork, 0, len(configs))
	closeAll := func() {
		for _, network := range built {
			network.client.Close()
		}
	}

	for _, cfg := range configs {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect rpc %s: %w", cfg.Name, err)
		}

		registry, err := model.NewTokenRegistry(cfg.Tokens)
		if err != nil {
			client.Close()
			closeAll()
			return nil, nil, fmt.Errorf("network %s: %w", cfg.Name, err)
		}

		contracts, err := reconcile.ParseAddresses(registry.Contracts())
		if err != nil {
			client.Close()
			closeAll()
			return nil, nil, fmt.Errorf("network %s: %w", cfg.Name, err)
		}
		if len(contracts) == 0 {
			client.Close()
			closeAll()
			return nil, nil, fmt.Errorf("network %s: at least one token contract is required", cfg.Name)
		}

		logger.Info("network configured",
			zap.String("name", cfg.Name),
			zap.Int("contracts", len(contracts)),
		)
		built = append(built, builtNetwork{
			scope: reconcile.Network{
				Name:      cfg.Name,
				Ledger:    client,
				Registry:  registry,
				Contracts: contracts,
				Decimals:  cfg.Decimals,
			},
			client: client,
		})
	}

	return built, closeAll, nil
}

func reconcileNetworks(built []builtNetwork) []reconcile.Network {
	networks := make([]reconcile.Network, 0, len(built))
	for _, network := range built {
		networks = append(networks, network.scope)
	}
	return networks
}

func newReconciler(cfg config.Config, store storage.Store, logger *zap.Logger) *reconcile.Reconciler {
	return reconcile.NewReconciler(reconcile.Config{
		BatchSize:     cfg.BatchSize,
		Lookback:      cfg.Lookback,
		MaxResults:    cfg.MaxResults,
		Confirmations: cfg.Confirmations,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
	}, store, logger)
}
