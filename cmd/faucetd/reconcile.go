package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faucetScope/internal/config"
	"faucetScope/internal/model"
	"faucetScope/internal/storage"
	"faucetScope/internal/storage/postgres"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}

	wallet, _ := cmd.Flags().GetString("wallet")
	if wallet != "" {
		normalized, ok := model.NormalizeAddress(wallet)
		if !ok {
			return fmt.Errorf("invalid wallet: %s", wallet)
		}
		wallet = normalized
	}

	scopeName, _ := cmd.Flags().GetString("scope")
	networkConfigs := cfg.Networks
	if scopeName != "" {
		networkConfigs = nil
		for _, network := range cfg.Networks {
			if network.Name == scopeName {
				networkConfigs = []config.NetworkConfig{network}
				break
			}
		}
		if networkConfigs == nil {
			return fmt.Errorf("unknown network: %s", scopeName)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	built, closeNetworks, err := buildNetworks(ctx, networkConfigs, logger)
	if err != nil {
		return err
	}
	defer closeNetworks()

	reconciler := newReconciler(cfg, store, logger)
	if cfg.AuditOut != "" {
		reconciler.SetAudit(storage.NewJsonlAudit(cfg.AuditOut))
	}

	logger.Info("reconcile start",
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("networks", len(built)),
		zap.String("wallet", wallet),
	)

	result := reconciler.ReconcileAll(ctx, reconcileNetworks(built), wallet)

	for _, scope := range result.Scopes {
		if scope.Error != "" {
			logger.Warn("scope failed", zap.String("scope", scope.Scope), zap.String("error", scope.Error))
			continue
		}
		logger.Info("scope done",
			zap.String("scope", scope.Scope),
			zap.Int("transfers", scope.TransfersMerged),
			zap.Int("balances", scope.BalancesMerged),
		)
	}

	failed := result.Failed()
	if len(failed) == len(result.Scopes) && len(result.Scopes) > 0 {
		return fmt.Errorf("all %d scopes failed", len(failed))
	}

	logger.Info("reconcile complete",
		zap.Int("transfers_merged", result.TransfersMerged()),
		zap.Int("scopes_failed", len(failed)),
	)
	return nil
}
