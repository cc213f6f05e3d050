package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/lendpool/config"
	"github.com/alejandrodnm/lendpool/internal/adapters/notify"
	"github.com/alejandrodnm/lendpool/internal/adapters/remote"
	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/alejandrodnm/lendpool/internal/application/simulate"
	"github.com/alejandrodnm/lendpool/internal/domain"
)

func runSimulate(ctx context.Context, engine *lending.Engine, cfg config.SimulateConfig, notifier *notify.Console) error {
	if err := simulateAgainst(ctx, engine, engine.PoolID(), cfg, notifier); err != nil {
		return err
	}
	// Estado final del pool tras la carga.
	return runReport(ctx, engine, notifier)
}

// runRemoteSimulate lanza la misma carga contra un `lendpool -serve` remoto. El
// cliente va al ritmo del limiter del servidor.
func runRemoteSimulate(ctx context.Context, baseURL string, cfg *config.Config, notifier *notify.Console) error {
	client := remote.NewClient(baseURL, cfg.Server.RatePerSec, cfg.Server.Burst)
	p, err := client.Pool(ctx)
	if err != nil {
		return fmt.Errorf("remote pool: %w", err)
	}
	if err := simulateAgainst(ctx, client, p.ID, cfg.Simulate, notifier); err != nil {
		return err
	}

	// Sin acceso al store remoto: solo el pool.
	final, err := client.Pool(ctx)
	if err != nil {
		return fmt.Errorf("remote pool: %w", err)
	}
	return notifier.Report(ctx, domain.Report{Pool: final})
}

func simulateAgainst(ctx context.Context, pool simulate.Pool, poolID string, cfg config.SimulateConfig, notifier *notify.Console) error {
	slog.Info("=== SIMULATION MODE ===",
		"pool", poolID,
		"lenders", cfg.Lenders,
		"borrowers", cfg.Borrowers,
		"steps", cfg.Steps,
		"seed", cfg.Seed,
	)

	summary, err := simulate.Run(ctx, pool, simulate.Config{
		Lenders:    cfg.Lenders,
		Borrowers:  cfg.Borrowers,
		Steps:      cfg.Steps,
		RatePerSec: cfg.RatePerSec,
		Seed:       cfg.Seed,
	})
	notifier.PrintSimulation(summary)
	return err
}
