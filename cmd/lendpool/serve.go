package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/lendpool/config"
	"github.com/alejandrodnm/lendpool/internal/adapters/httpapi"
	"github.com/alejandrodnm/lendpool/internal/adapters/metrics"
	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/prometheus/client_golang/prometheus"
)

func runServe(ctx context.Context, engine *lending.Engine, cfg *config.Config, m *metrics.Prometheus, reg *prometheus.Registry) error {
	slog.Info("=== SERVE MODE ===",
		"pool", engine.PoolID(),
		"addr", cfg.Server.Addr,
		"rate_per_sec", cfg.Server.RatePerSec,
		"burst", cfg.Server.Burst,
	)

	srv := httpapi.New(httpapi.Config{
		Addr:           cfg.Server.Addr,
		RatePerSec:     cfg.Server.RatePerSec,
		Burst:          cfg.Server.Burst,
		RequestTimeout: cfg.RequestTimeout(),
	}, engine, m, reg)

	return srv.ListenAndServe(ctx)
}
