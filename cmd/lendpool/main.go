package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/lendpool/config"
	"github.com/alejandrodnm/lendpool/internal/adapters/metrics"
	"github.com/alejandrodnm/lendpool/internal/adapters/notify"
	"github.com/alejandrodnm/lendpool/internal/adapters/storage"
	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	serve := flag.Bool("serve", false, "serve the pool over HTTP until interrupted")
	simulate := flag.Bool("simulate", false, "run concurrent lenders/borrowers against the pool")
	report := flag.Bool("report", false, "print pool, records and recent operations (default mode)")
	poolID := flag.String("pool", "", "pool id to open (default: latest, or create one)")
	dsn := flag.String("dsn", "", "sqlite path (overrides config)")
	remoteURL := flag.String("remote", "", "with -simulate: drive a lendpool server running at this URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *poolID != "" {
		cfg.Pool.ID = *poolID
	}
	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}
	setupLogger(cfg.Log)

	slog.Info("lendpool starting",
		"config", *configPath,
		"dsn", cfg.Storage.DSN,
		"serve", *serve,
		"simulate", *simulate,
		"report", *report,
		"remote", *remoteURL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	notifier := notify.NewConsole()

	if *remoteURL != "" {
		if !*simulate {
			slog.Error("-remote requires -simulate")
			os.Exit(2)
		}
		if err := runRemoteSimulate(ctx, *remoteURL, cfg, notifier); err != nil {
			slog.Error("lendpool exited with error", "err", err)
			os.Exit(1)
		}
		slog.Info("lendpool stopped cleanly")
		return
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)

	engine, err := openOrCreate(ctx, store, cfg.Pool, lending.WithObserver(m))
	if err != nil {
		slog.Error("failed to open pool", "err", err, "pool", cfg.Pool.ID)
		os.Exit(1)
	}

	switch {
	case *serve:
		err = runServe(ctx, engine, cfg, m, reg)
	case *simulate:
		err = runSimulate(ctx, engine, cfg.Simulate, notifier)
	default:
		err = runReport(ctx, engine, notifier)
	}
	if err != nil {
		slog.Error("lendpool exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("lendpool stopped cleanly")
}

// openOrCreate abre el pool pedido (o el último). Si no se pidió uno concreto y el
// store está vacío, crea uno nuevo con los parámetros de la config.
func openOrCreate(ctx context.Context, store *storage.SQLiteStorage, pc config.PoolConfig, opts ...lending.Option) (*lending.Engine, error) {
	engine, err := lending.Open(ctx, store, pc.ID, opts...)
	if err == nil {
		return engine, nil
	}
	if pc.ID != "" || !errors.Is(err, domain.ErrPoolNotFound) {
		return nil, err
	}

	deposit, start, fee, reward, err := pc.Amounts()
	if err != nil {
		return nil, err
	}
	overrides, err := pc.Overrides()
	if err != nil {
		return nil, err
	}
	engine, id, err := lending.Create(ctx, store, lending.CreateParams{
		InitialBaseDeposit: domain.NewBucket(domain.AssetBase, deposit),
		StartAmount:        start,
		Fee:                fee,
		Reward:             reward,
		Overrides:          overrides,
	}, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("pool created", "pool", id, "deposit", deposit, "start_amount", start)
	return engine, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
