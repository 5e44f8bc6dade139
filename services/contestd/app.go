package contestd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stakecurate/config"
	"stakecurate/core/events"
	"stakecurate/gateway/middleware"
	"stakecurate/integrations/webhooks"
	"stakecurate/native/audit"
	"stakecurate/native/bank"
	"stakecurate/native/contest"
	"stakecurate/native/oracle"
	"stakecurate/observability"
	"stakecurate/storage"
)

// App is a fully wired daemon: storage, ledger, bank, audit log and server.
type App struct {
	Server *Server
	Engine *contest.Engine
	Bank   *bank.Ledger
	Feed   *events.Feed

	db      storage.Database
	prices  *oracle.StaticSource
	hooks   *webhooks.Dispatcher
	closers []func() error
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewApp builds the daemon from the service config and ledger parameters.
func NewApp(cfg Config, ledger *config.Ledger, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	db, err := openDatabase(ledger.DataDir)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, func() error { db.Close(); return nil })

	limits, err := ledger.ContestLimits()
	if err != nil {
		return nil, fmt.Errorf("ledger limits: %w", err)
	}
	costs, err := ledger.StorageCosts()
	if err != nil {
		return nil, fmt.Errorf("ledger storage costs: %w", err)
	}

	app.prices = oracle.NewStaticSource()
	seedPrices(app.prices, ledger.Deposits.Tokens, time.Now())
	app.Bank = bank.NewLedger(db)
	app.Bank.SetLogger(logger.With(slog.String("component", "bank")))
	app.Bank.SetOracle(oracle.NewReader(app.prices, ledger.Deposits.MaxPriceAge()), ledger.Deposits.MinUSDMicros)

	app.Feed = events.NewFeed()
	emitters := events.Multi{app.Feed, newMetricsEmitter()}
	if cfg.Webhook.URL != "" {
		hooks, err := webhooks.NewDispatcher(cfg.Webhook.URL, []byte(cfg.Webhook.Secret),
			webhooks.WithLogger(logger.With(slog.String("component", "webhooks"))),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, cfg.Webhook.MinBackoff.Duration, cfg.Webhook.MaxBackoff.Duration))
		if err != nil {
			return nil, fmt.Errorf("webhooks: %w", err)
		}
		app.hooks = hooks
		app.closers = append(app.closers, func() error { hooks.Close(); return nil })
		emitters = append(emitters, hooks)
	}
	app.closers = append(app.closers, func() error { app.Feed.Close(); return nil })

	engine := contest.NewEngine()
	engine.SetState(contest.NewStore(db))
	engine.SetPayer(app.Bank)
	engine.SetCollector(app.Bank)
	engine.SetEmitter(emitters)
	engine.SetLogger(logger.With(slog.String("component", contest.ModuleName)))
	if err := engine.SetLimits(limits); err != nil {
		return nil, fmt.Errorf("ledger limits: %w", err)
	}
	engine.SetStorageCosts(costs)
	settings, err := engine.Bootstrap(ledger.Settings())
	if err != nil {
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}
	app.Engine = engine
	observability.Contestd().SetPause(settings.Paused)

	var auditLog *audit.Log
	if cfg.Audit.DSN != "" {
		gdb, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		if err := audit.AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("audit migrate: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			app.closers = append(app.closers, sqlDB.Close)
		}
		auditLog = audit.NewLog(gdb, engine)
	}

	server, err := NewServer(Options{
		Engine: engine,
		Bank:   app.Bank,
		Audit:  auditLog,
		Feed:   app.Feed,
		Prices: app.prices,
		Auth: middleware.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORSOrigins,
		EventBuffer: cfg.EventBuffer,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	app.Server = server
	server.refreshActive(context.Background())
	ok = true
	return app, nil
}

func openDatabase(dataDir string) (storage.Database, error) {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(dataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	return db, nil
}

// seedPrices loads the configured token prices once. Tokens without an
// UpdatedAt are stamped with loadedAt; after that only the owner's price
// updates refresh them.
func seedPrices(src *oracle.StaticSource, tokens []config.Token, loadedAt time.Time) {
	for _, token := range tokens {
		updated := token.UpdatedAt
		if updated.IsZero() {
			updated = loadedAt
		}
		src.Set(oracle.Price{
			Token:     token.Symbol,
			USDMicros: token.USDMicros,
			Decimals:  token.Decimals,
			Enabled:   token.Enabled,
			UpdatedAt: updated,
		})
	}
}

// RunBackground exports feed drop counts until ctx is cancelled.
func (a *App) RunBackground(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var reported uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dropped := a.Feed.Dropped()
				observability.Events().AddDropped(dropped - reported)
				reported = dropped
			}
		}
	}()
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	a.wg.Wait()
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
