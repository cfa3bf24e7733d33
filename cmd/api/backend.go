package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/goclaw/backend/internal/agents"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/config"
	"github.com/goclaw/backend/internal/dashboard"
	"github.com/goclaw/backend/internal/database"
	"github.com/goclaw/backend/internal/memstore"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/repository"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type userStore interface {
	auth.UserStore
	middleware.UserLookup
}

type agentStore interface {
	agents.Store
	dashboard.AgentCounter
}

// backend is the storage the API runs on plus whatever background
// processing it needs.
type backend struct {
	kind     string
	users    userStore
	agents   agentStore
	billing  dashboard.BillingReader
	webhooks billing.Repository

	ping  func(ctx context.Context) error
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, kind, databaseURL string, cfg *config.Config) (*backend, error) {
	switch kind {
	case storePostgres:
		return openPostgres(ctx, databaseURL, cfg)
	case storeMemory:
		if cfg.IsProduction() {
			slog.Warn("running with the in-memory store; all data is lost on exit")
		}
		return openMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", kind, storePostgres, storeMemory)
	}
}

func openMemory() *backend {
	store := memstore.New()
	worker := billing.NewUnmatchedCustomerWorker(store.Webhooks(), slog.Default())
	store.OnAlert(worker.Alert)

	noop := func(context.Context) error { return nil }
	return &backend{
		kind:     storeMemory,
		users:    store.Users(),
		agents:   store.Agents(),
		billing:  store.Billing(),
		webhooks: store.Webhooks(),
		ping:     store.Ping,
		start:    noop,
		stop:     noop,
		close:    func() {},
	}
}

func openPostgres(ctx context.Context, databaseURL string, cfg *config.Config) (*backend, error) {
	db, err := database.New(ctx, databaseURL, database.PoolSize{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	pool := db.Pool()

	// The alert insert func is set after the River client exists; the
	// client needs the worker, which needs the repository.
	var insertMu sync.Mutex
	var insertFn billing.InsertAlertTxFunc
	insertAlert := func(ctx context.Context, tx pgx.Tx, args billing.UnmatchedCustomerArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return fmt.Errorf("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	webhooks := billing.NewPgRepository(pool, insertAlert)

	workers := river.NewWorkers()
	river.AddWorker(workers, billing.NewUnmatchedCustomerWorker(webhooks, slog.Default()))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args billing.UnmatchedCustomerArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	return &backend{
		kind:     storePostgres,
		users:    repository.NewUserRepo(pool),
		agents:   repository.NewAgentRepo(pool),
		billing:  repository.NewBillingRepo(pool),
		webhooks: webhooks,
		ping:     db.Ping,
		start:    riverClient.Start,
		stop:     riverClient.Stop,
		close:    db.Close,
	}, nil
}
