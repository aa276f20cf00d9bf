package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/patients/internal/config"
	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/store/memstore"
	"github.com/JonMunkholm/patients/internal/store/mongostore"
	"github.com/JonMunkholm/patients/internal/store/pgstore"
)

// session is an open store plus the repository over it.
type session struct {
	repo  *core.Repository
	gate  *core.LoadGate
	close func()
}

// openStore connects to the configured backend. Connection attempts are
// bounded by STORE_CONNECT_TIMEOUT.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.ConnectTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendMongo:
		s, err := mongostore.Open(connectCtx, mongostore.Config{
			URI:            cfg.Mongo.URI,
			Host:           cfg.Mongo.Host,
			Port:           cfg.Mongo.Port,
			User:           cfg.Mongo.User,
			Password:       cfg.Mongo.Password,
			AuthSource:     cfg.Mongo.AuthSource,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Store.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to mongodb",
			"database", cfg.Mongo.Database,
			"collection", cfg.Mongo.Collection,
		)
		return s, func() {
			if err := s.Close(context.Background()); err != nil {
				slog.Warn("mongodb disconnect failed", "error", err)
			}
		}, nil

	case config.BackendPostgres:
		s, err := pgstore.Open(connectCtx, pgstore.Config{
			URL:             cfg.Postgres.URL,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to postgres", "table", pgstore.Table)
		return s, s.Close, nil

	case config.BackendMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// open connects to the store and builds the repository. The context source
// names the caller in repository logs.
func (a *app) open(ctx context.Context) (*session, error) {
	store, closeStore, err := openStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}

	gate := core.NewLoadGate(a.cfg.Load.MaxWait)
	repo := core.NewRepository(store, core.Options{
		Validator: core.Validator{Accumulate: a.cfg.Validation.AccumulateErrors},
		BatchSize: a.cfg.Load.BatchSize,
		Logger:    slog.Default(),
		LoadGate:  gate,
	})
	return &session{repo: repo, gate: gate, close: closeStore}, nil
}

func cliContext(ctx context.Context) context.Context {
	return core.ContextWithSource(ctx, "cli")
}
