// Package app wires configuration to concrete stores for the LifeTag
// binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mohamedS2020/lifetag/internal/config"
	"github.com/mohamedS2020/lifetag/internal/db"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store/memory"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store/postgres"
	sqlitestore "github.com/mohamedS2020/lifetag/internal/lifetag/store/sqlite"
)

// Stores bundles the store implementations selected by configuration.
type Stores struct {
	KV       store.KVStore
	Profiles store.ProfileStore
	Audit    store.AuditLogStore
	Runs     store.RunStore

	DB *sql.DB

	closers []func()
}

type OpenOptions struct {
	// SeedDev inserts the demo profile when running in dev.
	SeedDev bool
}

// OpenStores opens the local SQLite database and the audit backend named
// by cfg.Audit.Backend.  Close releases everything.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, opt OpenOptions) (*Stores, error) {
	conn, err := db.Open(ctx, db.Config{Path: cfg.DB.Path, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	writer := db.NewWorker(conn)

	s := &Stores{
		DB:       conn,
		KV:       sqlitestore.NewKVStore(conn, writer),
		Profiles: sqlitestore.NewProfileStore(conn, writer),
	}
	// closers run in reverse order
	s.closers = append(s.closers, func() { _ = conn.Close() }, writer.Close)

	if opt.SeedDev && !cfg.IsProd() {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{BcryptCost: cfg.Gate.BcryptCost}); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed dev: %w", err)
		}
		logger.Info("dev seed applied", slog.String("profile_id", db.DevProfileID))
	}

	switch cfg.Audit.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Audit = postgres.NewAuditLogStore(pool)
		s.Runs = postgres.NewRunStore(pool)
	case "memory":
		s.Audit = memory.NewAuditLogStore()
		s.Runs = memory.NewRunStore()
	default:
		s.Audit = sqlitestore.NewAuditLogStore(conn, writer)
		s.Runs = sqlitestore.NewRunStore(conn, writer)
	}

	logger.Info("stores opened",
		slog.String("db_path", cfg.DB.Path),
		slog.String("audit_backend", cfg.Audit.Backend))
	return s, nil
}

// Close releases the stores in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
