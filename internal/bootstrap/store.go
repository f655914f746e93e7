// Package bootstrap opens the document store described by config.StoreConfig.
// It is shared by the API server and ridectl so both run against the same
// backend with the same schema.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/pkordes/rideplanner/internal/config"
	"github.com/pkordes/rideplanner/internal/store"
	"github.com/pkordes/rideplanner/internal/store/memstore"
	"github.com/pkordes/rideplanner/internal/store/pgstore"
	"github.com/pkordes/rideplanner/internal/store/redisfeed"
	"github.com/pkordes/rideplanner/migrations"
)

// Migrate applies every pending embedded migration to the database at dsn
// and returns the versions it applied.
func Migrate(ctx context.Context, dsn string) ([]int64, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap.Migrate: open: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("bootstrap.Migrate: create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap.Migrate: %w", err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// OpenStore returns the configured store and a function releasing everything
// it opened. For postgres it migrates the schema first and, when RedisAddr is
// set, shares changes with other processes through Redis. ctx bounds the
// feed subscription as well as startup.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, func(), error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Backend == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	applied, err := Migrate(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "versions", applied)
	}

	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap.OpenStore: create pool: %w", err)
	}
	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap.OpenStore: ping: %w", err)
	}
	log.Info("database connection established")

	feed, closeFeed, err := openFeed(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	st := pgstore.New(pool, feed, pgstore.WithLogger(log))
	return st, func() {
		closeFeed()
		pool.Close()
	}, nil
}

func openFeed(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Feed, func(), error) {
	if cfg.RedisAddr == "" {
		return store.NewLocalFeed(), func() {}, nil
	}
	rdb, err := redisfeed.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap.OpenStore: %w", err)
	}
	feed := redisfeed.New(rdb, cfg.RedisChannel, log)
	if err := feed.Start(ctx); err != nil {
		_ = feed.Close()
		return nil, nil, fmt.Errorf("bootstrap.OpenStore: %w", err)
	}
	log.Info("change feed connected", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	return feed, func() { _ = feed.Close() }, nil
}
