package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/survivalskills/internal/config"
	"github.com/udisondev/survivalskills/internal/db"
	"github.com/udisondev/survivalskills/internal/db/memory"
	"github.com/udisondev/survivalskills/internal/db/rediscd"
	"github.com/udisondev/survivalskills/internal/db/sqlite"
	"github.com/udisondev/survivalskills/internal/engine"
)

// openStores connects the configured backend. The returned func closes everything opened.
func openStores(ctx context.Context, cfg config.StorageConfig) (engine.Stores, func(), error) {
	var (
		stores  engine.Stores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return stores, nil, fmt.Errorf("connecting to database: %w", err)
		}
		closers = append(closers, database.Close)
		slog.Info("database connected")

		if err := database.Migrate(ctx); err != nil {
			closeAll()
			return stores, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		stores = engine.Stores{
			Progression: database.Progression(),
			XP:          database.Progression(),
			Cooldowns:   database.Cooldowns(),
		}

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return stores, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		closers = append(closers, func() {
			if err := st.Close(); err != nil {
				slog.Error("closing sqlite store", "error", err)
			}
		})
		slog.Info("sqlite store opened", "path", cfg.SQLitePath)
		stores = engine.Stores{Progression: st, XP: st, Cooldowns: st}

	case config.DriverMemory:
		slog.Warn("memory storage: progression is lost on restart")
		st := memory.New()
		stores = engine.Stores{Progression: st, XP: st, Cooldowns: st}

	default:
		return stores, nil, errors.New("unknown storage driver " + cfg.Driver)
	}

	if cfg.Redis.Enabled {
		rd, err := rediscd.New(ctx, rediscd.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			closeAll()
			return stores, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		closers = append(closers, func() {
			if err := rd.Close(); err != nil {
				slog.Error("closing redis", "error", err)
			}
		})
		stores.Cooldowns = rd
		slog.Info("redis cooldown store connected", "addr", cfg.Redis.Addr)
	}

	return stores, closeAll, nil
}
