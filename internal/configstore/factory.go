package configstore

import (
	"context"
	"fmt"
	"log/slog"

	"futurespipeline/internal/orders"
)

// Open returns a Postgres-backed Recorder when postgresDSN is set, falling
// back to the SQLite writer otherwise — same fallback discipline as the
// teacher's Redis-buffered/SQLite-durable split, applied to order_states.
func Open(ctx context.Context, postgresDSN, sqlitePath string, log *slog.Logger) (orders.Recorder, func(), error) {
	if log == nil {
		log = slog.Default()
	}
	if postgresDSN != "" {
		if err := Migrate(postgresDSN); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		store, err := NewPGStore(ctx, postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info("configstore: using postgres")
		return store, store.Close, nil
	}

	store, err := NewSQLiteStore(sqlitePath)
	if err != nil {
		return nil, nil, err
	}
	log.Info("configstore: using sqlite fallback", "path", sqlitePath)
	return store, func() { store.Close() }, nil
}
