package configstore

import (
	"context"
	"database/sql"
	"fmt"

	"futurespipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the local dev/test order_states writer used when
// POSTGRES_DSN is unset, grounded on the teacher's WAL-mode single-writer
// sqlite.Writer (internal/store/sqlite).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS order_states (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_id               TEXT NOT NULL,
			signal_id            TEXT NOT NULL,
			order_id             TEXT NOT NULL DEFAULT '',
			stop_order_id        TEXT NOT NULL DEFAULT '',
			take_profit_order_id TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL,
			side                 TEXT NOT NULL,
			symbol               TEXT NOT NULL,
			trigger_price        TEXT NOT NULL DEFAULT '0',
			stop_price           TEXT NOT NULL DEFAULT '0',
			quantity             TEXT NOT NULL DEFAULT '0',
			filled_quantity      TEXT NOT NULL DEFAULT '0',
			avg_fill_price       TEXT NOT NULL DEFAULT '0',
			created_at           INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at           INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			UNIQUE(bot_id, signal_id)
		);

		CREATE TABLE IF NOT EXISTS bot_config (
			bot_id         TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			sym            TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'active',
			side_mode      TEXT NOT NULL DEFAULT 'both',
			risk_per_trade TEXT NOT NULL,
			leverage       INTEGER NOT NULL DEFAULT 1,
			tp_ratio       TEXT NOT NULL,
			max_qty        TEXT
		);
	`)
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, st model.OrderState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_states
			(bot_id, signal_id, order_id, stop_order_id, take_profit_order_id, status, side, symbol,
			 trigger_price, stop_price, quantity, filled_quantity, avg_fill_price)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(bot_id, signal_id) DO UPDATE SET
			order_id=excluded.order_id, stop_order_id=excluded.stop_order_id,
			take_profit_order_id=excluded.take_profit_order_id, status=excluded.status,
			trigger_price=excluded.trigger_price, stop_price=excluded.stop_price,
			quantity=excluded.quantity, filled_quantity=excluded.filled_quantity,
			avg_fill_price=excluded.avg_fill_price, updated_at=strftime('%s','now')
	`, st.BotID, st.SignalID, st.OrderID, st.StopOrderID, st.TakeProfitOrderID,
		string(st.Status), string(st.Side), st.Symbol,
		st.TriggerPrice.String(), st.StopPrice.String(), st.Quantity.String(),
		st.FilledQuantity.String(), st.AvgFillPrice.String())
	if err != nil {
		return fmt.Errorf("sqlite upsert order_states: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
