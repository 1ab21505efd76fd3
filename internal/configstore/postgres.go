// Package configstore persists order_states audit rows (spec §6) and reads
// bot-config rows, backed by pgx in production with a SQLite fallback for
// local dev/test when no Postgres DSN is configured (mirrors the teacher's
// SQLite-as-durability-fallback pattern).
package configstore

import (
	"context"
	"fmt"

	"futurespipeline/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the production order_states + bot_config store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool ping: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Upsert writes one order_states row, updating on (bot_id, signal_id)
// conflict so repeated handler attempts for the same signal converge on
// one row (spec §9 supplemented feature).
func (s *PGStore) Upsert(ctx context.Context, st model.OrderState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_states
			(bot_id, signal_id, order_id, stop_order_id, take_profit_order_id,
			 status, side, symbol, trigger_price, stop_price, quantity,
			 filled_quantity, avg_fill_price, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
		ON CONFLICT (bot_id, signal_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			stop_order_id = EXCLUDED.stop_order_id,
			take_profit_order_id = EXCLUDED.take_profit_order_id,
			status = EXCLUDED.status,
			trigger_price = EXCLUDED.trigger_price,
			stop_price = EXCLUDED.stop_price,
			quantity = EXCLUDED.quantity,
			filled_quantity = EXCLUDED.filled_quantity,
			avg_fill_price = EXCLUDED.avg_fill_price,
			updated_at = now()
	`, st.BotID, st.SignalID, st.OrderID, st.StopOrderID, st.TakeProfitOrderID,
		string(st.Status), string(st.Side), st.Symbol,
		st.TriggerPrice.String(), st.StopPrice.String(), st.Quantity.String(),
		st.FilledQuantity.String(), st.AvgFillPrice.String())
	if err != nil {
		return fmt.Errorf("upsert order_states: %w", err)
	}
	return nil
}

// UpsertBotConfig is cmd/botconfig's write path — never called by the core
// at runtime (spec §2 table).
func (s *PGStore) UpsertBotConfig(ctx context.Context, cfg model.BotConfig) error {
	var maxQty interface{}
	if cfg.MaxQty != nil {
		maxQty = cfg.MaxQty.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_config (bot_id, user_id, sym, status, side_mode, risk_per_trade, leverage, tp_ratio, max_qty, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
		ON CONFLICT (bot_id) DO UPDATE SET
			user_id = EXCLUDED.user_id, sym = EXCLUDED.sym, status = EXCLUDED.status,
			side_mode = EXCLUDED.side_mode, risk_per_trade = EXCLUDED.risk_per_trade,
			leverage = EXCLUDED.leverage, tp_ratio = EXCLUDED.tp_ratio, max_qty = EXCLUDED.max_qty,
			updated_at = now()
	`, cfg.BotID, cfg.UserID, cfg.Sym, string(cfg.Status), string(cfg.SideMode),
		cfg.RiskPerTrade.String(), cfg.Leverage, cfg.TPRatio.String(), maxQty)
	if err != nil {
		return fmt.Errorf("upsert bot_config: %w", err)
	}
	return nil
}

func (s *PGStore) Close() { s.pool.Close() }
