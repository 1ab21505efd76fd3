package configstore

import (
	"context"
	"fmt"

	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

// LoadBotConfig reads one bot's config row from Postgres (cmd/botconfig's
// sync path uses ListBotConfigs instead); the core itself reads bot config from
// Redis via internal/state, never directly from Postgres (spec §3 "Read-
// only for the core").
func (s *PGStore) LoadBotConfig(ctx context.Context, botID string) (*model.BotConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT bot_id, user_id, sym, status, side_mode, risk_per_trade, leverage, tp_ratio, max_qty
		FROM bot_config WHERE bot_id = $1
	`, botID)

	var cfg model.BotConfig
	var risk, tp string
	var maxQty *string
	if err := row.Scan(&cfg.BotID, &cfg.UserID, &cfg.Sym, &cfg.Status, &cfg.SideMode, &risk, &cfg.Leverage, &tp, &maxQty); err != nil {
		return nil, fmt.Errorf("scan bot_config %s: %w", botID, err)
	}
	cfg.RiskPerTrade, _ = decimal.NewFromString(risk)
	cfg.TPRatio, _ = decimal.NewFromString(tp)
	if maxQty != nil {
		if mq, err := decimal.NewFromString(*maxQty); err == nil {
			cfg.MaxQty = &mq
		}
	}
	return &cfg, nil
}

// ListBotConfigs returns every bot_config row, used by cmd/botconfig to
// sync Postgres into Redis's bot:cfg:{id} hashes and sym:bots:{sym} sets.
func (s *PGStore) ListBotConfigs(ctx context.Context) ([]model.BotConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bot_id, user_id, sym, status, side_mode, risk_per_trade, leverage, tp_ratio, max_qty
		FROM bot_config
	`)
	if err != nil {
		return nil, fmt.Errorf("list bot_config: %w", err)
	}
	defer rows.Close()

	var out []model.BotConfig
	for rows.Next() {
		var cfg model.BotConfig
		var risk, tp string
		var maxQty *string
		if err := rows.Scan(&cfg.BotID, &cfg.UserID, &cfg.Sym, &cfg.Status, &cfg.SideMode, &risk, &cfg.Leverage, &tp, &maxQty); err != nil {
			return nil, fmt.Errorf("scan bot_config row: %w", err)
		}
		cfg.RiskPerTrade, _ = decimal.NewFromString(risk)
		cfg.TPRatio, _ = decimal.NewFromString(tp)
		if maxQty != nil {
			if mq, err := decimal.NewFromString(*maxQty); err == nil {
				cfg.MaxQty = &mq
			}
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}
