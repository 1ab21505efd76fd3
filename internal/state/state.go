// Package state implements component D (state store): bot config, bot
// state, the idempotency set, the tracked-orders set, and the
// symbol-to-bot index, all held in Redis hashes/sets (spec §3, §4.D).
package state

import (
	"context"
	"fmt"
	"strconv"

	"futurespipeline/internal/model"
	"futurespipeline/internal/streams"

	"github.com/shopspring/decimal"

	goredis "github.com/go-redis/redis/v8"
)

// Store wraps a streams.Client for the hash/set-based state layout.
type Store struct {
	rdb *goredis.Client
}

func New(c *streams.Client) *Store {
	return &Store{rdb: c.Raw()}
}

// LoadBotConfig reads a bot's static configuration. Read-only from the
// core: cmd/botconfig is the only writer.
func (s *Store) LoadBotConfig(ctx context.Context, botID string) (*model.BotConfig, error) {
	vals, err := s.rdb.HGetAll(ctx, streams.BotConfigKey(botID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall bot config %s: %w", botID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	cfg := &model.BotConfig{
		BotID:    botID,
		UserID:   vals["user_id"],
		Sym:      vals["sym"],
		Status:   model.BotStatus(vals["status"]),
		SideMode: model.SideMode(vals["side_mode"]),
	}
	cfg.RiskPerTrade, _ = decimal.NewFromString(vals["risk_per_trade"])
	cfg.TPRatio, _ = decimal.NewFromString(vals["tp_ratio"])
	if lev, err := strconv.Atoi(vals["leverage"]); err == nil {
		cfg.Leverage = lev
	}
	if raw, ok := vals["max_qty"]; ok && raw != "" {
		if mq, err := decimal.NewFromString(raw); err == nil {
			cfg.MaxQty = &mq
		}
	}
	return cfg, nil
}

// BotIDsForSymbol returns the set of bot ids subscribed to sym, via the
// sym:bots:{sym} index set.
func (s *Store) BotIDsForSymbol(ctx context.Context, sym string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, streams.SymBotsIndexKey(sym)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers sym bots %s: %w", sym, err)
	}
	return ids, nil
}

// LoadBotState reads a bot's mutable runtime state.
func (s *Store) LoadBotState(ctx context.Context, botID string) (*model.BotState, error) {
	vals, err := s.rdb.HGetAll(ctx, streams.BotStateKey(botID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall bot state %s: %w", botID, err)
	}
	st := &model.BotState{BotID: botID}
	if len(vals) == 0 {
		return st, nil
	}
	st.LastSignalID = vals["last_signal_id"]
	st.ArmedEntryOrderID = vals["armed_entry_order_id"]
	st.PositionSide = model.Regime(vals["position_side"])
	st.PositionQty, _ = decimal.NewFromString(vals["position_qty"])
	st.AvgEntryPrice, _ = decimal.NewFromString(vals["avg_entry_price"])
	if raw := vals["bracket_ids"]; raw != "" {
		st.BracketIDs = splitCSV(raw)
	}
	return st, nil
}

// SaveBotState writes the full bot state hash.
func (s *Store) SaveBotState(ctx context.Context, st *model.BotState) error {
	fields := map[string]interface{}{
		"last_signal_id":       st.LastSignalID,
		"armed_entry_order_id": st.ArmedEntryOrderID,
		"bracket_ids":          joinCSV(st.BracketIDs),
		"position_side":        string(st.PositionSide),
		"position_qty":         st.PositionQty.String(),
		"avg_entry_price":      st.AvgEntryPrice.String(),
	}
	return s.rdb.HSet(ctx, streams.BotStateKey(st.BotID), fields).Err()
}

// MarkProcessed is the idempotency commit point: SADD on
// bot:processed:{bot_id} returns true iff signalID was newly added (i.e.
// this call is the one allowed to act on it). Matches spec §5's "sole
// commit point for armed-signal processing".
func (s *Store) MarkProcessed(ctx context.Context, botID, signalID string) (bool, error) {
	n, err := s.rdb.SAdd(ctx, streams.ProcessedSetKey(botID), signalID).Result()
	if err != nil {
		return false, fmt.Errorf("sadd processed %s: %w", botID, err)
	}
	return n == 1, nil
}

// IsProcessed reports whether signalID has already been marked, without
// mutating the set.
func (s *Store) IsProcessed(ctx context.Context, botID, signalID string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, streams.ProcessedSetKey(botID), signalID).Result()
	if err != nil {
		return false, fmt.Errorf("sismember processed %s: %w", botID, err)
	}
	return ok, nil
}

// TrackOrder adds orderID to the bot's tracked-order sorted set, scored by
// placement time so older entries can be swept first.
func (s *Store) TrackOrder(ctx context.Context, botID, orderID string, score float64) error {
	return s.rdb.ZAdd(ctx, streams.TrackedOrdersKey(botID), &goredis.Z{Score: score, Member: orderID}).Err()
}

// UntrackOrder removes orderID from the tracked-order set once it is
// filled, cancelled, or confirmed closed by the reconciler.
func (s *Store) UntrackOrder(ctx context.Context, botID, orderID string) error {
	return s.rdb.ZRem(ctx, streams.TrackedOrdersKey(botID), orderID).Err()
}

// TrackedOrders returns every order id currently tracked for botID.
func (s *Store) TrackedOrders(ctx context.Context, botID string) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, streams.TrackedOrdersKey(botID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange tracked %s: %w", botID, err)
	}
	return ids, nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func joinCSV(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
