package model

import "github.com/shopspring/decimal"

// SideMode restricts which regime sides a bot will act on.
type SideMode string

const (
	SideModeBoth      SideMode = "both"
	SideModeLongOnly  SideMode = "long_only"
	SideModeShortOnly SideMode = "short_only"
)

// BotStatus is the lifecycle state of a bot, read-only from the core.
type BotStatus string

const (
	BotStatusActive BotStatus = "active"
	BotStatusPaused BotStatus = "paused"
	BotStatusEnded  BotStatus = "ended"
)

// BotConfig is a bot's static configuration, owned by cmd/botconfig and read
// read-only by the calculator/poller/handlers/reconciler (spec §3).
type BotConfig struct {
	BotID        string
	UserID       string
	Sym          string
	Status       BotStatus
	SideMode     SideMode
	RiskPerTrade decimal.Decimal
	Leverage     int
	TPRatio      decimal.Decimal

	// MaxQty is an optional hard cap on entry quantity; nil means unbounded.
	MaxQty *decimal.Decimal
}

// Allows reports whether the bot's SideMode permits acting on side.
func (c *BotConfig) Allows(side Regime) bool {
	switch c.SideMode {
	case SideModeLongOnly:
		return side == RegimeLong
	case SideModeShortOnly:
		return side == RegimeShort
	default:
		return side == RegimeLong || side == RegimeShort
	}
}

// Eligible implements spec §4.F's _eligible(cfg, side): the bot must be
// active and its side_mode must permit side.
func (c *BotConfig) Eligible(side Regime) bool {
	return c.Status == BotStatusActive && c.Allows(side)
}
