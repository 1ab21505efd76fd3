package plan

import (
	"testing"

	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseCfg() model.BotConfig {
	return model.BotConfig{
		BotID: "b1", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeBoth,
		RiskPerTrade: dec("0.01"), Leverage: 1, TPRatio: dec("1.5"),
	}
}

func baseFilters() filters.SymbolFilters {
	return filters.SymbolFilters{Sym: "BTCUSDT", TickSize: dec("0.01"), StepSize: dec("0.001"), MinQty: dec("0.001"), MinNotional: dec("5")}
}

func TestBuildPlanLongSizesAndQuantizes(t *testing.T) {
	arm := model.Signal{Kind: model.SignalArm, Sym: "BTCUSDT", Side: model.RegimeLong, Trigger: dec("10.31"), Stop: dec("9.79")}
	in := Inputs{FreeBalance: dec("1000"), Filters: baseFilters()}

	p := BuildPlan(arm, baseCfg(), in)
	require.True(t, p.OK, "expected ok plan, got rejected: %v", p.Diagnostics.Notes)
	require.True(t, p.Qty.GreaterThan(decimal.Zero), "expected positive quantity, got %s", p.Qty)
	require.True(t, p.TakeProfitPrice.GreaterThan(arm.Trigger), "expected long take-profit above trigger, got %s", p.TakeProfitPrice)
	require.True(t, p.PreplaceBrackets, "expected preplace_brackets true")
}

func TestBuildPlanRejectsZeroBalance(t *testing.T) {
	arm := model.Signal{Sym: "BTCUSDT", Side: model.RegimeLong, Trigger: dec("10"), Stop: dec("9.5")}
	p := BuildPlan(arm, baseCfg(), Inputs{FreeBalance: decimal.Zero, Filters: baseFilters()})
	require.False(t, p.OK, "expected rejection on zero free balance")
}

func TestBuildPlanRejectsBelowMinNotional(t *testing.T) {
	cfg := baseCfg()
	cfg.RiskPerTrade = dec("0.0001")
	arm := model.Signal{Sym: "BTCUSDT", Side: model.RegimeLong, Trigger: dec("10"), Stop: dec("9.5")}
	p := BuildPlan(arm, cfg, Inputs{FreeBalance: dec("1000"), Filters: baseFilters()})
	require.False(t, p.OK, "expected rejection below min notional")
}

func TestBuildPlanRejectsBelowMinQty(t *testing.T) {
	cfg := baseCfg()
	cfg.RiskPerTrade = dec("0.00025") // sizes rawQty to 0.5, below the inflated MinQty of 1 below
	filtersWithHighMinQty := baseFilters()
	filtersWithHighMinQty.MinQty = dec("1")
	arm := model.Signal{Sym: "BTCUSDT", Side: model.RegimeLong, Trigger: dec("10"), Stop: dec("9.5")}
	p := BuildPlan(arm, cfg, Inputs{FreeBalance: dec("1000"), Filters: filtersWithHighMinQty})
	require.False(t, p.OK, "expected rejection below min_qty")
}

func TestBuildPlanRejectsOverMaxQty(t *testing.T) {
	cfg := baseCfg()
	maxQty := dec("0.0001")
	cfg.MaxQty = &maxQty
	arm := model.Signal{Sym: "BTCUSDT", Side: model.RegimeLong, Trigger: dec("10"), Stop: dec("9.5")}
	p := BuildPlan(arm, cfg, Inputs{FreeBalance: dec("1000"), Filters: baseFilters()})
	require.False(t, p.OK, "expected rejection over max_qty")
}

func TestBuildPlanShortMirrorsLong(t *testing.T) {
	arm := model.Signal{Sym: "BTCUSDT", Side: model.RegimeShort, Trigger: dec("9.79"), Stop: dec("10.31")}
	p := BuildPlan(arm, baseCfg(), Inputs{FreeBalance: dec("1000"), Filters: baseFilters()})
	require.True(t, p.OK, "expected ok plan, got rejected: %v", p.Diagnostics.Notes)
	require.True(t, p.TakeProfitPrice.LessThan(arm.Trigger), "expected short take-profit below trigger, got %s", p.TakeProfitPrice)
}
