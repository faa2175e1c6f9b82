package slippage

import (
	"fmt"

	"PolyLedger/internal/replay"

	"github.com/shopspring/decimal"
)

// Mode selects how a slippage level is applied to trade executions.
type Mode int32

const (
	// Percentage scales trade cash flows: buys cost s% more, sells
	// return s% less.
	Percentage Mode = iota
	// Points shifts every fill price by an absolute delta in price
	// units, so the cash effect is token volume times the delta.
	Points
)

func (m Mode) String() string {
	switch m {
	case Percentage:
		return "percentage"
	case Points:
		return "points"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Spec names the levels to test. Mode is caller-selected, never
// guessed from the magnitudes.
type Spec struct {
	Mode   Mode
	Levels []decimal.Decimal
}

// DefaultPercentages are the standard percentage levels.
func DefaultPercentages() Spec {
	return Spec{Mode: Percentage, Levels: decimals("0.5", "1", "2", "3", "5")}
}

// DefaultPoints are the standard absolute price deltas.
func DefaultPoints() Spec {
	return Spec{Mode: Points, Levels: decimals("0.01", "0.02", "0.03", "0.05", "0.10")}
}

func decimals(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = decimal.RequireFromString(s)
	}
	return out
}

// Scenario is the outcome of replaying the wallet's cash flows at one
// slippage level.
type Scenario struct {
	Level       decimal.Decimal `json:"level"`
	BuyCost     decimal.Decimal `json:"buy_cost"`
	SellRevenue decimal.Decimal `json:"sell_revenue"`
	PnL         decimal.Decimal `json:"pnl"`
	Profitable  bool            `json:"profitable"`
}

// Verdict grades how much slippage a wallet's edge can absorb.
type Verdict string

const (
	Recommended    Verdict = "RECOMMENDED"
	Moderate       Verdict = "MODERATE"
	Risky          Verdict = "RISKY"
	NotRecommended Verdict = "NOT_RECOMMENDED"
)

// Analysis is the full simulation output.
type Analysis struct {
	Mode      Mode            `json:"mode"`
	BasePnL   decimal.Decimal `json:"base_pnl"`
	Scenarios []Scenario      `json:"scenarios"`
	MaxViable decimal.Decimal `json:"max_viable_level"`
	AnyViable bool            `json:"any_viable"`
	Verdict   Verdict         `json:"verdict"`
}

// Simulate perturbs only the BUY and SELL components of the cash-flow
// decomposition. REDEEM, SPLIT, MERGE, REWARD and CONVERSION are
// contract settlements executed at fixed terms, so no level touches
// them.
func Simulate(cf replay.CashFlow, spec Spec) Analysis {
	out := Analysis{
		Mode:    spec.Mode,
		BasePnL: cf.PnL(),
	}
	hundred := decimal.NewFromInt(100)

	for _, level := range spec.Levels {
		var buy, sell decimal.Decimal
		switch spec.Mode {
		case Points:
			buy = cf.BuyCost.Add(cf.BuyVolumeTokens.Mul(level))
			sell = cf.SellRevenue.Sub(cf.SellVolumeTokens.Mul(level))
		default:
			frac := level.Div(hundred)
			buy = cf.BuyCost.Mul(decimal.NewFromInt(1).Add(frac))
			sell = cf.SellRevenue.Mul(decimal.NewFromInt(1).Sub(frac))
		}

		pnl := sell.
			Add(cf.RedeemRevenue).
			Add(cf.MergeRevenue).
			Add(cf.RewardRevenue).
			Add(cf.ConversionRevenue).
			Sub(buy).
			Sub(cf.SplitCost)

		sc := Scenario{
			Level:       level,
			BuyCost:     buy,
			SellRevenue: sell,
			PnL:         pnl,
			Profitable:  pnl.IsPositive(),
		}
		out.Scenarios = append(out.Scenarios, sc)
		if sc.Profitable && level.GreaterThanOrEqual(out.MaxViable) {
			out.MaxViable = level
			out.AnyViable = true
		}
	}

	out.Verdict = verdict(spec.Mode, out.MaxViable, out.AnyViable)
	return out
}

func verdict(mode Mode, maxViable decimal.Decimal, anyViable bool) Verdict {
	if !anyViable {
		return NotRecommended
	}
	var recommended, moderate decimal.Decimal
	if mode == Points {
		recommended = decimal.RequireFromString("0.05")
		moderate = decimal.RequireFromString("0.02")
	} else {
		recommended = decimal.NewFromInt(2)
		moderate = decimal.NewFromInt(1)
	}
	switch {
	case maxViable.GreaterThanOrEqual(recommended):
		return Recommended
	case maxViable.GreaterThanOrEqual(moderate):
		return Moderate
	default:
		return Risky
	}
}
