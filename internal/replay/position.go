package replay

import (
	"PolyLedger/internal/event"

	"github.com/shopspring/decimal"
)

// PositionKey identifies one holding: a market's condition id plus the
// outcome label within it.
type PositionKey struct {
	MarketID string
	Outcome  string
}

// Position is the per-(market, outcome) accumulator owned by a single
// replay pass. It is created lazily on the first event touching the key
// and discarded with the pass; only derived numbers outlive it.
type Position struct {
	Key     PositionKey
	AssetID string

	Quantity decimal.Decimal // shares currently held, >= 0
	AvgCost  decimal.Decimal // weighted mean entry price, 0 when flat

	RealizedPnL decimal.Decimal
	CashIn      decimal.Decimal
	CashOut     decimal.Decimal
	TotalBought decimal.Decimal
	TotalSold   decimal.Decimal

	// Resolution state stamped from the oracle after the fold.
	Resolved       bool
	WinningOutcome string
	MarkPrice      decimal.Decimal
}

// IsFlat reports whether the position has no open exposure.
func (p *Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// blend applies a BUY-like acquisition of qty shares at price, updating
// the weighted average cost basis.
func (p *Position) blend(qty, price decimal.Decimal) {
	newQty := p.Quantity.Add(qty)
	if newQty.IsPositive() {
		oldCost := p.AvgCost.Mul(p.Quantity)
		addCost := price.Mul(qty)
		p.AvgCost = oldCost.Add(addCost).Div(newQty)
	}
	p.Quantity = newQty
	p.TotalBought = p.TotalBought.Add(qty)
}

// reduce removes up to qty shares and returns the quantity actually
// removed. The average cost never changes on reductions.
func (p *Position) reduce(qty decimal.Decimal) decimal.Decimal {
	sold := qty
	if sold.GreaterThan(p.Quantity) {
		sold = p.Quantity
	}
	p.Quantity = p.Quantity.Sub(sold)
	p.TotalSold = p.TotalSold.Add(sold)
	return sold
}

// UnrealizedPnL values the open quantity: resolved outcomes at 1.0
// (winner) or 0.0 (loser), open outcomes at the oracle's mark price.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.markValue().Sub(p.AvgCost))
}

// OpenValue is the mark-to-market value of the open quantity.
func (p *Position) OpenValue() decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.markValue())
}

func (p *Position) markValue() decimal.Decimal {
	if p.Resolved {
		if p.Key.Outcome == p.WinningOutcome {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}
	return p.MarkPrice
}

// Touched reports whether the position ever saw volume. Untouched
// positions (created only to record a warning) are omitted from
// snapshots.
func (p *Position) Touched() bool {
	return !p.TotalBought.IsZero() || !p.TotalSold.IsZero()
}

// RealizedEvent is one realized-PnL delta emitted during the fold. The
// period aggregator derives every window from this stream without
// re-deriving cost basis.
type RealizedEvent struct {
	Timestamp int64
	Key       PositionKey
	Kind      event.Kind
	Amount    decimal.Decimal
}
