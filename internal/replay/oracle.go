package replay

import "github.com/shopspring/decimal"

// Resolution describes what is known about a market's settlement state.
// Marks carries per-outcome midpoint prices for markets still trading;
// it may be nil when no quote is available.
type Resolution struct {
	Resolved       bool
	WinningOutcome string
	Marks          map[string]decimal.Decimal
}

// Mark returns the quoted price for an outcome, or zero when unknown.
func (r Resolution) Mark(outcome string) decimal.Decimal {
	if r.Marks == nil {
		return decimal.Zero
	}
	return r.Marks[outcome]
}

// Oracle answers market resolution queries during replay. Returning
// ok=false means the market is unknown to the oracle; replay treats it
// as unresolved with no marks.
type Oracle interface {
	Resolve(marketID string) (Resolution, bool)
}

// StaticOracle is a map-backed Oracle, used by tests and by callers
// that prefetch resolution state before replaying.
type StaticOracle map[string]Resolution

func (o StaticOracle) Resolve(marketID string) (Resolution, bool) {
	r, ok := o[marketID]
	return r, ok
}

// NilOracle knows no markets. Every position replays as unresolved.
type NilOracle struct{}

func (NilOracle) Resolve(string) (Resolution, bool) { return Resolution{}, false }
