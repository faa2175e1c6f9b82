package replay

import (
	"fmt"
	"sort"

	"PolyLedger/internal/event"

	"github.com/shopspring/decimal"
)

// SplitPolicy controls how SPLIT collateral is attributed to the two
// minted outcome legs.
type SplitPolicy int32

const (
	// SplitEven divides the collateral equally, half per leg. With
	// $1-collateralized binary outcomes this books each leg at half
	// the per-share collateral price.
	SplitEven SplitPolicy = iota
)

// Config tunes replay behavior. The zero value is the production
// configuration.
type Config struct {
	SplitPolicy SplitPolicy
}

// WarningKind classifies data-quality findings surfaced during replay.
type WarningKind int32

const (
	WarnOversell WarningKind = iota + 1
	WarnRedeemUnresolved
	WarnRedeemUnmatched
	WarnMergeUnmatched
)

func (k WarningKind) String() string {
	switch k {
	case WarnOversell:
		return "OVERSELL"
	case WarnRedeemUnresolved:
		return "REDEEM_UNRESOLVED"
	case WarnRedeemUnmatched:
		return "REDEEM_UNMATCHED"
	case WarnMergeUnmatched:
		return "MERGE_UNMATCHED"
	default:
		return fmt.Sprintf("WARNING(%d)", int32(k))
	}
}

// Warning records a replay anomaly without interrupting the fold.
type Warning struct {
	Kind   WarningKind
	Key    PositionKey
	Seq    int64
	Detail string
}

// Result is the complete outcome of one replay pass.
type Result struct {
	Positions map[PositionKey]*Position
	CashFlow  CashFlow
	Realized  []RealizedEvent
	Warnings  []Warning

	// MalformedCount counts events dropped by validation. PartialData
	// marks results computed from an incomplete event history, for
	// example after a partial fetch.
	MalformedCount int
	PartialData    bool

	settledMarkets map[string]struct{}
	boughtMarkets  map[string]struct{}
}

// RealizedPnL sums the realized event stream.
func (r *Result) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, ev := range r.Realized {
		total = total.Add(ev.Amount)
	}
	return total
}

// UnrealizedPnL sums mark-to-market gains across open positions.
func (r *Result) UnrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Positions {
		total = total.Add(p.UnrealizedPnL())
	}
	return total
}

// OpenValue sums the mark value of all open positions.
func (r *Result) OpenValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Positions {
		total = total.Add(p.OpenValue())
	}
	return total
}

// Coverage reports the fraction of settled markets (those with REDEEM
// or MERGE activity) whose entry trades are present in the history.
// 1.0 means every settlement had a visible cost basis; lower values
// indicate truncated trade history.
func (r *Result) Coverage() float64 {
	if len(r.settledMarkets) == 0 {
		return 1.0
	}
	matched := 0
	for m := range r.settledMarkets {
		if _, ok := r.boughtMarkets[m]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(r.settledMarkets))
}

// engine holds the per-pass working state. It is never shared between
// goroutines; each replay allocates its own.
type engine struct {
	cfg    Config
	oracle Oracle
	res    *Result

	// outcome label -> asset id, per market, learned from trades. Used
	// to enumerate the legs touched by SPLIT and MERGE.
	marketOutcomes map[string]map[string]string
}

// Replay folds the wallet's full event history into positions, realized
// PnL and cash-flow totals. The input slice is sorted in place; pass a
// copy if ordering matters to the caller. Replay never fails: malformed
// events are counted and skipped, anomalies become warnings.
func Replay(events []event.Event, oracle Oracle, cfg Config) *Result {
	if oracle == nil {
		oracle = NilOracle{}
	}
	e := &engine{
		cfg:    cfg,
		oracle: oracle,
		res: &Result{
			Positions:      make(map[PositionKey]*Position),
			settledMarkets: make(map[string]struct{}),
			boughtMarkets:  make(map[string]struct{}),
		},
		marketOutcomes: make(map[string]map[string]string),
	}

	event.Sort(events)
	e.learnOutcomes(events)

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			e.res.MalformedCount++
			continue
		}
		switch ev.Kind {
		case event.KindBuy:
			e.applyBuy(ev)
		case event.KindSell:
			e.applySell(ev)
		case event.KindRedeem:
			e.applyRedeem(ev)
		case event.KindSplit:
			e.applySplit(ev)
		case event.KindMerge:
			e.applyMerge(ev)
		case event.KindReward, event.KindConversion:
			e.applyCashInflow(ev)
		}
	}

	e.stampResolutions()
	e.dropUntouched()
	return e.res
}

// learnOutcomes indexes the outcome labels seen on trades so SPLIT and
// MERGE can address both legs of a market even when the activity row
// itself names no outcome.
func (e *engine) learnOutcomes(events []event.Event) {
	for _, ev := range events {
		if !ev.Kind.IsTrade() || ev.MarketID == "" || ev.Outcome == "" {
			continue
		}
		m := e.marketOutcomes[ev.MarketID]
		if m == nil {
			m = make(map[string]string, 2)
			e.marketOutcomes[ev.MarketID] = m
		}
		m[ev.Outcome] = ev.AssetID
	}
}

func (e *engine) position(key PositionKey) *Position {
	p, ok := e.res.Positions[key]
	if !ok {
		p = &Position{Key: key}
		e.res.Positions[key] = p
	}
	return p
}

func (e *engine) warn(kind WarningKind, key PositionKey, seq int64, detail string) {
	e.res.Warnings = append(e.res.Warnings, Warning{Kind: kind, Key: key, Seq: seq, Detail: detail})
}

func (e *engine) realize(ev event.Event, key PositionKey, amount decimal.Decimal) {
	e.res.Realized = append(e.res.Realized, RealizedEvent{
		Timestamp: ev.Timestamp,
		Key:       key,
		Kind:      ev.Kind,
		Amount:    amount,
	})
}

func (e *engine) applyBuy(ev event.Event) {
	value := ev.Quantity.Mul(ev.UnitPrice)
	p := e.position(PositionKey{MarketID: ev.MarketID, Outcome: ev.Outcome})
	if p.AssetID == "" {
		p.AssetID = ev.AssetID
	}
	p.blend(ev.Quantity, ev.UnitPrice)
	p.CashOut = p.CashOut.Add(value)

	e.res.CashFlow.BuyCost = e.res.CashFlow.BuyCost.Add(value)
	e.res.CashFlow.BuyVolumeTokens = e.res.CashFlow.BuyVolumeTokens.Add(ev.Quantity)
	if ev.MarketID != "" {
		e.res.boughtMarkets[ev.MarketID] = struct{}{}
	}
}

func (e *engine) applySell(ev event.Event) {
	value := ev.Quantity.Mul(ev.UnitPrice)
	e.res.CashFlow.SellRevenue = e.res.CashFlow.SellRevenue.Add(value)
	e.res.CashFlow.SellVolumeTokens = e.res.CashFlow.SellVolumeTokens.Add(ev.Quantity)

	key := PositionKey{MarketID: ev.MarketID, Outcome: ev.Outcome}
	p := e.position(key)
	if ev.Quantity.GreaterThan(p.Quantity) {
		e.warn(WarnOversell, key, ev.Seq, fmt.Sprintf("sell %s exceeds held %s", ev.Quantity, p.Quantity))
	}
	sold := p.reduce(ev.Quantity)
	if sold.IsZero() {
		return
	}
	realized := sold.Mul(ev.UnitPrice.Sub(p.AvgCost))
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.CashIn = p.CashIn.Add(sold.Mul(ev.UnitPrice))
	e.realize(ev, key, realized)
}

func (e *engine) applyRedeem(ev event.Event) {
	e.res.CashFlow.RedeemRevenue = e.res.CashFlow.RedeemRevenue.Add(ev.Cash)
	if ev.MarketID != "" {
		e.res.settledMarkets[ev.MarketID] = struct{}{}
	}

	res, known := e.oracle.Resolve(ev.MarketID)
	outcome := ev.Outcome
	if outcome == "" && known && res.Resolved {
		outcome = res.WinningOutcome
	}
	key := PositionKey{MarketID: ev.MarketID, Outcome: outcome}

	if !known || !res.Resolved {
		// Without a winning outcome there is no basis to close
		// against. RedeemRevenue already carries the cash; booking it
		// as realized too would overstate the stream by the basis.
		e.warn(WarnRedeemUnresolved, key, ev.Seq, "redeem on unresolved market")
		return
	}

	p, ok := e.res.Positions[key]
	if !ok || p.Quantity.IsZero() {
		e.warn(WarnRedeemUnmatched, key, ev.Seq, "redeem with no open position")
		return
	}

	// The effective settlement price is implied by the payout; for
	// winning outcomes it is 1.0 up to rounding dust.
	price := decimal.NewFromInt(1)
	if ev.Quantity.IsPositive() {
		price = ev.Cash.Div(ev.Quantity)
	}
	qty := ev.Quantity
	switch {
	case !qty.IsPositive():
		// Quantity missing on the row; close out what is held.
		qty = p.Quantity
	case qty.GreaterThan(p.Quantity):
		e.warn(WarnOversell, key, ev.Seq, fmt.Sprintf("redeem %s exceeds held %s", ev.Quantity, p.Quantity))
		qty = p.Quantity
	}
	p.Quantity = p.Quantity.Sub(qty)
	p.TotalSold = p.TotalSold.Add(qty)
	realized := qty.Mul(price.Sub(p.AvgCost))
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.CashIn = p.CashIn.Add(ev.Cash)
	e.realize(ev, key, realized)
}

// splitOutcomes returns the outcome labels a SPLIT or MERGE touches,
// in stable order. Labels learned from trades win; otherwise the
// canonical binary pair.
func (e *engine) splitOutcomes(marketID string) []string {
	if m := e.marketOutcomes[marketID]; len(m) >= 2 {
		out := make([]string, 0, len(m))
		for o := range m {
			out = append(out, o)
		}
		sort.Strings(out)
		return out
	}
	return []string{"Yes", "No"}
}

func (e *engine) applySplit(ev event.Event) {
	e.res.CashFlow.SplitCost = e.res.CashFlow.SplitCost.Add(ev.Cash)
	if !ev.Quantity.IsPositive() {
		return
	}

	outcomes := e.splitOutcomes(ev.MarketID)
	n := decimal.NewFromInt(int64(len(outcomes)))
	// Even split: each minted leg carries an equal share of the
	// collateral, so a $1 binary split books at 0.50 per side.
	legCost := ev.Cash.Div(n)
	legPrice := legCost.Div(ev.Quantity)

	for _, outcome := range outcomes {
		p := e.position(PositionKey{MarketID: ev.MarketID, Outcome: outcome})
		if p.AssetID == "" {
			p.AssetID = e.marketOutcomes[ev.MarketID][outcome]
		}
		p.blend(ev.Quantity, legPrice)
		p.CashOut = p.CashOut.Add(legCost)
	}
}

func (e *engine) applyMerge(ev event.Event) {
	e.res.CashFlow.MergeRevenue = e.res.CashFlow.MergeRevenue.Add(ev.Cash)
	if ev.MarketID != "" {
		e.res.settledMarkets[ev.MarketID] = struct{}{}
	}
	if !ev.Quantity.IsPositive() {
		return
	}

	outcomes := e.splitOutcomes(ev.MarketID)
	basis := decimal.Zero
	anyHeld := false
	for _, outcome := range outcomes {
		p, ok := e.res.Positions[outcome2key(ev.MarketID, outcome)]
		if !ok {
			continue
		}
		if p.Quantity.IsPositive() {
			anyHeld = true
		}
		basis = basis.Add(p.AvgCost)
		p.reduce(ev.Quantity)
		p.CashIn = p.CashIn.Add(ev.Cash.Div(decimal.NewFromInt(int64(len(outcomes)))))
	}

	key := PositionKey{MarketID: ev.MarketID, Outcome: outcomes[0]}
	if !anyHeld {
		e.warn(WarnMergeUnmatched, key, ev.Seq, "merge with no open positions")
		return
	}
	realized := ev.Cash.Sub(basis.Mul(ev.Quantity))
	// Attribute the combined realized amount to the first leg to keep
	// per-position totals summable.
	if p, ok := e.res.Positions[key]; ok {
		p.RealizedPnL = p.RealizedPnL.Add(realized)
	}
	e.realize(ev, key, realized)
}

func outcome2key(marketID, outcome string) PositionKey {
	return PositionKey{MarketID: marketID, Outcome: outcome}
}

func (e *engine) applyCashInflow(ev event.Event) {
	switch ev.Kind {
	case event.KindReward:
		e.res.CashFlow.RewardRevenue = e.res.CashFlow.RewardRevenue.Add(ev.Cash)
	case event.KindConversion:
		e.res.CashFlow.ConversionRevenue = e.res.CashFlow.ConversionRevenue.Add(ev.Cash)
	}
	e.realize(ev, PositionKey{MarketID: ev.MarketID}, ev.Cash)
}

func (e *engine) stampResolutions() {
	for _, p := range e.res.Positions {
		res, ok := e.oracle.Resolve(p.Key.MarketID)
		if !ok {
			continue
		}
		p.Resolved = res.Resolved
		p.WinningOutcome = res.WinningOutcome
		if !res.Resolved {
			p.MarkPrice = res.Mark(p.Key.Outcome)
		}
	}
}

func (e *engine) dropUntouched() {
	for key, p := range e.res.Positions {
		if !p.Touched() {
			delete(e.res.Positions, key)
		}
	}
}
