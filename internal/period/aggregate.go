package period

import (
	"sort"
	"time"

	"PolyLedger/internal/event"
	"PolyLedger/internal/replay"

	"github.com/shopspring/decimal"
)

// DailyPoint is one calendar day (UTC) with trading activity. The
// cumulative column carries all-time running PnL through the end of
// that day, so consumers can chart equity curves without re-summing.
type DailyPoint struct {
	Date          string          `json:"date"` // 2006-01-02
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	CumulativePnL decimal.Decimal `json:"cumulative_pnl"`
	Volume        decimal.Decimal `json:"volume"`
	EventCount    int             `json:"event_count"`
}

// MarketPnL is the per-market breakdown row.
type MarketPnL struct {
	MarketID      string          `json:"market_id"`
	Title         string          `json:"title,omitempty"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

// PositionSnapshot is the serializable view of an open position.
type PositionSnapshot struct {
	MarketID      string          `json:"market_id"`
	Outcome       string          `json:"outcome"`
	AssetID       string          `json:"asset_id,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Resolved      bool            `json:"resolved"`
}

// Result is the immutable answer to "what is this wallet's PnL for
// period P". It is what the cache stores and serves.
type Result struct {
	Wallet string `json:"wallet"`
	Period Period `json:"period"`
	Start  int64  `json:"start_ts,omitempty"`
	End    int64  `json:"end_ts"`

	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	ROI           decimal.Decimal `json:"roi"`

	Daily     []DailyPoint       `json:"daily"`
	ByMarket  []MarketPnL        `json:"by_market"`
	Positions []PositionSnapshot `json:"positions"`

	CashFlow replay.CashFlow `json:"cash_flow"`

	WarningCount   int     `json:"warning_count,omitempty"`
	MalformedCount int     `json:"malformed_count,omitempty"`
	Coverage       float64 `json:"coverage"`
	PartialData    bool    `json:"partial_data,omitempty"`

	ComputedAt int64 `json:"computed_at"`
}

// Options tunes display concerns of the aggregation.
type Options struct {
	// TopMarkets caps the per-market breakdown, 0 means unlimited.
	TopMarkets int
}

// Aggregate slices an all-time replay into one period. The replay must
// cover the wallet's full history; the window is applied by diffing
// cumulative realized PnL at the boundaries, never by re-replaying a
// truncated event set. The events slice is the same input the replay
// consumed and only feeds the per-day volume columns.
func Aggregate(wallet string, res *replay.Result, events []event.Event, p Period, now time.Time, opts Options) Result {
	return AggregateRange(wallet, res, events, p, p.Window(now), now, opts)
}

// AggregateRange is Aggregate for an explicit window.
func AggregateRange(wallet string, res *replay.Result, events []event.Event, p Period, rng Range, now time.Time, opts Options) Result {
	out := Result{
		Wallet:         wallet,
		Period:         p,
		End:            rng.End.Unix(),
		CashFlow:       res.CashFlow,
		WarningCount:   len(res.Warnings),
		MalformedCount: res.MalformedCount,
		Coverage:       res.Coverage(),
		PartialData:    res.PartialData,
		ComputedAt:     now.UTC().Unix(),
		RealizedPnL:    decimal.Zero,
		UnrealizedPnL:  decimal.Zero,
	}
	if !rng.Start.IsZero() {
		out.Start = rng.Start.Unix()
	}

	perMarket := make(map[string]*MarketPnL)
	for _, ev := range res.Realized {
		if !rng.Contains(ev.Timestamp) {
			continue
		}
		out.RealizedPnL = out.RealizedPnL.Add(ev.Amount)
		m := marketRow(perMarket, ev.Key.MarketID)
		m.RealizedPnL = m.RealizedPnL.Add(ev.Amount)
	}

	// Open exposure is only part of the answer when the window reaches
	// the present; a finished historical window has no "current" marks.
	includeOpen := rng.TouchesNow(now)
	for _, pos := range res.Positions {
		if includeOpen && !pos.IsFlat() {
			u := pos.UnrealizedPnL()
			out.UnrealizedPnL = out.UnrealizedPnL.Add(u)
			m := marketRow(perMarket, pos.Key.MarketID)
			m.UnrealizedPnL = m.UnrealizedPnL.Add(u)
			out.Positions = append(out.Positions, PositionSnapshot{
				MarketID:      pos.Key.MarketID,
				Outcome:       pos.Key.Outcome,
				AssetID:       pos.AssetID,
				Quantity:      pos.Quantity,
				AvgCost:       pos.AvgCost,
				MarkPrice:     pos.MarkPrice,
				UnrealizedPnL: u,
				Resolved:      pos.Resolved,
			})
		}
	}
	out.TotalPnL = out.RealizedPnL.Add(out.UnrealizedPnL)
	out.ROI = roi(out.TotalPnL, res.CashFlow.Outflows())

	for _, ev := range events {
		if ev.Title == "" {
			continue
		}
		if m, ok := perMarket[ev.MarketID]; ok && m.Title == "" {
			m.Title = ev.Title
		}
	}

	out.Daily = dailySeries(res, events, rng)
	out.ByMarket = marketBreakdown(perMarket, opts.TopMarkets)

	sort.Slice(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		return a.Outcome < b.Outcome
	})
	return out
}

func marketRow(perMarket map[string]*MarketPnL, marketID string) *MarketPnL {
	m, ok := perMarket[marketID]
	if !ok {
		m = &MarketPnL{MarketID: marketID}
		perMarket[marketID] = m
	}
	return m
}

func roi(pnl, invested decimal.Decimal) decimal.Decimal {
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return pnl.Div(invested).Mul(decimal.NewFromInt(100))
}

// dailySeries buckets the all-time realized stream by UTC day, carries
// a running cumulative through every day, then emits the window's days
// most recent first.
func dailySeries(res *replay.Result, events []event.Event, rng Range) []DailyPoint {
	type bucket struct {
		realized decimal.Decimal
		volume   decimal.Decimal
		count    int
	}
	buckets := make(map[string]*bucket)
	day := func(ts int64) string { return time.Unix(ts, 0).UTC().Format("2006-01-02") }
	get := func(d string) *bucket {
		b, ok := buckets[d]
		if !ok {
			b = &bucket{realized: decimal.Zero, volume: decimal.Zero}
			buckets[d] = b
		}
		return b
	}

	for _, ev := range res.Realized {
		b := get(day(ev.Timestamp))
		b.realized = b.realized.Add(ev.Amount)
	}
	for _, ev := range events {
		if ev.Validate() != nil {
			continue
		}
		b := get(day(ev.Timestamp))
		b.volume = b.volume.Add(ev.CashValue().Abs())
		b.count++
	}

	days := make([]string, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Strings(days)

	cumulative := decimal.Zero
	series := make([]DailyPoint, 0, len(days))
	for _, d := range days {
		b := buckets[d]
		cumulative = cumulative.Add(b.realized)
		midnight, _ := time.Parse("2006-01-02", d)
		if !rng.Contains(midnight.Unix()) && !rng.Contains(midnight.Add(23*time.Hour+59*time.Minute+59*time.Second).Unix()) {
			continue
		}
		series = append(series, DailyPoint{
			Date:          d,
			RealizedPnL:   b.realized,
			CumulativePnL: cumulative,
			Volume:        b.volume,
			EventCount:    b.count,
		})
	}

	// Most recent first.
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series
}

func marketBreakdown(perMarket map[string]*MarketPnL, topN int) []MarketPnL {
	rows := make([]MarketPnL, 0, len(perMarket))
	for _, m := range perMarket {
		m.TotalPnL = m.RealizedPnL.Add(m.UnrealizedPnL)
		rows = append(rows, *m)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].TotalPnL.Abs(), rows[j].TotalPnL.Abs()
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return rows[i].MarketID < rows[j].MarketID
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}
