package period

import (
	"testing"
	"time"

	"PolyLedger/internal/event"
	"PolyLedger/internal/replay"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func ts(daysAgo int) int64 { return now.AddDate(0, 0, -daysAgo).Unix() }

func trade(kind event.Kind, market, outcome, qty, price string, at int64, seq int64) event.Event {
	return event.Event{
		Wallet:    "0xwallet",
		MarketID:  market,
		Outcome:   outcome,
		Kind:      kind,
		Quantity:  dec(qty),
		UnitPrice: dec(price),
		Timestamp: at,
		Seq:       seq,
	}
}

func TestAggregateUsesAllTimeCostBasis(t *testing.T) {
	// Entry 40 days ago, exit 2 days ago. A one-week window must still
	// price the exit against the 40-day-old entry.
	events := []event.Event{
		trade(event.KindBuy, "m1", "Yes", "100", "0.40", ts(40), 1),
		trade(event.KindSell, "m1", "Yes", "100", "0.70", ts(2), 2),
	}
	res := replay.Replay(events, replay.NilOracle{}, replay.Config{})

	week := Aggregate("0xwallet", res, events, Week, now, Options{})
	if got, want := week.RealizedPnL, dec("30"); !got.Equal(want) {
		t.Fatalf("week realized = %s, want %s", got, want)
	}

	// The entry itself realized nothing, so ALL matches the week.
	all := Aggregate("0xwallet", res, events, All, now, Options{})
	if got, want := all.RealizedPnL, dec("30"); !got.Equal(want) {
		t.Fatalf("all realized = %s, want %s", got, want)
	}
}

func TestAggregateExcludesClosedBeforeWindow(t *testing.T) {
	events := []event.Event{
		trade(event.KindBuy, "m1", "Yes", "10", "0.20", ts(60), 1),
		trade(event.KindSell, "m1", "Yes", "10", "0.90", ts(45), 2), // +7.00, outside 1M
		trade(event.KindBuy, "m2", "Yes", "10", "0.50", ts(10), 3),
		trade(event.KindSell, "m2", "Yes", "10", "0.60", ts(5), 4), // +1.00, inside
	}
	res := replay.Replay(events, replay.NilOracle{}, replay.Config{})

	month := Aggregate("0xwallet", res, events, Month, now, Options{})
	if got, want := month.RealizedPnL, dec("1"); !got.Equal(want) {
		t.Fatalf("month realized = %s, want %s", got, want)
	}
	all := Aggregate("0xwallet", res, events, All, now, Options{})
	if got, want := all.RealizedPnL, dec("8"); !got.Equal(want) {
		t.Fatalf("all realized = %s, want %s", got, want)
	}
}

func TestAggregateUnrealizedOnlyForCurrentWindows(t *testing.T) {
	events := []event.Event{
		trade(event.KindBuy, "m1", "Yes", "100", "0.40", ts(30), 1),
	}
	oracle := replay.StaticOracle{"m1": {
		Marks: map[string]decimal.Decimal{"Yes": dec("0.55")},
	}}
	res := replay.Replay(events, oracle, replay.Config{})

	all := Aggregate("0xwallet", res, events, All, now, Options{})
	if got, want := all.UnrealizedPnL, dec("15"); !got.Equal(want) {
		t.Fatalf("unrealized = %s, want %s", got, want)
	}
	if len(all.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(all.Positions))
	}

	past := Range{Start: now.AddDate(0, 0, -20), End: now.AddDate(0, 0, -10)}
	hist := AggregateRange("0xwallet", res, events, All, past, now, Options{})
	if !hist.UnrealizedPnL.IsZero() {
		t.Fatalf("historical unrealized = %s, want 0", hist.UnrealizedPnL)
	}
	if len(hist.Positions) != 0 {
		t.Fatalf("historical positions = %d, want none", len(hist.Positions))
	}
}

func TestDailySeriesMostRecentFirstWithCumulative(t *testing.T) {
	events := []event.Event{
		trade(event.KindBuy, "m1", "Yes", "10", "0.40", ts(3), 1),
		trade(event.KindSell, "m1", "Yes", "5", "0.60", ts(2), 2), // +1.00
		trade(event.KindSell, "m1", "Yes", "5", "0.80", ts(1), 3), // +2.00
	}
	res := replay.Replay(events, replay.NilOracle{}, replay.Config{})
	all := Aggregate("0xwallet", res, events, All, now, Options{})

	if len(all.Daily) != 3 {
		t.Fatalf("daily points = %d, want 3", len(all.Daily))
	}
	for i := 1; i < len(all.Daily); i++ {
		if all.Daily[i].Date >= all.Daily[i-1].Date {
			t.Fatalf("daily not most-recent-first: %s before %s", all.Daily[i-1].Date, all.Daily[i].Date)
		}
	}
	if got, want := all.Daily[0].CumulativePnL, dec("3"); !got.Equal(want) {
		t.Errorf("latest cumulative = %s, want %s", got, want)
	}
	if got, want := all.Daily[0].RealizedPnL, dec("2"); !got.Equal(want) {
		t.Errorf("latest day realized = %s, want %s", got, want)
	}
	if got, want := all.Daily[2].Volume, dec("4"); !got.Equal(want) {
		t.Errorf("entry day volume = %s, want %s", got, want)
	}
}

func TestMarketBreakdownSortedAndCapped(t *testing.T) {
	events := []event.Event{
		trade(event.KindBuy, "m1", "Yes", "10", "0.40", ts(9), 1),
		trade(event.KindSell, "m1", "Yes", "10", "0.50", ts(8), 2), // +1
		trade(event.KindBuy, "m2", "Yes", "10", "0.40", ts(7), 3),
		trade(event.KindSell, "m2", "Yes", "10", "0.90", ts(6), 4), // +5
		trade(event.KindBuy, "m3", "Yes", "10", "0.40", ts(5), 5),
		trade(event.KindSell, "m3", "Yes", "10", "0.10", ts(4), 6), // -3
	}
	res := replay.Replay(events, replay.NilOracle{}, replay.Config{})
	all := Aggregate("0xwallet", res, events, All, now, Options{TopMarkets: 2})

	if len(all.ByMarket) != 2 {
		t.Fatalf("markets = %d, want 2", len(all.ByMarket))
	}
	if all.ByMarket[0].MarketID != "m2" || all.ByMarket[1].MarketID != "m3" {
		t.Fatalf("order = [%s %s], want [m2 m3]", all.ByMarket[0].MarketID, all.ByMarket[1].MarketID)
	}
}

func TestPeriodParseAndWindow(t *testing.T) {
	cases := []struct {
		in   string
		want Period
	}{
		{"all", All}, {"1m", Month}, {"week", Week}, {"1D", Day}, {"", All},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := Parse("fortnight"); err == nil {
		t.Error("Parse(fortnight): want error")
	}

	w := Day.Window(now)
	if got, want := w.End.Sub(w.Start), 24*time.Hour; got != want {
		t.Errorf("day window = %v, want %v", got, want)
	}
	if !All.Window(now).Start.IsZero() {
		t.Error("all window should be unbounded")
	}
}
