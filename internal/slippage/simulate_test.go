package slippage

import (
	"testing"

	"PolyLedger/internal/replay"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSimulatePercentage(t *testing.T) {
	cf := replay.CashFlow{
		BuyCost:     dec("1000"),
		SellRevenue: dec("1200"),
	}
	out := Simulate(cf, Spec{Mode: Percentage, Levels: []decimal.Decimal{dec("1")}})

	if got, want := out.BasePnL, dec("200"); !got.Equal(want) {
		t.Fatalf("base pnl = %s, want %s", got, want)
	}
	sc := out.Scenarios[0]
	if got, want := sc.BuyCost, dec("1010"); !got.Equal(want) {
		t.Errorf("buy cost = %s, want %s", got, want)
	}
	if got, want := sc.SellRevenue, dec("1188"); !got.Equal(want) {
		t.Errorf("sell revenue = %s, want %s", got, want)
	}
	if got, want := sc.PnL, dec("178"); !got.Equal(want) {
		t.Errorf("pnl = %s, want %s", got, want)
	}
}

func TestSimulateZeroIsNeutral(t *testing.T) {
	cf := replay.CashFlow{
		BuyCost:           dec("500"),
		SellRevenue:       dec("300"),
		RedeemRevenue:     dec("250"),
		SplitCost:         dec("40"),
		MergeRevenue:      dec("30"),
		RewardRevenue:     dec("5"),
		ConversionRevenue: dec("2"),
		BuyVolumeTokens:   dec("900"),
		SellVolumeTokens:  dec("400"),
	}
	for _, mode := range []Mode{Percentage, Points} {
		out := Simulate(cf, Spec{Mode: mode, Levels: []decimal.Decimal{decimal.Zero}})
		if got, want := out.Scenarios[0].PnL, cf.PnL(); !got.Equal(want) {
			t.Errorf("%s: pnl at zero = %s, want %s", mode, got, want)
		}
	}
}

func TestSimulatePointsUsesTokenVolume(t *testing.T) {
	cf := replay.CashFlow{
		BuyCost:          dec("100"),
		SellRevenue:      dec("150"),
		BuyVolumeTokens:  dec("200"),
		SellVolumeTokens: dec("200"),
	}
	out := Simulate(cf, Spec{Mode: Points, Levels: []decimal.Decimal{dec("0.05")}})

	sc := out.Scenarios[0]
	if got, want := sc.BuyCost, dec("110"); !got.Equal(want) {
		t.Errorf("buy cost = %s, want %s", got, want)
	}
	if got, want := sc.SellRevenue, dec("140"); !got.Equal(want) {
		t.Errorf("sell revenue = %s, want %s", got, want)
	}
	if got, want := sc.PnL, dec("30"); !got.Equal(want) {
		t.Errorf("pnl = %s, want %s", got, want)
	}
}

func TestSimulateSettlementsNeverPerturbed(t *testing.T) {
	cf := replay.CashFlow{
		RedeemRevenue:     dec("100"),
		MergeRevenue:      dec("50"),
		RewardRevenue:     dec("10"),
		ConversionRevenue: dec("5"),
		SplitCost:         dec("60"),
	}
	out := Simulate(cf, Spec{Mode: Percentage, Levels: []decimal.Decimal{dec("5")}})
	if got, want := out.Scenarios[0].PnL, dec("105"); !got.Equal(want) {
		t.Fatalf("pnl = %s, want %s unchanged at any level", got, want)
	}
}

func TestVerdictThresholds(t *testing.T) {
	profitable := replay.CashFlow{BuyCost: dec("100"), SellRevenue: dec("200")}

	cases := []struct {
		name   string
		cf     replay.CashFlow
		spec   Spec
		want   Verdict
		viable string
	}{
		{"percentage wide edge", profitable, DefaultPercentages(), Recommended, "5"},
		{"points wide edge", replay.CashFlow{
			BuyCost: dec("100"), SellRevenue: dec("200"),
			BuyVolumeTokens: dec("100"), SellVolumeTokens: dec("100"),
		}, DefaultPoints(), Recommended, "0.1"},
		{"no edge", replay.CashFlow{BuyCost: dec("200"), SellRevenue: dec("100")},
			DefaultPercentages(), NotRecommended, "0"},
	}
	for _, c := range cases {
		out := Simulate(c.cf, c.spec)
		if out.Verdict != c.want {
			t.Errorf("%s: verdict = %s, want %s", c.name, out.Verdict, c.want)
		}
		if !out.MaxViable.Equal(dec(c.viable)) {
			t.Errorf("%s: max viable = %s, want %s", c.name, out.MaxViable, c.viable)
		}
	}

	// A thin edge surviving only the smallest level grades RISKY.
	thin := replay.CashFlow{BuyCost: dec("1000"), SellRevenue: dec("1012")}
	out := Simulate(thin, DefaultPercentages())
	if out.Verdict != Risky {
		t.Errorf("thin edge: verdict = %s, want %s", out.Verdict, Risky)
	}
}
