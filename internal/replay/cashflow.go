package replay

import "github.com/shopspring/decimal"

// CashFlow is the flat decomposition of wallet cash movement by event
// kind, accumulated from raw events during the fold. The slippage
// simulator perturbs these totals directly, so they are kept as a
// first-class result rather than re-derived from positions.
type CashFlow struct {
	BuyCost           decimal.Decimal
	SellRevenue       decimal.Decimal
	RedeemRevenue     decimal.Decimal
	SplitCost         decimal.Decimal
	MergeRevenue      decimal.Decimal
	RewardRevenue     decimal.Decimal
	ConversionRevenue decimal.Decimal

	// Token volumes back the points-mode slippage calculation.
	BuyVolumeTokens  decimal.Decimal
	SellVolumeTokens decimal.Decimal
}

// Inflows is everything the wallet received.
func (c CashFlow) Inflows() decimal.Decimal {
	return c.SellRevenue.
		Add(c.RedeemRevenue).
		Add(c.MergeRevenue).
		Add(c.RewardRevenue).
		Add(c.ConversionRevenue)
}

// Outflows is everything the wallet spent.
func (c CashFlow) Outflows() decimal.Decimal {
	return c.BuyCost.Add(c.SplitCost)
}

// PnL is net cash movement, inflows minus outflows.
func (c CashFlow) PnL() decimal.Decimal {
	return c.Inflows().Sub(c.Outflows())
}
