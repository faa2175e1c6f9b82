package event

import "fmt"

// Kind discriminates the seven financial event kinds.
type Kind int32

const (
	KindUnknown Kind = iota
	KindBuy
	KindSell
	KindRedeem
	KindSplit
	KindMerge
	KindReward
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "BUY"
	case KindSell:
		return "SELL"
	case KindRedeem:
		return "REDEEM"
	case KindSplit:
		return "SPLIT"
	case KindMerge:
		return "MERGE"
	case KindReward:
		return "REWARD"
	case KindConversion:
		return "CONVERSION"
	default:
		return "Unknown"
	}
}

// ParseKind converts an upstream activity-type tag into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "BUY":
		return KindBuy, nil
	case "SELL":
		return KindSell, nil
	case "REDEEM":
		return KindRedeem, nil
	case "SPLIT":
		return KindSplit, nil
	case "MERGE":
		return KindMerge, nil
	case "REWARD":
		return KindReward, nil
	case "CONVERSION":
		return KindConversion, nil
	default:
		return KindUnknown, fmt.Errorf("unknown event kind: %q", s)
	}
}

// IsTrade reports whether the kind is a market execution (BUY/SELL).
// Only trade kinds derive their cash effect from quantity*unit_price;
// every other kind carries an independently known cash_amount.
func (k Kind) IsTrade() bool {
	return k == KindBuy || k == KindSell
}

// sortRank orders kinds within one timestamp so cost basis is
// established (BUY, SPLIT) before it is consumed (SELL, MERGE, REDEEM)
// in the same second.
func (k Kind) sortRank() int {
	switch k {
	case KindBuy:
		return 0
	case KindSplit:
		return 1
	case KindSell:
		return 2
	case KindMerge:
		return 3
	case KindRedeem:
		return 4
	case KindReward:
		return 5
	case KindConversion:
		return 6
	default:
		return 9
	}
}
