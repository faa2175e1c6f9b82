// Package event defines the typed financial event model that the replay
// engine folds over. Events are immutable values; the loader assigns an
// ingestion sequence so replay order is total and reproducible.
package event

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Event is one on-chain or API action touching a wallet's balance.
type Event struct {
	Wallet   string
	MarketID string // condition identifier
	Outcome  string // outcome label ("Yes"/"No")
	AssetID  string // outcome token identifier

	Kind      Kind
	Quantity  decimal.Decimal // shares, >= 0
	UnitPrice decimal.Decimal // per-share price, trades only (0 otherwise)
	Cash      decimal.Decimal // signed USDC effect; independently known for non-trades

	Timestamp int64  // seconds
	TxHash    string // dedup key
	Title     string // display only

	// Seq is the ingestion sequence assigned by the event store.
	// Secondary sort key after timestamp and kind rank.
	Seq int64
}

// CashValue returns the event's cash magnitude: quantity*unit_price for
// trades, the reported cash amount for everything else.
func (e Event) CashValue() decimal.Decimal {
	if e.Kind.IsTrade() {
		return e.Quantity.Mul(e.UnitPrice)
	}
	return e.Cash
}

// Time returns the event timestamp in UTC.
func (e Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

var (
	errNoWallet    = errors.New("event has no wallet")
	errBadKind     = errors.New("event has unknown kind")
	errNegativeQty = errors.New("event quantity is negative")
	errBadPrice    = errors.New("trade unit price outside [0, 1]")
)

// Validate rejects events the replay engine must not fold. A rejected
// event is counted and skipped; it never aborts the wallet's replay.
func (e Event) Validate() error {
	if e.Wallet == "" {
		return errNoWallet
	}
	if e.Kind == KindUnknown {
		return errBadKind
	}
	if e.Quantity.IsNegative() {
		return fmt.Errorf("%w: %s", errNegativeQty, e.Quantity)
	}
	if e.Kind.IsTrade() {
		if e.UnitPrice.IsNegative() || e.UnitPrice.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: %s", errBadPrice, e.UnitPrice)
		}
	}
	return nil
}

// Sort orders events into replay order: ascending timestamp, then kind
// rank, then (for same-second REDEEMs) cash descending so winning
// redemptions are applied before losing ones, then ingestion sequence.
// The ordering is total, so replay is deterministic for any input
// permutation.
func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if ra, rb := a.Kind.sortRank(), b.Kind.sortRank(); ra != rb {
			return ra < rb
		}
		if a.Kind == KindRedeem && b.Kind == KindRedeem {
			if c := a.Cash.Cmp(b.Cash); c != 0 {
				return c > 0
			}
		}
		return a.Seq < b.Seq
	})
}
