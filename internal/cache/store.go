package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PolyLedger/internal/period"
)

// Entry is one cached period result plus the fingerprint of the event
// set that produced it. Entries are replaced whole, never patched.
type Entry struct {
	Wallet         string        `json:"wallet"`
	Period         period.Period `json:"period"`
	Result         period.Result `json:"result"`
	Fingerprint    Fingerprint   `json:"fingerprint"`
	ComputedAtUnix int64         `json:"computed_at"`
}

func (e *Entry) ComputedAt() time.Time {
	return time.Unix(e.ComputedAtUnix, 0).UTC()
}

// Store persists period results keyed by (wallet, period).
//
// Get returns (nil, nil) on a clean miss; errors are reserved for
// store faults. PutAll must land the batch atomically so readers never
// mix periods computed from different event snapshots.
type Store interface {
	Get(ctx context.Context, wallet string, p period.Period) (*Entry, error)
	PutAll(ctx context.Context, entries []*Entry) error
}

const keyPrefix = "polyledger"

// resultKey builds the namespaced storage key, e.g.
// "polyledger:pnl:0xabc:1w". Wallet addresses are lowercased so mixed
// checksum casing cannot fork entries.
func resultKey(wallet string, p period.Period) string {
	return fmt.Sprintf("%s:pnl:%s:%s", keyPrefix, strings.ToLower(wallet), p)
}
