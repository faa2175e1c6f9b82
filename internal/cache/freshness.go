package cache

import (
	"fmt"
	"time"
)

// DefaultTTL bounds how long an entry with an unchanged fingerprint is
// served without revalidation.
const DefaultTTL = 5 * time.Minute

// Freshness is the three-way read decision for a cached entry.
type Freshness int32

const (
	// Missing means no entry exists; the caller must compute inline.
	Missing Freshness = iota
	// Stale means an entry exists but its fingerprint or age disagrees
	// with the present; serve it, flag it, refresh in the background.
	Stale
	// Fresh means the entry matches the current event set and is
	// within TTL; serve as is.
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Missing:
		return "MISSING"
	case Stale:
		return "STALE"
	case Fresh:
		return "FRESH"
	default:
		return fmt.Sprintf("freshness(%d)", int32(f))
	}
}

// Evaluate is the single decision point for the read path. Both the
// cached entry and the current fingerprint are inputs, so the policy
// stays testable without a store or clock behind it.
func Evaluate(entry *Entry, current Fingerprint, now time.Time, ttl time.Duration) Freshness {
	if entry == nil {
		return Missing
	}
	if !entry.Fingerprint.Equal(current) {
		return Stale
	}
	if now.Sub(entry.ComputedAt()) >= ttl {
		return Stale
	}
	return Fresh
}
