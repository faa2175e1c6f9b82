package fetch

import (
	"context"
	"sort"

	"PolyLedger/internal/event"
)

// Category is one server-side activity type fetched independently. A
// failure in one category never discards the others.
type Category string

const (
	CategoryTrade      Category = "TRADE"
	CategorySplit      Category = "SPLIT"
	CategoryMerge      Category = "MERGE"
	CategoryRedeem     Category = "REDEEM"
	CategoryReward     Category = "REWARD"
	CategoryConversion Category = "CONVERSION"
)

// Categories lists every category a full fetch covers.
func Categories() []Category {
	return []Category{
		CategoryTrade,
		CategorySplit,
		CategoryMerge,
		CategoryRedeem,
		CategoryReward,
		CategoryConversion,
	}
}

// Result carries the fetched events plus per-category failures.
// Callers must check Partial before presenting derived numbers as
// complete.
type Result struct {
	Events []event.Event
	Errors map[Category]error
}

// Partial reports whether any category failed to fetch.
func (r *Result) Partial() bool {
	return len(r.Errors) > 0
}

// FailedCategories lists the categories that errored, sorted for
// stable logging.
func (r *Result) FailedCategories() []Category {
	out := make([]Category, 0, len(r.Errors))
	for c := range r.Errors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fetcher supplies a wallet's event stream for a time window. A zero
// after means the beginning of history, a zero before means now.
type Fetcher interface {
	FetchEvents(ctx context.Context, wallet string, after, before int64) (*Result, error)
}
