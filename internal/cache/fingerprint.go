package cache

// Fingerprint summarizes the event set a period result was computed
// from. Counts and max ids are cheap aggregates the store can answer
// without scanning rows.
type Fingerprint struct {
	TradeCount    int64 `json:"trade_count"`
	MaxTradeID    int64 `json:"max_trade_id"`
	ActivityCount int64 `json:"activity_count"`
	MaxActivityID int64 `json:"max_activity_id"`
}

// Equal requires exact equality on all four components. A matching
// count with a different max id means rows were replaced, which is a
// change like any other.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// Empty reports whether the fingerprint describes no events at all.
func (f Fingerprint) Empty() bool {
	return f == Fingerprint{}
}
