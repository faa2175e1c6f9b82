package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"PolyLedger/internal/event"

	"github.com/shopspring/decimal"
)

const pageLimit = 500

// rawActivity mirrors the /activity wire shape. Numbers arrive in
// mixed representations, so everything lands as json.Number first.
type rawActivity struct {
	ProxyWallet     string      `json:"proxyWallet"`
	Timestamp       json.Number `json:"timestamp"`
	ConditionID     string      `json:"conditionId"`
	Type            string      `json:"type"`
	Size            json.Number `json:"size"`
	USDCSize        json.Number `json:"usdcSize"`
	Price           json.Number `json:"price"`
	Asset           string      `json:"asset"`
	Side            string      `json:"side"`
	Outcome         string      `json:"outcome"`
	Title           string      `json:"title"`
	TransactionHash string      `json:"transactionHash"`
}

// FetchEvents pulls the wallet's history one category at a time,
// paginating backward from before. Failed categories are recorded and
// skipped; the caller decides whether partial data is acceptable.
func (c *Client) FetchEvents(ctx context.Context, wallet string, after, before int64) (*Result, error) {
	if before <= 0 {
		before = time.Now().Unix()
	}
	res := &Result{Errors: make(map[Category]error)}
	seen := make(map[string]struct{})

	for _, category := range Categories() {
		events, err := c.fetchCategory(ctx, wallet, category, after, before, seen)
		if err != nil {
			c.log.Warn().Err(err).Str("wallet", wallet).Str("category", string(category)).Msg("category fetch failed")
			res.Errors[category] = err
			continue
		}
		res.Events = append(res.Events, events...)
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

// fetchCategory walks one category backward in time. The cursor moves
// to one second before the oldest row of each batch, so consecutive
// windows neither overlap nor leave a gap.
func (c *Client) fetchCategory(ctx context.Context, wallet string, category Category, after, before int64, seen map[string]struct{}) ([]event.Event, error) {
	var out []event.Event
	cursor := before

	for cursor > after {
		batch, err := c.fetchPage(ctx, wallet, category, after, cursor)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		oldest := cursor
		for _, raw := range batch {
			ts, _ := raw.Timestamp.Int64()
			if ts < oldest {
				oldest = ts
			}
			ev, ok := c.mapActivity(raw, wallet)
			if !ok {
				continue
			}
			key := ev.TxHash + "|" + string(category) + "|" + ev.AssetID
			if _, dup := seen[key]; dup && ev.TxHash != "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ev)
		}

		if len(batch) < pageLimit {
			break
		}
		cursor = oldest - 1
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, wallet string, category Category, after, before int64) ([]rawActivity, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("type", string(category))
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("end", strconv.FormatInt(before, 10))
	if after > 0 {
		params.Set("start", strconv.FormatInt(after, 10))
	}
	endpoint := fmt.Sprintf("%s/activity?%s", c.baseURL, params.Encode())

	var batch []rawActivity
	err := c.get(ctx, endpoint, func(r io.Reader) error {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		return dec.Decode(&batch)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// mapActivity converts one wire row to the internal event shape.
// Unparseable rows are dropped here; the replay engine counts its own
// malformed events, this guards the wire boundary.
func (c *Client) mapActivity(raw rawActivity, wallet string) (event.Event, bool) {
	ts, err := raw.Timestamp.Int64()
	if err != nil || ts <= 0 {
		return event.Event{}, false
	}

	kind := event.KindUnknown
	switch Category(raw.Type) {
	case CategoryTrade:
		switch raw.Side {
		case "BUY":
			kind = event.KindBuy
		case "SELL":
			kind = event.KindSell
		default:
			return event.Event{}, false
		}
	default:
		k, err := event.ParseKind(raw.Type)
		if err != nil {
			return event.Event{}, false
		}
		kind = k
	}

	ev := event.Event{
		Wallet:    wallet,
		MarketID:  raw.ConditionID,
		Outcome:   raw.Outcome,
		AssetID:   raw.Asset,
		Kind:      kind,
		Quantity:  parseDecimal(raw.Size),
		Cash:      parseDecimal(raw.USDCSize),
		Timestamp: ts,
		TxHash:    raw.TransactionHash,
		Title:     raw.Title,
	}
	if kind.IsTrade() {
		ev.UnitPrice = parseDecimal(raw.Price)
		ev.Cash = ev.Quantity.Mul(ev.UnitPrice)
	}
	return ev, true
}

func parseDecimal(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
