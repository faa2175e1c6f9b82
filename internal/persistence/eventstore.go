package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"PolyLedger/internal/cache"
	"PolyLedger/internal/event"

	"github.com/shopspring/decimal"
)

// EventStore persists the raw event log in Postgres, trades and
// non-trade activities in separate tables so the cache fingerprint can
// track them independently.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// SaveEvents upserts a fetched batch. Rows carry a uniqueness key on
// (wallet, tx hash, asset, side/kind) so refetching an overlapping
// window is harmless.
func (s *EventStore) SaveEvents(ctx context.Context, events []event.Event) error {
	var trades, activities []event.Event
	for _, ev := range events {
		if ev.Kind.IsTrade() {
			trades = append(trades, ev)
		} else {
			activities = append(activities, ev)
		}
	}
	if err := s.saveTrades(ctx, trades); err != nil {
		return err
	}
	return s.saveActivities(ctx, activities)
}

func (s *EventStore) saveTrades(ctx context.Context, trades []event.Event) error {
	if len(trades) == 0 {
		return nil
	}

	query := `INSERT INTO wallet_trades
		(wallet, market_id, outcome, asset_id, side, quantity, price, ts, tx_hash, title)
		VALUES `

	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*10)
	for i, t := range trades {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			strings.ToLower(t.Wallet), t.MarketID, t.Outcome, t.AssetID,
			t.Kind.String(), t.Quantity.String(), t.UnitPrice.String(),
			t.Timestamp, t.TxHash, t.Title,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (wallet, tx_hash, asset_id, side) DO NOTHING"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}
	return nil
}

func (s *EventStore) saveActivities(ctx context.Context, activities []event.Event) error {
	if len(activities) == 0 {
		return nil
	}

	query := `INSERT INTO wallet_activities
		(wallet, market_id, outcome, kind, quantity, usdc_amount, ts, tx_hash, title)
		VALUES `

	values := make([]string, 0, len(activities))
	args := make([]interface{}, 0, len(activities)*9)
	for i, a := range activities {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			strings.ToLower(a.Wallet), a.MarketID, a.Outcome, a.Kind.String(),
			a.Quantity.String(), a.Cash.String(), a.Timestamp, a.TxHash, a.Title,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (wallet, tx_hash, kind, market_id) DO NOTHING"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save activities: %w", err)
	}
	return nil
}

// LoadEvents returns the wallet's full stored history. Row ids become
// the ingestion sequence used as the replay tie-break.
func (s *EventStore) LoadEvents(ctx context.Context, wallet string) ([]event.Event, error) {
	wallet = strings.ToLower(wallet)
	var events []event.Event

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, outcome, asset_id, side, quantity, price, ts, tx_hash, title
		FROM wallet_trades WHERE wallet = $1`, wallet)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ev            event.Event
			side, qty, px string
		)
		ev.Wallet = wallet
		if err := rows.Scan(&ev.Seq, &ev.MarketID, &ev.Outcome, &ev.AssetID,
			&side, &qty, &px, &ev.Timestamp, &ev.TxHash, &ev.Title); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		kind, err := event.ParseKind(side)
		if err != nil {
			continue
		}
		ev.Kind = kind
		ev.Quantity = mustDecimal(qty)
		ev.UnitPrice = mustDecimal(px)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, outcome, kind, quantity, usdc_amount, ts, tx_hash, title
		FROM wallet_activities WHERE wallet = $1`, wallet)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var (
			ev              event.Event
			kindStr, q, usd string
		)
		ev.Wallet = wallet
		if err := arows.Scan(&ev.Seq, &ev.MarketID, &ev.Outcome, &kindStr,
			&q, &usd, &ev.Timestamp, &ev.TxHash, &ev.Title); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		kind, err := event.ParseKind(kindStr)
		if err != nil {
			continue
		}
		ev.Kind = kind
		ev.Quantity = mustDecimal(q)
		ev.Cash = mustDecimal(usd)
		events = append(events, ev)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Fingerprint computes the cheap change detector over both tables.
func (s *EventStore) Fingerprint(ctx context.Context, wallet string) (cache.Fingerprint, error) {
	wallet = strings.ToLower(wallet)
	var fp cache.Fingerprint

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(id), 0) FROM wallet_trades WHERE wallet = $1`,
		wallet).Scan(&fp.TradeCount, &fp.MaxTradeID)
	if err != nil {
		return cache.Fingerprint{}, fmt.Errorf("trade fingerprint: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(id), 0) FROM wallet_activities WHERE wallet = $1`,
		wallet).Scan(&fp.ActivityCount, &fp.MaxActivityID)
	if err != nil {
		return cache.Fingerprint{}, fmt.Errorf("activity fingerprint: %w", err)
	}

	return fp, nil
}

// LatestTimestamp returns the newest stored event time for the wallet,
// 0 when empty. Incremental fetches resume from here.
func (s *EventStore) LatestTimestamp(ctx context.Context, wallet string) (int64, error) {
	wallet = strings.ToLower(wallet)
	var ts int64
	err := s.db.QueryRowContext(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT MAX(ts) FROM wallet_trades WHERE wallet = $1), 0),
			COALESCE((SELECT MAX(ts) FROM wallet_activities WHERE wallet = $1), 0)
		)`, wallet).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("latest timestamp: %w", err)
	}
	return ts, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
