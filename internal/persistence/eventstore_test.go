package persistence

import (
	"context"
	"testing"

	"PolyLedger/internal/event"
	"PolyLedger/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEventStoreRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := NewEventStore(db)
	events := []event.Event{
		{
			Wallet: "0xWallet", MarketID: "cond-1", Outcome: "Yes", AssetID: "a1",
			Kind: event.KindBuy, Quantity: dec("100"), UnitPrice: dec("0.40"),
			Timestamp: 1000, TxHash: "0xaaa", Title: "Test market",
		},
		{
			Wallet: "0xWallet", MarketID: "cond-1",
			Kind: event.KindRedeem, Quantity: dec("100"), Cash: dec("100"),
			Timestamp: 2000, TxHash: "0xbbb",
		},
	}
	if err := store.SaveEvents(ctx, events); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}
	// Saving the same batch again must be a no-op.
	if err := store.SaveEvents(ctx, events); err != nil {
		t.Fatalf("SaveEvents again: %v", err)
	}

	loaded, err := store.LoadEvents(ctx, "0xwallet")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %d, want 2 after dedup", len(loaded))
	}
	for _, ev := range loaded {
		if ev.Seq == 0 {
			t.Errorf("event %s has no ingestion sequence", ev.TxHash)
		}
	}

	fp, err := store.Fingerprint(ctx, "0xWallet")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fp.TradeCount != 1 || fp.ActivityCount != 1 {
		t.Errorf("fingerprint = %+v, want one trade, one activity", fp)
	}
	if fp.MaxTradeID == 0 || fp.MaxActivityID == 0 {
		t.Errorf("fingerprint = %+v, want non-zero max ids", fp)
	}

	ts, err := store.LatestTimestamp(ctx, "0xWallet")
	if err != nil {
		t.Fatalf("LatestTimestamp: %v", err)
	}
	if ts != 2000 {
		t.Errorf("latest ts = %d, want 2000", ts)
	}
}
