package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"PolyLedger/internal/event"

	"github.com/rs/zerolog"
)

func row(typ, side string, ts int64, tx string) map[string]any {
	return map[string]any{
		"proxyWallet":     "0xwallet",
		"timestamp":       ts,
		"conditionId":     "cond-1",
		"type":            typ,
		"size":            "10",
		"usdcSize":        "4",
		"price":           "0.4",
		"asset":           "asset-1",
		"side":            side,
		"outcome":         "Yes",
		"title":           "Test market",
		"transactionHash": tx,
	}
}

func TestFetchEventsPaginatesBackward(t *testing.T) {
	// First page returns exactly pageLimit rows with oldest ts 1000, so
	// the client must come back with end=999.
	var ends []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "TRADE" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		end, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		ends = append(ends, end)

		if len(ends) == 1 {
			rows := make([]map[string]any, pageLimit)
			for i := range rows {
				rows[i] = row("TRADE", "BUY", int64(1000+i), fmt.Sprintf("0xtx%d", i))
			}
			json.NewEncoder(w).Encode(rows)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			row("TRADE", "SELL", 500, "0xold"),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	res, err := c.FetchEvents(context.Background(), "0xwallet", 0, 5000)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if res.Partial() {
		t.Fatalf("partial = true, errors %v", res.Errors)
	}
	if got, want := len(res.Events), pageLimit+1; got != want {
		t.Fatalf("events = %d, want %d", got, want)
	}
	if len(ends) != 2 {
		t.Fatalf("trade pages = %d, want 2", len(ends))
	}
	if got, want := ends[1], int64(999); got != want {
		t.Fatalf("second cursor = %d, want %d", got, want)
	}
}

func TestFetchEventsPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "REDEEM":
			http.Error(w, "boom", http.StatusBadRequest)
		case "TRADE":
			json.NewEncoder(w).Encode([]map[string]any{row("TRADE", "BUY", 100, "0xtx1")})
		default:
			json.NewEncoder(w).Encode([]any{})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	res, err := c.FetchEvents(context.Background(), "0xwallet", 0, 5000)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if !res.Partial() {
		t.Fatal("partial = false, want true")
	}
	if got := res.FailedCategories(); len(got) != 1 || got[0] != CategoryRedeem {
		t.Fatalf("failed categories = %v, want [REDEEM]", got)
	}
	if len(res.Events) != 1 {
		t.Fatalf("events = %d, want trade category preserved", len(res.Events))
	}
}

func TestFetchEventsDedupsByTxHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "SPLIT" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			row("SPLIT", "", 100, "0xsame"),
			row("SPLIT", "", 100, "0xsame"),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	res, err := c.FetchEvents(context.Background(), "0xwallet", 0, 5000)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("events = %d, want duplicates collapsed", len(res.Events))
	}
	if res.Events[0].Kind != event.KindSplit {
		t.Fatalf("kind = %v, want SPLIT", res.Events[0].Kind)
	}
}

func TestMapActivityTradeSides(t *testing.T) {
	c := NewClient("", zerolog.Nop())

	buy := rawActivity{Type: "TRADE", Side: "BUY", Timestamp: "100", Size: "10", Price: "0.4"}
	ev, ok := c.mapActivity(buy, "0xwallet")
	if !ok || ev.Kind != event.KindBuy {
		t.Fatalf("buy mapped to %v ok=%v", ev.Kind, ok)
	}
	if got, want := ev.CashValue().String(), "4"; got != want {
		t.Errorf("cash value = %s, want %s", got, want)
	}

	bad := rawActivity{Type: "TRADE", Side: "HOLD", Timestamp: "100"}
	if _, ok := c.mapActivity(bad, "0xwallet"); ok {
		t.Error("unknown side should be dropped")
	}

	noTime := rawActivity{Type: "REWARD", USDCSize: "5"}
	if _, ok := c.mapActivity(noTime, "0xwallet"); ok {
		t.Error("missing timestamp should be dropped")
	}
}
