package cryptoarb

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
)

func newTestFetcher(t *testing.T) *fetch.Client {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return fetch.New(&fetch.Config{Logger: logger, Timeout: 2 * time.Second, BaseDelay: time.Millisecond})
}

func TestCoinbaseLoadMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"id":"BTC-USD","base_currency":"BTC","quote_currency":"USD","status":"online","trading_disabled":false},
			{"id":"ETH-USD","base_currency":"ETH","quote_currency":"USD","status":"online","trading_disabled":true},
			{"id":"OLD-USD","base_currency":"OLD","quote_currency":"USD","status":"delisted","trading_disabled":false}
		]`))
	}))
	defer srv.Close()

	cb := NewCoinbase(zap.NewNop(), newTestFetcher(t), srv.URL)

	symbols, err := cb.LoadMarkets(context.Background())
	if err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "BTC/USD" {
		t.Errorf("symbols = %v, want [BTC/USD]", symbols)
	}
}

func TestCoinbaseFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/BTC-USD/stats" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"volume":"1500.5","last":"60000"}`))
	}))
	defer srv.Close()

	cb := NewCoinbase(zap.NewNop(), newTestFetcher(t), srv.URL)

	ticker, err := cb.FetchTicker(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("FetchTicker: %v", err)
	}
	if ticker.Last != 60000 {
		t.Errorf("last = %f", ticker.Last)
	}
	if math.Abs(ticker.QuoteVolume24h-1500.5*60000) > 1e-6 {
		t.Errorf("quote volume = %f", ticker.QuoteVolume24h)
	}
}

func TestCoinbaseFetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/BTC-USD/book" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("level") != "2" {
			t.Errorf("level = %q, want 2", r.URL.Query().Get("level"))
		}
		w.Write([]byte(`{
			"bids": [["59990","1.5",3],["59980","2",1],["59970","4",2]],
			"asks": [["60010","0.5",1],["60020","3",4],["60030","1",1]]
		}`))
	}))
	defer srv.Close()

	cb := NewCoinbase(zap.NewNop(), newTestFetcher(t), srv.URL)

	book, err := cb.FetchOrderBook(context.Background(), "BTC/USD", 2)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("depth not applied: %d bids %d asks", len(book.Bids), len(book.Asks))
	}
	if book.BestBid() != 59990 || book.BestAsk() != 60010 {
		t.Errorf("best bid/ask = %f/%f", book.BestBid(), book.BestAsk())
	}
	if book.Bids[0].Volume != 1.5 {
		t.Errorf("bid volume = %f", book.Bids[0].Volume)
	}
	if book.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestParseLevelsMixedTypes(t *testing.T) {
	rows := [][]interface{}{
		{"0.5", 100.0},
		{0.6, "200"},
		{"bad", "1"},
		{"0.7"},
	}

	levels := parseLevels(rows, 10)
	if len(levels) != 2 {
		t.Fatalf("levels = %+v", levels)
	}
	if levels[0].Price != 0.5 || levels[0].Volume != 100 {
		t.Errorf("levels[0] = %+v", levels[0])
	}
	if levels[1].Price != 0.6 || levels[1].Volume != 200 {
		t.Errorf("levels[1] = %+v", levels[1])
	}
}
