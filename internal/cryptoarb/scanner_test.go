package cryptoarb

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
)

type fakeExchange struct {
	name    string
	fees    Fees
	symbols []string
	tickers map[string]*Ticker
	books   map[string]*OrderBook
	bookErr error
}

func (f *fakeExchange) Name() string { return f.name }
func (f *fakeExchange) Fees() Fees   { return f.fees }

func (f *fakeExchange) LoadMarkets(ctx context.Context) ([]string, error) {
	return f.symbols, nil
}

func (f *fakeExchange) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	t, ok := f.tickers[symbol]
	if !ok {
		return nil, errors.New("no ticker")
	}
	return t, nil
}

func (f *fakeExchange) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	b, ok := f.books[symbol]
	if !ok {
		return nil, errors.New("no book")
	}
	b.FetchedAt = time.Now()
	return b, nil
}

func tickerFor(symbol string, quoteVol float64) *Ticker {
	return &Ticker{Symbol: symbol, Last: 100, QuoteVolume24h: quoteVol}
}

func newTestScanner(t *testing.T, exchanges ...Exchange) (*Scanner, *bus.Bus) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	b := bus.New(&bus.Config{Logger: logger})

	return NewScanner(&ScannerConfig{
		Logger:              logger,
		Bus:                 b,
		Exchanges:           exchanges,
		ScanInterval:        time.Hour,
		MinProfitPct:        0.3,
		MaxPositionUSDC:     1000,
		MaxPositionPct:      0.1,
		MinVolumeUSDC:       100000,
		MaxVolumeUSDC:       10000000,
		Depth:               10,
		MaxBookAge:          30 * time.Second,
		StartingBalanceUSDC: 10000,
	}), b
}

func TestDiscoverIntersectsAndClassifies(t *testing.T) {
	a := &fakeExchange{
		name:    "coinbase",
		fees:    coinbaseFees,
		symbols: []string{"BTC/USD", "ETH/USD", "SOL/USD", "LOW/USD"},
		tickers: map[string]*Ticker{
			"BTC/USD": tickerFor("BTC/USD", 50_000_000),
			"ETH/USD": tickerFor("ETH/USD", 1_000_000),
			"LOW/USD": tickerFor("LOW/USD", 10),
		},
	}
	b := &fakeExchange{
		name:    "kraken",
		fees:    krakenFees,
		symbols: []string{"BTC/USD", "ETH/USD", "DOGE/USD", "LOW/USD"},
		tickers: map[string]*Ticker{
			"BTC/USD": tickerFor("BTC/USD", 40_000_000),
			"ETH/USD": tickerFor("ETH/USD", 2_000_000),
			"LOW/USD": tickerFor("LOW/USD", 10),
		},
	}

	s, _ := newTestScanner(t, a, b)
	s.discover(context.Background())

	if len(s.pairs) != 2 {
		t.Fatalf("pairs = %+v, want ETH sweet-spot then BTC high-volume", s.pairs)
	}
	if s.pairs[0].Symbol != "ETH/USD" || s.pairs[0].Class != SweetSpot {
		t.Errorf("pairs[0] = %+v", s.pairs[0])
	}
	if s.pairs[1].Symbol != "BTC/USD" || s.pairs[1].Class != HighVolume {
		t.Errorf("pairs[1] = %+v", s.pairs[1])
	}
}

func deepBook(symbol string, bid, ask float64) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   []PriceLevel{{Price: bid, Volume: 1000}},
		Asks:   []PriceLevel{{Price: ask, Volume: 1000}},
	}
}

func TestScanExecutesPaperTrade(t *testing.T) {
	buySide := &fakeExchange{
		name: "kraken",
		fees: krakenFees,
		books: map[string]*OrderBook{
			"ETH/USD": deepBook("ETH/USD", 99, 100),
		},
	}
	sellSide := &fakeExchange{
		name: "coinbase",
		fees: coinbaseFees,
		books: map[string]*OrderBook{
			"ETH/USD": deepBook("ETH/USD", 102, 103),
		},
	}

	s, eventBus := newTestScanner(t, buySide, sellSide)
	s.pairs = []Pair{{Symbol: "ETH/USD", Class: SweetSpot}}

	s.scan(context.Background())

	if len(s.opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(s.opportunities))
	}
	opp := s.opportunities[0]
	if opp.BuyExchange != "kraken" || opp.SellExchange != "coinbase" {
		t.Errorf("direction = buy %s sell %s", opp.BuyExchange, opp.SellExchange)
	}
	if math.Abs(opp.RawSpreadPct-2.0) > 1e-9 {
		t.Errorf("raw = %f, want 2", opp.RawSpreadPct)
	}
	// taker 0.26% + maker 0.4%, zero slippage at full depth.
	if math.Abs(opp.NetPct-(2.0-0.66)) > 1e-9 {
		t.Errorf("net = %f, want 1.34", opp.NetPct)
	}
	if opp.PositionUSDC != 1000 {
		t.Errorf("position = %f, want min(10000*0.1, 1000)", opp.PositionUSDC)
	}

	if len(s.trades) != 1 {
		t.Fatalf("trades = %d", len(s.trades))
	}
	trade := s.trades[0]
	buyFee := 1000 * 0.0026
	shares := (1000 - buyFee) / 100.0
	proceeds := shares * 102
	sellFee := proceeds * 0.004
	wantPnL := proceeds - sellFee - 1000
	if math.Abs(trade.PnLUSDC-wantPnL) > 1e-9 {
		t.Errorf("pnl = %f, want %f", trade.PnLUSDC, wantPnL)
	}
	if math.Abs(s.balance-(10000+wantPnL)) > 1e-9 {
		t.Errorf("balance = %f", s.balance)
	}

	topics := map[string]int{}
	for _, ev := range eventBus.History() {
		topics[ev.Type]++
	}
	for _, topic := range []string{"arb_scan_result", "arb_opportunity", "arb_trade", "arb_pnl", "arb_overview", "arb_exchange_health", "arb_top_pairs", "arb_quality_pairs"} {
		if topics[topic] == 0 {
			t.Errorf("missing bus topic %s (saw %v)", topic, topics)
		}
	}
}

func TestScanRejectsFeeEatenSpread(t *testing.T) {
	buySide := &fakeExchange{
		name:  "kraken",
		fees:  krakenFees,
		books: map[string]*OrderBook{"ETH/USD": deepBook("ETH/USD", 99, 100)},
	}
	sellSide := &fakeExchange{
		name:  "coinbase",
		fees:  coinbaseFees,
		books: map[string]*OrderBook{"ETH/USD": deepBook("ETH/USD", 100.2, 101)},
	}

	s, _ := newTestScanner(t, buySide, sellSide)
	s.pairs = []Pair{{Symbol: "ETH/USD", Class: SweetSpot}}

	s.scan(context.Background())

	if len(s.opportunities) != 0 || len(s.trades) != 0 {
		t.Errorf("fee-eaten spread traded: opps=%d trades=%d", len(s.opportunities), len(s.trades))
	}
}

func TestEvaluateRejectsTinyFill(t *testing.T) {
	buySide := &fakeExchange{name: "kraken", fees: krakenFees}
	sellSide := &fakeExchange{name: "coinbase", fees: coinbaseFees}
	s, _ := newTestScanner(t, buySide, sellSide)

	thin := &OrderBook{
		Symbol: "ETH/USD",
		Asks:   []PriceLevel{{Price: 100, Volume: 0.05}}, // 5 USDC of depth
		Bids:   []PriceLevel{{Price: 102, Volume: 0.05}},
	}

	if _, ok := s.evaluate("ETH/USD", buySide, thin, sellSide, thin); ok {
		t.Error("sub-$10 fill accepted")
	}
}

func TestExchangeHealthReflectsFetchFailures(t *testing.T) {
	healthy := &fakeExchange{
		name:  "kraken",
		fees:  krakenFees,
		books: map[string]*OrderBook{"ETH/USD": deepBook("ETH/USD", 99, 100)},
	}
	broken := &fakeExchange{
		name:    "coinbase",
		fees:    coinbaseFees,
		bookErr: errors.New("gateway timeout"),
	}

	s, eventBus := newTestScanner(t, healthy, broken)
	s.pairs = []Pair{{Symbol: "ETH/USD", Class: SweetSpot}}

	s.scan(context.Background())

	var health map[string]bool
	for _, ev := range eventBus.History() {
		if ev.Type == "arb_exchange_health" {
			health = ev.Data.(map[string]bool)
		}
	}
	if health == nil {
		t.Fatal("no arb_exchange_health event")
	}
	if !health["kraken"] || health["coinbase"] {
		t.Errorf("health = %v", health)
	}
}
