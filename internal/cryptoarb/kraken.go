package cryptoarb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
)

const defaultKrakenURL = "https://api.kraken.com"

// Default Kraken fee tier.
var krakenFees = Fees{Taker: 0.0026, Maker: 0.0016}

// krakenRenames maps Kraken's legacy asset codes to common symbols.
var krakenRenames = map[string]string{
	"XBT": "BTC",
	"XDG": "DOGE",
}

// Kraken is the Kraken public REST client.
type Kraken struct {
	logger  *zap.Logger
	fetcher *fetch.Client
	baseURL string

	mu sync.Mutex
	// pairIDs maps normalized symbols to Kraken pair identifiers.
	pairIDs map[string]string
}

// NewKraken creates a Kraken client.
func NewKraken(logger *zap.Logger, fetcher *fetch.Client, baseURL string) *Kraken {
	if baseURL == "" {
		baseURL = defaultKrakenURL
	}
	return &Kraken{
		logger:  logger,
		fetcher: fetcher,
		baseURL: baseURL,
		pairIDs: make(map[string]string),
	}
}

var _ Exchange = (*Kraken)(nil)

func (k *Kraken) Name() string { return "kraken" }

func (k *Kraken) Fees() Fees { return krakenFees }

type krakenPairsResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		WSName string `json:"wsname"`
		Status string `json:"status"`
	} `json:"result"`
}

// LoadMarkets lists online pairs, renaming legacy asset codes so symbols
// line up with other venues.
func (k *Kraken) LoadMarkets(ctx context.Context) ([]string, error) {
	var payload krakenPairsResponse
	err := k.fetcher.GetJSON(ctx, k.baseURL+"/0/public/AssetPairs", nil, nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("kraken asset pairs: %w", err)
	}
	if len(payload.Error) > 0 {
		return nil, fmt.Errorf("kraken asset pairs: %s", strings.Join(payload.Error, "; "))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	symbols := make([]string, 0, len(payload.Result))
	for pairID, pair := range payload.Result {
		if pair.Status != "online" || !strings.Contains(pair.WSName, "/") {
			continue
		}
		symbol := normalizeKrakenSymbol(pair.WSName)
		k.pairIDs[symbol] = pairID
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

type krakenTickerResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		V []string `json:"v"` // volume (today, last 24h)
		P []string `json:"p"` // VWAP (today, last 24h)
		C []string `json:"c"` // last trade (price, lot volume)
	} `json:"result"`
}

// FetchTicker reads 24h stats; quote volume is 24h base volume times the 24h
// VWAP.
func (k *Kraken) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	pairID, err := k.pairID(symbol)
	if err != nil {
		return nil, err
	}

	var payload krakenTickerResponse
	err = k.fetcher.GetJSON(ctx, k.baseURL+"/0/public/Ticker",
		map[string]string{"pair": pairID}, nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("kraken ticker %s: %w", symbol, err)
	}
	if len(payload.Error) > 0 {
		return nil, fmt.Errorf("kraken ticker %s: %s", symbol, strings.Join(payload.Error, "; "))
	}

	for _, tick := range payload.Result {
		volume := floatAt(tick.V, 1)
		vwap := floatAt(tick.P, 1)
		return &Ticker{
			Symbol:         symbol,
			Last:           floatAt(tick.C, 0),
			QuoteVolume24h: volume * vwap,
		}, nil
	}

	return nil, fmt.Errorf("kraken ticker %s: empty result", symbol)
}

type krakenDepthResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		Bids [][]interface{} `json:"bids"`
		Asks [][]interface{} `json:"asks"`
	} `json:"result"`
}

// FetchOrderBook reads the depth-limited book.
func (k *Kraken) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	pairID, err := k.pairID(symbol)
	if err != nil {
		return nil, err
	}

	var payload krakenDepthResponse
	err = k.fetcher.GetJSON(ctx, k.baseURL+"/0/public/Depth",
		map[string]string{"pair": pairID, "count": strconv.Itoa(depth)}, nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("kraken depth %s: %w", symbol, err)
	}
	if len(payload.Error) > 0 {
		return nil, fmt.Errorf("kraken depth %s: %s", symbol, strings.Join(payload.Error, "; "))
	}

	for _, book := range payload.Result {
		return &OrderBook{
			Symbol:    symbol,
			Bids:      parseLevels(book.Bids, depth),
			Asks:      parseLevels(book.Asks, depth),
			FetchedAt: time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("kraken depth %s: empty result", symbol)
}

func (k *Kraken) pairID(symbol string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	pairID, ok := k.pairIDs[symbol]
	if !ok {
		return "", fmt.Errorf("kraken: unknown symbol %s (markets not loaded?)", symbol)
	}
	return pairID, nil
}

// normalizeKrakenSymbol renames the base asset of wsnames like "XBT/USD".
func normalizeKrakenSymbol(wsname string) string {
	base, quote, found := strings.Cut(wsname, "/")
	if !found {
		return wsname
	}
	if renamed, ok := krakenRenames[base]; ok {
		base = renamed
	}
	return base + "/" + quote
}

func floatAt(values []string, idx int) float64 {
	if idx >= len(values) {
		return 0
	}
	f, _ := strconv.ParseFloat(values[idx], 64)
	return f
}
