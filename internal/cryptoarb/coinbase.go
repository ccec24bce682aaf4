package cryptoarb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
)

const defaultCoinbaseURL = "https://api.exchange.coinbase.com"

// Default Coinbase Advanced fee tier.
var coinbaseFees = Fees{Taker: 0.006, Maker: 0.004}

// Coinbase is the Coinbase Exchange public REST client.
type Coinbase struct {
	logger  *zap.Logger
	fetcher *fetch.Client
	baseURL string
}

// NewCoinbase creates a Coinbase client.
func NewCoinbase(logger *zap.Logger, fetcher *fetch.Client, baseURL string) *Coinbase {
	if baseURL == "" {
		baseURL = defaultCoinbaseURL
	}
	return &Coinbase{logger: logger, fetcher: fetcher, baseURL: baseURL}
}

var _ Exchange = (*Coinbase)(nil)

func (c *Coinbase) Name() string { return "coinbase" }

func (c *Coinbase) Fees() Fees { return coinbaseFees }

type cbProduct struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// LoadMarkets lists online spot products as "BASE/QUOTE" symbols.
func (c *Coinbase) LoadMarkets(ctx context.Context) ([]string, error) {
	var products []cbProduct
	err := c.fetcher.GetJSON(ctx, c.baseURL+"/products", nil, nil, &products)
	if err != nil {
		return nil, fmt.Errorf("coinbase products: %w", err)
	}

	symbols := make([]string, 0, len(products))
	for _, p := range products {
		if p.Status != "online" || p.TradingDisabled {
			continue
		}
		symbols = append(symbols, p.BaseCurrency+"/"+p.QuoteCurrency)
	}

	return symbols, nil
}

type cbStats struct {
	Volume string `json:"volume"`
	Last   string `json:"last"`
}

// FetchTicker reads 24h stats; quote volume is base volume times last price.
func (c *Coinbase) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	var stats cbStats
	err := c.fetcher.GetJSON(ctx, c.baseURL+"/products/"+c.productID(symbol)+"/stats", nil, nil, &stats)
	if err != nil {
		return nil, fmt.Errorf("coinbase stats %s: %w", symbol, err)
	}

	volume, _ := strconv.ParseFloat(stats.Volume, 64)
	last, _ := strconv.ParseFloat(stats.Last, 64)

	return &Ticker{
		Symbol:         symbol,
		Last:           last,
		QuoteVolume24h: volume * last,
	}, nil
}

type cbBook struct {
	Bids [][]interface{} `json:"bids"`
	Asks [][]interface{} `json:"asks"`
}

// FetchOrderBook reads the level-2 book truncated to depth.
func (c *Coinbase) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	var book cbBook
	err := c.fetcher.GetJSON(ctx, c.baseURL+"/products/"+c.productID(symbol)+"/book",
		map[string]string{"level": "2"}, nil, &book)
	if err != nil {
		return nil, fmt.Errorf("coinbase book %s: %w", symbol, err)
	}

	return &OrderBook{
		Symbol:    symbol,
		Bids:      parseLevels(book.Bids, depth),
		Asks:      parseLevels(book.Asks, depth),
		FetchedAt: time.Now(),
	}, nil
}

func (c *Coinbase) productID(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// parseLevels decodes [["price", "size", ...], ...] rows; size may arrive as
// a string or a number depending on the venue.
func parseLevels(rows [][]interface{}, depth int) []PriceLevel {
	levels := make([]PriceLevel, 0, depth)
	for _, row := range rows {
		if len(levels) == depth {
			break
		}
		if len(row) < 2 {
			continue
		}

		price, ok1 := parseNumber(row[0])
		volume, ok2 := parseNumber(row[1])
		if !ok1 || !ok2 {
			continue
		}
		levels = append(levels, PriceLevel{Price: price, Volume: volume})
	}
	return levels
}

func parseNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}
