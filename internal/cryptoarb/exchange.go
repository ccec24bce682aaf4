// Package cryptoarb scans for cross-exchange price dislocations on spot
// pairs listed on both Coinbase and Kraken, simulating fills against real
// order-book depth and tracking paper P&L.
package cryptoarb

import (
	"context"
	"time"
)

// PriceLevel is one order book level.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBook is a depth-limited snapshot of one symbol on one exchange.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// BestBid returns the top bid price, or 0 when the book is empty.
func (b *OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 when the book is empty.
func (b *OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Ticker carries 24h stats for one symbol.
type Ticker struct {
	Symbol         string  `json:"symbol"`
	Last           float64 `json:"last"`
	QuoteVolume24h float64 `json:"quote_volume_24h"`
}

// Fees are an exchange's taker/maker fee rates as fractions.
type Fees struct {
	Taker float64 `json:"taker"`
	Maker float64 `json:"maker"`
}

// Exchange is a read-only view of one venue's public REST API. Symbols are
// normalized "BASE/QUOTE" strings; implementations apply their venue's
// renames (e.g. XBT -> BTC) before returning.
type Exchange interface {
	Name() string
	LoadMarkets(ctx context.Context) ([]string, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	Fees() Fees
}
