package types

import (
	"strconv"
	"time"
)

// BookLevel is a single price level in a CLOB order book. The API encodes
// prices and sizes as strings.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Values parses the level into floats.
func (l BookLevel) Values() (price, size float64, err error) {
	price, err = strconv.ParseFloat(l.Price, 64)
	if err != nil {
		return 0, 0, err
	}

	size, err = strconv.ParseFloat(l.Size, 64)
	if err != nil {
		return 0, 0, err
	}

	return price, size, nil
}

// Book is a CLOB order book for one token.
type Book struct {
	Market  string      `json:"market"`
	AssetID string      `json:"asset_id"`
	Bids    []BookLevel `json:"bids"`
	Asks    []BookLevel `json:"asks"`
}

// BestAsk returns the lowest ask price. Level ordering is not trusted; the
// CLOB returns asks in either direction depending on endpoint version.
func (b *Book) BestAsk() (float64, bool) {
	best, found := 0.0, false
	for _, l := range b.Asks {
		price, _, err := l.Values()
		if err != nil {
			continue
		}
		if !found || price < best {
			best, found = price, true
		}
	}

	return best, found
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (float64, bool) {
	best, found := 0.0, false
	for _, l := range b.Bids {
		price, _, err := l.Values()
		if err != nil {
			continue
		}
		if !found || price > best {
			best, found = price, true
		}
	}

	return best, found
}

// BookSnapshot is a parsed best-of-book view used by the scan loops.
type BookSnapshot struct {
	TokenID      string
	BestBidPrice float64
	BestAskPrice float64
	LastUpdated  time.Time
}
