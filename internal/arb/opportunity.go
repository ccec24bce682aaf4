package arb

import (
	"time"
)

// Opportunity is a confirmed within-market YES/NO arbitrage.
//
// Invariants: YesAsk + NoAsk < 1; Shares*YesAsk and Shares*NoAsk are each
// bounded by the per-side cap; Shares*(YesAsk+NoAsk) is bounded by the risk
// cap.
type Opportunity struct {
	ID                 string    `json:"id"`
	MarketID           string    `json:"market_id"`
	Question           string    `json:"question"`
	YesTokenID         string    `json:"yes_token_id"`
	NoTokenID          string    `json:"no_token_id"`
	YesAsk             float64   `json:"yes_ask"`
	NoAsk              float64   `json:"no_ask"`
	CombinedPct        float64   `json:"combined_pct"`
	ExpectedProfitPct  float64   `json:"expected_profit_pct"`
	Shares             float64   `json:"shares"`
	YesCostUSDC        float64   `json:"yes_cost_usdc"`
	NoCostUSDC         float64   `json:"no_cost_usdc"`
	EstimatedProfitUSD float64   `json:"estimated_profit_usdc"`
	DetectedAt         time.Time `json:"detected_at"`
}

// TotalCostUSDC is the USDC needed to take both sides.
func (o *Opportunity) TotalCostUSDC() float64 {
	return o.YesCostUSDC + o.NoCostUSDC
}
