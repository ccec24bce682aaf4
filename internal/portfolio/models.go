package portfolio

import (
	"time"
)

// Result classifies a closed trade. PUSH covers P&L within the epsilon
// band around zero.
type Result string

const (
	Win  Result = "WIN"
	Loss Result = "LOSS"
	Push Result = "PUSH"

	// resultEpsilonUSDC is the WIN/LOSS classification band.
	resultEpsilonUSDC = 0.01
)

func classify(pnl float64) Result {
	switch {
	case pnl > resultEpsilonUSDC:
		return Win
	case pnl < -resultEpsilonUSDC:
		return Loss
	default:
		return Push
	}
}

// Source identifies what triggered a trade.
type Source struct {
	Nickname string
	Address  string
}

// OpenRequest is the normalized payload for open/close operations.
type OpenRequest struct {
	TokenID  string
	MarketID string
	Title    string
	Outcome  string
	// Price is the observed current price; zero means unknown and falls
	// back to 0.5.
	Price float64
}

// Position is one open slot.
type Position struct {
	ID                 string    `json:"id"`
	MarketID           string    `json:"market_id"`
	Question           string    `json:"market_question"`
	TokenID            string    `json:"token_id"`
	Outcome            string    `json:"outcome"`
	EntryPrice         float64   `json:"entry_price"`
	CurrentPrice       float64   `json:"current_price"`
	Shares             float64   `json:"shares"`
	USDCDeployed       float64   `json:"usdc_deployed"`
	OpenedAt           time.Time `json:"opened_at"`
	TriggeredBy        string    `json:"triggered_by"`
	TriggeredByAddress string    `json:"triggered_by_address"`
}

// UnrealizedPnL is (current - entry) * shares.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Shares
}

// UnrealizedPnLPct is unrealized P&L relative to deployed capital.
func (p *Position) UnrealizedPnLPct() float64 {
	if p.USDCDeployed == 0 {
		return 0
	}
	return p.UnrealizedPnL() / p.USDCDeployed * 100
}

// positionView is the wire shape for position events, with computed fields.
type positionView struct {
	Position
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	AgeSeconds       float64 `json:"age_s"`
}

func (p *Position) view() positionView {
	return positionView{
		Position:         *p,
		UnrealizedPnL:    p.UnrealizedPnL(),
		UnrealizedPnLPct: p.UnrealizedPnLPct(),
		AgeSeconds:       time.Since(p.OpenedAt).Seconds(),
	}
}

// QueuedTrade buffers an open request while all slots are occupied.
type QueuedTrade struct {
	ID                 string    `json:"id"`
	MarketID           string    `json:"market_id"`
	Question           string    `json:"market_question"`
	TokenID            string    `json:"token_id"`
	Outcome            string    `json:"outcome"`
	EntryPrice         float64   `json:"entry_price"`
	TriggeredBy        string    `json:"triggered_by"`
	TriggeredByAddress string    `json:"triggered_by_address"`
	QueuedAt           time.Time `json:"queued_at"`
}

// ResolvedTrade is a closed position.
type ResolvedTrade struct {
	Question        string    `json:"market_question"`
	Outcome         string    `json:"outcome"`
	EntryPrice      float64   `json:"entry_price"`
	ExitPrice       float64   `json:"exit_price"`
	Shares          float64   `json:"shares"`
	USDCDeployed    float64   `json:"usdc_deployed"`
	PnLUSDC         float64   `json:"pnl_usdc"`
	DurationSeconds float64   `json:"duration_s"`
	TriggeredBy     string    `json:"triggered_by"`
	ResolvedAt      time.Time `json:"resolved_at"`
	Result          Result    `json:"result"`
}

// Overview summarizes the portfolio.
type Overview struct {
	BalanceUSDC   float64 `json:"balance_usdc"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	SlotsUsed     int     `json:"slots_used"`
	SlotsTotal    int     `json:"slots_total"`
	QueueSize     int     `json:"queue_size"`
	TotalDeployed float64 `json:"total_deployed"`
}
