// Package arb implements within-market YES/NO arbitrage: a pure detection
// kernel and a two-stage market monitor (cheap Gamma pre-screen, parallel
// order-book confirmation).
package arb

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgefeed/signal-engine/pkg/types"
)

// Limits caps trade sizing for the kernel.
type Limits struct {
	MaxTradePerSideUSDC float64
	MaxRiskUSDC         float64
	MinProfitPct        float64
}

// Evaluate runs the arbitrage kernel against one market's best asks.
// Pure and deterministic; performs no I/O.
//
// Shares are equal on both sides so exactly one side pays out 1 USDC per
// share at settlement. Sizing is the tightest of the two per-side caps and
// the total-risk cap.
func Evaluate(market *types.Market, yesAsk, noAsk float64, lim Limits) (*Opportunity, bool) {
	combined := yesAsk + noAsk
	if combined >= 1.0 {
		return nil, false
	}

	profitPct := (1.0 - combined) / combined * 100
	if profitPct < lim.MinProfitPct {
		return nil, false
	}

	maxByYes := lim.MaxTradePerSideUSDC / yesAsk
	maxByNo := lim.MaxTradePerSideUSDC / noAsk
	maxByRisk := lim.MaxRiskUSDC / combined

	shares := maxByYes
	if maxByNo < shares {
		shares = maxByNo
	}
	if maxByRisk < shares {
		shares = maxByRisk
	}

	yesID, noID := ExtractTokenIDs(market)

	return &Opportunity{
		ID:                 uuid.New().String(),
		MarketID:           market.ConditionID,
		Question:           market.Question,
		YesTokenID:         yesID,
		NoTokenID:          noID,
		YesAsk:             yesAsk,
		NoAsk:              noAsk,
		CombinedPct:        combined * 100,
		ExpectedProfitPct:  profitPct,
		Shares:             shares,
		YesCostUSDC:        shares * yesAsk,
		NoCostUSDC:         shares * noAsk,
		EstimatedProfitUSD: shares * (1.0 - combined),
		DetectedAt:         time.Now(),
	}, true
}

// ExtractTokenIDs resolves (yes, no) token ids from either market shape:
// an inline tokens list with outcome labels, or parallel
// clobTokenIds/outcomes arrays. When outcome labels resolve nothing, the
// first id is assumed YES and the second NO.
func ExtractTokenIDs(m *types.Market) (yesID, noID string) {
	if len(m.Tokens) > 0 {
		for _, t := range m.Tokens {
			switch strings.ToLower(strings.TrimSpace(t.Outcome)) {
			case "yes", "1":
				yesID = t.TokenID
			case "no", "0":
				noID = t.TokenID
			}
		}
		return yesID, noID
	}

	ids := m.ClobTokenIDs
	if len(ids) < 2 {
		return "", ""
	}

	for i, outcome := range m.Outcomes {
		if i >= len(ids) {
			break
		}
		switch strings.ToLower(strings.TrimSpace(outcome)) {
		case "yes", "1":
			yesID = ids[i]
		case "no", "0":
			noID = ids[i]
		}
	}

	if yesID == "" {
		yesID = ids[0]
	}
	if noID == "" {
		noID = ids[1]
	}

	return yesID, noID
}
