package arb

import (
	"math"
	"testing"

	"github.com/edgefeed/signal-engine/pkg/types"
)

func testMarket() *types.Market {
	return &types.Market{
		ConditionID:  "0xcond",
		Question:     "Will the home side win?",
		ClobTokenIDs: []string{"yes-token", "no-token"},
		Outcomes:     []string{"Yes", "No"},
	}
}

func TestEvaluateHit(t *testing.T) {
	lim := Limits{MaxTradePerSideUSDC: 100, MaxRiskUSDC: 200, MinProfitPct: 0.5}

	opp, ok := Evaluate(testMarket(), 0.48, 0.49, lim)
	if !ok {
		t.Fatal("expected opportunity")
	}

	if math.Abs(opp.CombinedPct-97.0) > 1e-9 {
		t.Errorf("combined pct = %f", opp.CombinedPct)
	}
	if math.Abs(opp.ExpectedProfitPct-3.092783505154639) > 1e-9 {
		t.Errorf("profit pct = %f", opp.ExpectedProfitPct)
	}

	// shares = min(100/0.48, 100/0.49, 200/0.97) = 100/0.49
	wantShares := 100.0 / 0.49
	if math.Abs(opp.Shares-wantShares) > 1e-9 {
		t.Errorf("shares = %f, want %f", opp.Shares, wantShares)
	}
	if math.Abs(opp.EstimatedProfitUSD-wantShares*0.03) > 1e-9 {
		t.Errorf("est profit = %f", opp.EstimatedProfitUSD)
	}

	if opp.YesTokenID != "yes-token" || opp.NoTokenID != "no-token" {
		t.Errorf("token ids = %q %q", opp.YesTokenID, opp.NoTokenID)
	}
}

func TestEvaluateMissCombinedAtOrAboveOne(t *testing.T) {
	lim := Limits{MaxTradePerSideUSDC: 100, MaxRiskUSDC: 200, MinProfitPct: 0.5}

	if _, ok := Evaluate(testMarket(), 0.55, 0.48, lim); ok {
		t.Error("combined >= 1 must not be an opportunity")
	}
	if _, ok := Evaluate(testMarket(), 0.50, 0.50, lim); ok {
		t.Error("combined == 1 must not be an opportunity")
	}
}

func TestEvaluateMissBelowThreshold(t *testing.T) {
	lim := Limits{MaxTradePerSideUSDC: 100, MaxRiskUSDC: 200, MinProfitPct: 2.0}

	// combined 0.99 -> profit ~1.01% < 2%
	if _, ok := Evaluate(testMarket(), 0.50, 0.49, lim); ok {
		t.Error("profit below threshold must be rejected")
	}
}

func TestEvaluateSizingInvariants(t *testing.T) {
	tests := []struct {
		name           string
		yesAsk, noAsk  float64
		maxTrade, risk float64
	}{
		{"risk-bound", 0.48, 0.49, 1000, 200},
		{"yes-side-bound", 0.60, 0.30, 100, 10000},
		{"no-side-bound", 0.30, 0.60, 100, 10000},
	}

	lim := Limits{MinProfitPct: 0.5}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim.MaxTradePerSideUSDC = tt.maxTrade
			lim.MaxRiskUSDC = tt.risk

			opp, ok := Evaluate(testMarket(), tt.yesAsk, tt.noAsk, lim)
			if !ok {
				t.Fatal("expected opportunity")
			}

			const eps = 1e-9
			if opp.YesAsk+opp.NoAsk >= 1 {
				t.Error("combined >= 1")
			}
			if opp.Shares*opp.YesAsk > tt.maxTrade+eps {
				t.Errorf("yes cost %f exceeds per-side cap", opp.Shares*opp.YesAsk)
			}
			if opp.Shares*opp.NoAsk > tt.maxTrade+eps {
				t.Errorf("no cost %f exceeds per-side cap", opp.Shares*opp.NoAsk)
			}
			if opp.Shares*(opp.YesAsk+opp.NoAsk) > tt.risk+eps {
				t.Errorf("total cost %f exceeds risk cap", opp.Shares*(opp.YesAsk+opp.NoAsk))
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	lim := Limits{MaxTradePerSideUSDC: 100, MaxRiskUSDC: 200, MinProfitPct: 0.5}

	a, _ := Evaluate(testMarket(), 0.48, 0.49, lim)
	b, _ := Evaluate(testMarket(), 0.48, 0.49, lim)

	if a.Shares != b.Shares || a.ExpectedProfitPct != b.ExpectedProfitPct ||
		a.YesCostUSDC != b.YesCostUSDC || a.EstimatedProfitUSD != b.EstimatedProfitUSD {
		t.Error("kernel must be deterministic for identical inputs")
	}
}

func TestExtractTokenIDs(t *testing.T) {
	tests := []struct {
		name    string
		market  types.Market
		wantYes string
		wantNo  string
	}{
		{
			name: "inline-tokens-list",
			market: types.Market{Tokens: []types.OutcomeToken{
				{TokenID: "n", Outcome: "No"},
				{TokenID: "y", Outcome: "Yes"},
			}},
			wantYes: "y",
			wantNo:  "n",
		},
		{
			name: "inline-tokens-numeric-outcomes",
			market: types.Market{Tokens: []types.OutcomeToken{
				{TokenID: "a", Outcome: "1"},
				{TokenID: "b", Outcome: "0"},
			}},
			wantYes: "a",
			wantNo:  "b",
		},
		{
			name: "parallel-arrays",
			market: types.Market{
				ClobTokenIDs: []string{"t1", "t2"},
				Outcomes:     []string{"No", "Yes"},
			},
			wantYes: "t2",
			wantNo:  "t1",
		},
		{
			name: "positional-fallback",
			market: types.Market{
				ClobTokenIDs: []string{"first", "second"},
				Outcomes:     []string{"Over", "Under"},
			},
			wantYes: "first",
			wantNo:  "second",
		},
		{
			name:   "too-few-ids",
			market: types.Market{ClobTokenIDs: []string{"only"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes, no := ExtractTokenIDs(&tt.market)
			if yes != tt.wantYes || no != tt.wantNo {
				t.Errorf("got (%q, %q), want (%q, %q)", yes, no, tt.wantYes, tt.wantNo)
			}
		})
	}
}
