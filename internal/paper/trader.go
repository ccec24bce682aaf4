// Package paper implements the paper-trading engine. It runs the same
// pre-trade checks a live executor would (risk cap, balance, liquidity,
// slippage, arb-still-alive) against live order books, then simulates the
// fill and persists its virtual account state to disk.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/types"
)

// Outcome classifies the result of one execution attempt.
type Outcome string

const (
	Success              Outcome = "SUCCESS"
	AbortedRisk          Outcome = "ABORTED_RISK"
	AbortedBalance       Outcome = "ABORTED_BALANCE"
	AbortedLiquidity     Outcome = "ABORTED_LIQUIDITY"
	AbortedSlippage      Outcome = "ABORTED_SLIPPAGE"
	AbortedArbEvaporated Outcome = "ABORTED_ARB_EVAPORATED"
	ExecutionError       Outcome = "ERROR"
)

// Result reports one execution attempt.
type Result struct {
	Outcome      Outcome
	Reason       string
	YesFillPrice float64
	NoFillPrice  float64
	ProfitUSDC   float64
}

// Executor is the order-execution seam. The paper trader is the only
// implementation in this repo; a live implementation would submit real
// orders after the same gates.
type Executor interface {
	Execute(ctx context.Context, opp *arb.Opportunity) *Result
}

// Config holds paper trader configuration.
type Config struct {
	Logger               *zap.Logger
	Fetcher              *fetch.Client
	Bus                  *bus.Bus
	ClobAPIURL           string
	MaxTradePerSideUSDC  float64
	MaxRiskUSDC          float64
	SlippageTolerancePct float64
	MinLiquidityUSDC     float64
	StartingBalanceUSDC  float64
	StatePath            string
}

// Trader simulates arbitrage fills against live prices.
type Trader struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

var _ Executor = (*Trader)(nil)

// New creates a paper trader, resuming from the state file when present.
func New(cfg *Config) (*Trader, error) {
	t := &Trader{cfg: *cfg, logger: cfg.Logger}

	state, resumed, err := loadState(cfg.StatePath, cfg.StartingBalanceUSDC)
	if err != nil {
		return nil, fmt.Errorf("load paper state: %w", err)
	}
	t.state = state

	if resumed {
		t.logger.Info("paper-trader-resuming",
			zap.Float64("balance-usdc", state.BalanceUSDC),
			zap.Float64("total-profit-usdc", state.TotalProfitUSDC),
			zap.Int("trades-executed", state.TradesExecuted),
			zap.Int("opportunities-seen", state.OpportunitiesSeen))
	} else {
		t.logger.Info("paper-trader-starting-fresh",
			zap.Float64("balance-usdc", state.BalanceUSDC))
	}

	return t, nil
}

// Execute runs the pre-trade gates in order and simulates the fill when all
// pass. Each gate trips a distinct abort outcome. State is persisted after
// every attempt, successful or not. The mutex is held only around state
// reads and writes, never across book fetches, so Snapshot stays responsive
// while an execution is in flight; the balance is re-checked before the fill.
func (t *Trader) Execute(ctx context.Context, opp *arb.Opportunity) *Result {
	t.mu.Lock()
	t.state.OpportunitiesSeen++
	balance := t.state.BalanceUSDC
	t.mu.Unlock()

	totalCost := opp.TotalCostUSDC()
	if totalCost > t.cfg.MaxRiskUSDC {
		return t.abort(AbortedRisk,
			fmt.Sprintf("cost %.2f USDC > max risk %.2f USDC", totalCost, t.cfg.MaxRiskUSDC), opp)
	}

	if balance < totalCost {
		return t.abort(AbortedBalance,
			fmt.Sprintf("paper balance %.2f < cost %.2f USDC", balance, totalCost), opp)
	}

	yesLiq := t.availableLiquidity(ctx, opp.YesTokenID, opp.YesAsk, opp.YesCostUSDC)
	if yesLiq < t.cfg.MinLiquidityUSDC {
		return t.abort(AbortedLiquidity,
			fmt.Sprintf("YES liquidity %.2f < min %.2f USDC", yesLiq, t.cfg.MinLiquidityUSDC), opp)
	}

	noLiq := t.availableLiquidity(ctx, opp.NoTokenID, opp.NoAsk, opp.NoCostUSDC)
	if noLiq < t.cfg.MinLiquidityUSDC {
		return t.abort(AbortedLiquidity,
			fmt.Sprintf("NO liquidity %.2f < min %.2f USDC", noLiq, t.cfg.MinLiquidityUSDC), opp)
	}

	liveYes, okYes := t.bestAsk(ctx, opp.YesTokenID)
	liveNo, okNo := t.bestAsk(ctx, opp.NoTokenID)
	if !okYes || !okNo {
		return t.abort(ExecutionError, "could not re-fetch live prices", opp)
	}

	yesSlip := abs(liveYes-opp.YesAsk) / opp.YesAsk * 100
	noSlip := abs(liveNo-opp.NoAsk) / opp.NoAsk * 100

	if yesSlip > t.cfg.SlippageTolerancePct {
		return t.abort(AbortedSlippage,
			fmt.Sprintf("YES moved %.2f%% (tolerance %.2f%%)", yesSlip, t.cfg.SlippageTolerancePct), opp)
	}
	if noSlip > t.cfg.SlippageTolerancePct {
		return t.abort(AbortedSlippage,
			fmt.Sprintf("NO moved %.2f%% (tolerance %.2f%%)", noSlip, t.cfg.SlippageTolerancePct), opp)
	}

	if liveYes+liveNo >= 1.0 {
		return t.abort(AbortedArbEvaporated,
			fmt.Sprintf("arb gone: live combined = %.2f%%", (liveYes+liveNo)*100), opp)
	}

	// Re-size at live prices; one side always pays out 1 USDC per share.
	shares := t.cfg.MaxTradePerSideUSDC / liveYes
	if byNo := t.cfg.MaxTradePerSideUSDC / liveNo; byNo < shares {
		shares = byNo
	}
	if byRisk := t.cfg.MaxRiskUSDC / (liveYes + liveNo); byRisk < shares {
		shares = byRisk
	}

	cost := shares * (liveYes + liveNo)
	profit := shares * (1.0 - liveYes - liveNo)

	t.mu.Lock()
	if t.state.BalanceUSDC < cost {
		reason := fmt.Sprintf("paper balance %.2f < cost %.2f USDC", t.state.BalanceUSDC, cost)
		t.mu.Unlock()
		return t.abort(AbortedBalance, reason, opp)
	}
	t.state.BalanceUSDC -= cost
	t.state.BalanceUSDC += shares // winning-side payout, locked in
	t.state.TotalProfitUSDC += profit
	t.state.TradesExecuted++
	t.saveState()
	snapshot := t.state
	t.mu.Unlock()

	TradesTotal.WithLabelValues(string(Success)).Inc()
	ProfitUSDC.Add(profit)

	t.logger.Info("paper-trade-success",
		zap.String("question", truncate(opp.Question, 60)),
		zap.Float64("yes-fill", liveYes),
		zap.Float64("no-fill", liveNo),
		zap.Float64("shares", shares),
		zap.Float64("cost-usdc", cost),
		zap.Float64("profit-usdc", profit),
		zap.Float64("balance-usdc", snapshot.BalanceUSDC))

	t.publishTrade(Success, opp, &liveYes, &liveNo, &profit, "", snapshot)

	return &Result{
		Outcome:      Success,
		Reason:       "simulated fill at live prices",
		YesFillPrice: liveYes,
		NoFillPrice:  liveNo,
		ProfitUSDC:   profit,
	}
}

// Snapshot returns a copy of the current account state.
func (t *Trader) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// abort records a failed attempt. Counters and the state file advance;
// balance and profit are untouched.
func (t *Trader) abort(outcome Outcome, reason string, opp *arb.Opportunity) *Result {
	t.mu.Lock()
	t.state.TradesAborted++
	t.saveState()
	snapshot := t.state
	t.mu.Unlock()

	TradesTotal.WithLabelValues(string(outcome)).Inc()

	t.logger.Info("paper-trade-aborted",
		zap.String("outcome", string(outcome)),
		zap.String("question", truncate(opp.Question, 60)),
		zap.String("reason", reason))

	t.publishTrade(outcome, opp, nil, nil, nil, reason, snapshot)

	return &Result{Outcome: outcome, Reason: reason}
}

func (t *Trader) publishTrade(outcome Outcome, opp *arb.Opportunity, yesFill, noFill, profit *float64, reason string, state State) {
	if t.cfg.Bus == nil {
		return
	}

	payload := map[string]interface{}{
		"outcome":           string(outcome),
		"question":          truncate(opp.Question, 80),
		"yes_fill":          yesFill,
		"no_fill":           noFill,
		"profit_usdc":       profit,
		"cumulative_profit": state.TotalProfitUSDC,
		"balance":           state.BalanceUSDC,
	}
	if reason != "" {
		payload["reason"] = reason
	} else {
		payload["reason"] = nil
	}

	t.cfg.Bus.Publish("trade", payload)
	t.cfg.Bus.Publish("stats", state)
}

// availableLiquidity sums the USDC value of ask levels priced at or below
// maxPrice, stopping once targetUSDC is reached. Fetch failures count as
// zero liquidity.
func (t *Trader) availableLiquidity(ctx context.Context, tokenID string, maxPrice, targetUSDC float64) float64 {
	book, err := t.fetchBook(ctx, tokenID)
	if err != nil {
		t.logger.Warn("liquidity-fetch-failed", zap.String("token-id", tokenID), zap.Error(err))
		return 0
	}

	type level struct{ price, size float64 }
	levels := make([]level, 0, len(book.Asks))
	for _, l := range book.Asks {
		price, size, err := l.Values()
		if err != nil {
			continue
		}
		levels = append(levels, level{price, size})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].price < levels[j].price })

	total := 0.0
	for _, l := range levels {
		if l.price > maxPrice {
			break
		}
		total += l.price * l.size
		if total >= targetUSDC {
			break
		}
	}

	return total
}

func (t *Trader) bestAsk(ctx context.Context, tokenID string) (float64, bool) {
	book, err := t.fetchBook(ctx, tokenID)
	if err != nil {
		return 0, false
	}
	return book.BestAsk()
}

func (t *Trader) fetchBook(ctx context.Context, tokenID string) (*types.Book, error) {
	var book types.Book
	err := t.cfg.Fetcher.GetJSON(ctx, t.cfg.ClobAPIURL+"/book",
		map[string]string{"token_id": tokenID}, nil, &book)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
