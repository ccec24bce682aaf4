package arb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/types"
)

// prescreenBuffer widens the stage-1 threshold to allow for the implied
// NO-ask estimation error; the real NO ask may differ from 1 - bestBid.
const prescreenBuffer = 0.02

// confirmWorkers bounds parallel order-book fetches in stage 2.
const confirmWorkers = 10

// Config holds market monitor configuration.
type Config struct {
	Logger      *zap.Logger
	Fetcher     *fetch.Client
	Bus         *bus.Bus
	GammaAPIURL string
	ClobAPIURL  string
	MarketTag   string
	MarketLimit int
	Interval    time.Duration
	Limits      Limits

	// OnOpportunity is invoked for every confirmed opportunity. Errors are
	// the callback's own problem; the scan loop never stops for them.
	OnOpportunity func(ctx context.Context, opp *Opportunity)
}

// Monitor runs the two-stage scan loop: Gamma pre-screen with prices
// already in the markets response, then parallel order-book confirmation
// for the survivors.
type Monitor struct {
	cfg                Config
	prescreenThreshold float64
	logger             *zap.Logger
	wg                 sync.WaitGroup
}

// New creates a market monitor.
func New(cfg *Config) *Monitor {
	return &Monitor{
		cfg:                *cfg,
		prescreenThreshold: 1.0 - cfg.Limits.MinProfitPct/100 + prescreenBuffer,
		logger:             cfg.Logger,
	}
}

// Start launches the scan loop. Each scan is one-shot; the next scan waits
// the configured interval after the previous one completes.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("market-monitor-starting",
		zap.Duration("interval", m.cfg.Interval),
		zap.Float64("min-profit-pct", m.cfg.Limits.MinProfitPct))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			m.scanOnce(ctx)

			select {
			case <-ctx.Done():
				m.logger.Info("market-monitor-stopping")
				return
			case <-time.After(m.cfg.Interval):
			}
		}
	}()

	return nil
}

// Close waits for the scan loop to exit.
func (m *Monitor) Close() error {
	m.wg.Wait()
	m.logger.Info("market-monitor-closed")
	return nil
}

// scanOnce fetches the market list, pre-screens it, and confirms the
// survivors against real order books. A failed market check fails only
// that market for this cycle.
func (m *Monitor) scanOnce(ctx context.Context) {
	start := time.Now()

	markets, err := m.fetchMarkets(ctx)
	if err != nil {
		m.logger.Warn("market-fetch-failed", zap.Error(err))
		return
	}

	candidates := make([]*types.Market, 0, len(markets))
	for i := range markets {
		if m.prescreen(&markets[i]) {
			candidates = append(candidates, &markets[i])
		}
	}

	scanMS := time.Since(start).Milliseconds()
	ScanDurationSeconds.Observe(time.Since(start).Seconds())
	MarketsScanned.Set(float64(len(markets)))
	CandidatesGauge.Set(float64(len(candidates)))

	m.logger.Info("prescreen-complete",
		zap.Int("markets-total", len(markets)),
		zap.Int("candidates", len(candidates)),
		zap.Int64("scan-ms", scanMS))

	m.cfg.Bus.Publish("scan", map[string]interface{}{
		"markets_total": len(markets),
		"candidates":    len(candidates),
		"scan_ms":       scanMS,
	})

	if len(candidates) == 0 {
		return
	}

	summaries := make([]map[string]interface{}, 0, len(candidates))
	for _, c := range candidates {
		summaries = append(summaries, map[string]interface{}{
			"question":     truncate(c.Question, 80),
			"combined_est": combinedEstimate(c),
		})
	}
	m.cfg.Bus.Publish("candidates", map[string]interface{}{"markets": summaries})

	sem := make(chan struct{}, confirmWorkers)
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(mkt *types.Market) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := m.confirm(ctx, mkt); err != nil {
				m.logger.Warn("market-check-failed",
					zap.String("condition-id", mkt.ConditionID),
					zap.Error(err))
			}
		}(candidate)
	}
	wg.Wait()
}

// fetchMarkets pulls the active market list from Gamma.
func (m *Monitor) fetchMarkets(ctx context.Context) ([]types.Market, error) {
	params := map[string]string{
		"active": "true",
		"closed": "false",
		"limit":  fmt.Sprintf("%d", m.cfg.MarketLimit),
	}
	if m.cfg.MarketTag != "" {
		params["tag"] = m.cfg.MarketTag
	}

	var markets []types.Market
	err := m.cfg.Fetcher.GetJSON(ctx, m.cfg.GammaAPIURL+"/markets", params, nil, &markets)
	if err != nil {
		return nil, err
	}

	return markets, nil
}

// prescreen estimates combined price from fields already present in the
// Gamma response. YES ask is bestAsk; NO ask is implied as 1 - bestBid.
// Markets lacking price data pass so the order book can decide.
func (m *Monitor) prescreen(mkt *types.Market) bool {
	if mkt.BestAsk == nil || mkt.BestBid == nil {
		return true
	}

	yesAsk := *mkt.BestAsk
	impliedNoAsk := 1.0 - *mkt.BestBid

	if yesAsk <= 0 || yesAsk >= 1 || impliedNoAsk <= 0 || impliedNoAsk >= 1 {
		return false
	}

	return yesAsk+impliedNoAsk < m.prescreenThreshold
}

// confirm fetches both real order books and re-runs the kernel.
func (m *Monitor) confirm(ctx context.Context, mkt *types.Market) error {
	yesID, noID := ExtractTokenIDs(mkt)
	if yesID == "" || noID == "" {
		return nil
	}

	yesAsk, ok, err := m.bestAsk(ctx, yesID)
	if err != nil || !ok {
		return err
	}
	noAsk, ok, err := m.bestAsk(ctx, noID)
	if err != nil || !ok {
		return err
	}

	if yesAsk <= 0 || yesAsk >= 1 || noAsk <= 0 || noAsk >= 1 {
		return nil
	}

	opp, found := Evaluate(mkt, yesAsk, noAsk, m.cfg.Limits)
	if !found {
		return nil
	}

	OpportunitiesDetectedTotal.Inc()
	OpportunityProfitPct.Observe(opp.ExpectedProfitPct)

	m.logger.Info("opportunity-found",
		zap.String("question", truncate(opp.Question, 70)),
		zap.Float64("combined-pct", opp.CombinedPct),
		zap.Float64("profit-pct", opp.ExpectedProfitPct),
		zap.Float64("est-profit-usdc", opp.EstimatedProfitUSD))

	m.cfg.Bus.Publish("opportunity", map[string]interface{}{
		"question":        truncate(opp.Question, 80),
		"yes_ask":         opp.YesAsk,
		"no_ask":          opp.NoAsk,
		"combined_pct":    opp.CombinedPct,
		"profit_pct":      opp.ExpectedProfitPct,
		"est_profit_usdc": opp.EstimatedProfitUSD,
	})

	if m.cfg.OnOpportunity != nil {
		m.cfg.OnOpportunity(ctx, opp)
	}

	return nil
}

// bestAsk fetches one token's order book and extracts the lowest ask.
func (m *Monitor) bestAsk(ctx context.Context, tokenID string) (float64, bool, error) {
	var book types.Book
	err := m.cfg.Fetcher.GetJSON(ctx, m.cfg.ClobAPIURL+"/book",
		map[string]string{"token_id": tokenID}, nil, &book)
	if err != nil {
		return 0, false, err
	}

	ask, ok := book.BestAsk()
	return ask, ok, nil
}

func combinedEstimate(mkt *types.Market) float64 {
	yesAsk, bid := 0.0, 1.0
	if mkt.BestAsk != nil {
		yesAsk = *mkt.BestAsk
	}
	if mkt.BestBid != nil {
		bid = *mkt.BestBid
	}
	return yesAsk + (1.0 - bid)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
