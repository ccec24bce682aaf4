package cryptoarb

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
)

const (
	// exchangeConcurrency bounds in-flight requests per exchange.
	exchangeConcurrency = 5
	// minTradeUSDC rejects fills too small to be worth simulating.
	minTradeUSDC = 10.0

	tradesCap        = 500
	opportunitiesCap = 200
	pnlHistoryCap    = 500

	scanResultTop = 30
	topPairsN     = 10
)

// PairClass orders the scan: sweet-spot pairs (volume inside the configured
// band on both venues) go first.
type PairClass string

const (
	SweetSpot  PairClass = "sweet_spot"
	HighVolume PairClass = "high_volume"
)

// Pair is one scannable symbol.
type Pair struct {
	Symbol string    `json:"symbol"`
	Class  PairClass `json:"class"`
}

// ScanResult is one evaluated direction of one pair.
type ScanResult struct {
	Symbol       string  `json:"symbol"`
	BuyExchange  string  `json:"buy_exchange"`
	SellExchange string  `json:"sell_exchange"`
	RawSpreadPct float64 `json:"raw_spread_pct"`
	FeePct       float64 `json:"fee_pct"`
	SlippagePct  float64 `json:"slippage_pct"`
	NetPct       float64 `json:"net_pct"`
	Quality      float64 `json:"quality"`
	PositionUSDC float64 `json:"position_usdc"`
	BuyAsk       float64 `json:"buy_ask"`
	SellBid      float64 `json:"sell_bid"`
}

// Opportunity is a scan result whose net spread cleared the threshold.
type Opportunity struct {
	ID string `json:"id"`
	ScanResult
	DetectedAt time.Time `json:"detected_at"`
}

// PaperTrade is one simulated two-leg fill.
type PaperTrade struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	BuyExchange  string    `json:"buy_exchange"`
	SellExchange string    `json:"sell_exchange"`
	PositionUSDC float64   `json:"position_usdc"`
	Shares       float64   `json:"shares"`
	BuyFeeUSDC   float64   `json:"buy_fee_usdc"`
	SellFeeUSDC  float64   `json:"sell_fee_usdc"`
	ProceedsUSDC float64   `json:"proceeds_usdc"`
	PnLUSDC      float64   `json:"pnl_usdc"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// PnLPoint is one realized-P&L history sample.
type PnLPoint struct {
	TS          time.Time `json:"ts"`
	BalanceUSDC float64   `json:"balance_usdc"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// ScannerConfig holds crypto arb scanner configuration.
type ScannerConfig struct {
	Logger    *zap.Logger
	Bus       *bus.Bus
	Exchanges []Exchange

	ScanInterval        time.Duration
	MinProfitPct        float64
	MaxPositionUSDC     float64
	MaxPositionPct      float64
	MinVolumeUSDC       float64
	MaxVolumeUSDC       float64
	Depth               int
	MaxBookAge          time.Duration
	StartingBalanceUSDC float64
}

// Scanner discovers tradable pairs once at startup, then repeatedly fetches
// both venues' books for every pair and evaluates both trade directions.
type Scanner struct {
	cfg    ScannerConfig
	logger *zap.Logger

	mu            sync.Mutex
	pairs         []Pair
	balance       float64
	realized      float64
	trades        []PaperTrade
	opportunities []Opportunity
	pnlHistory    []PnLPoint
	oppCounts     map[string]int
	qualitySums   map[string]float64
	qualityCounts map[string]int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScanner creates the scanner.
func NewScanner(cfg *ScannerConfig) *Scanner {
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	return &Scanner{
		cfg:           *cfg,
		logger:        cfg.Logger,
		balance:       cfg.StartingBalanceUSDC,
		oppCounts:     make(map[string]int),
		qualitySums:   make(map[string]float64),
		qualityCounts: make(map[string]int),
	}
}

// Start runs discovery once, then scans on the configured interval.
func (s *Scanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	names := make([]string, 0, len(s.cfg.Exchanges))
	for _, ex := range s.cfg.Exchanges {
		names = append(names, ex.Name())
	}
	s.logger.Info("crypto-arb-starting",
		zap.Strings("exchanges", names),
		zap.Float64("starting-balance-usdc", s.cfg.StartingBalanceUSDC))
	s.publish("arb_start", map[string]interface{}{
		"exchanges":            names,
		"starting_balance_usd": s.cfg.StartingBalanceUSDC,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.discover(ctx)
		if ctx.Err() != nil {
			return
		}
		s.scan(ctx)

		ticker := time.NewTicker(s.cfg.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	}()
}

// Close stops the scan loop.
func (s *Scanner) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("crypto-arb-stopped")
}

// Overview returns a snapshot of balance and counters.
func (s *Scanner) Overview() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overviewLocked()
}

func (s *Scanner) overviewLocked() map[string]interface{} {
	return map[string]interface{}{
		"balance_usdc":  s.balance,
		"realized_pnl":  s.realized,
		"trades":        len(s.trades),
		"opportunities": len(s.opportunities),
		"pairs_tracked": len(s.pairs),
	}
}

// discover intersects both venues' symbol lists and keeps pairs with enough
// 24h volume on both sides. Sweet-spot pairs are scanned first.
func (s *Scanner) discover(ctx context.Context) {
	if len(s.cfg.Exchanges) < 2 {
		s.logger.Error("crypto-arb-needs-two-exchanges")
		return
	}

	counts := make(map[string]int)
	for _, ex := range s.cfg.Exchanges {
		symbols, err := ex.LoadMarkets(ctx)
		if err != nil {
			s.logger.Error("load-markets-failed",
				zap.String("exchange", ex.Name()), zap.Error(err))
			return
		}
		for _, sym := range symbols {
			counts[sym]++
		}
	}

	var shared []string
	for sym, n := range counts {
		if n == len(s.cfg.Exchanges) {
			shared = append(shared, sym)
		}
	}
	sort.Strings(shared)

	volumes := s.fetchVolumes(ctx, shared)

	var sweet, high []Pair
	for _, sym := range shared {
		vols, ok := volumes[sym]
		if !ok || len(vols) < len(s.cfg.Exchanges) {
			continue
		}

		minVol, maxVol := vols[0], vols[0]
		for _, v := range vols[1:] {
			minVol = math.Min(minVol, v)
			maxVol = math.Max(maxVol, v)
		}
		if minVol < s.cfg.MinVolumeUSDC {
			continue
		}

		if maxVol <= s.cfg.MaxVolumeUSDC {
			sweet = append(sweet, Pair{Symbol: sym, Class: SweetSpot})
		} else {
			high = append(high, Pair{Symbol: sym, Class: HighVolume})
		}
	}

	pairs := append(sweet, high...)

	s.mu.Lock()
	s.pairs = pairs
	s.mu.Unlock()

	PairsTracked.Set(float64(len(pairs)))
	s.logger.Info("pair-discovery-complete",
		zap.Int("shared", len(shared)),
		zap.Int("sweet-spot", len(sweet)),
		zap.Int("high-volume", len(high)))
}

// fetchVolumes pulls 24h quote volumes for every candidate on every
// exchange, bounded per exchange.
func (s *Scanner) fetchVolumes(ctx context.Context, symbols []string) map[string][]float64 {
	var mu sync.Mutex
	volumes := make(map[string][]float64, len(symbols))

	var wg sync.WaitGroup
	for _, ex := range s.cfg.Exchanges {
		sem := make(chan struct{}, exchangeConcurrency)
		for _, sym := range symbols {
			wg.Add(1)
			go func(ex Exchange, sym string) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				ticker, err := ex.FetchTicker(ctx, sym)
				if err != nil {
					return
				}

				mu.Lock()
				volumes[sym] = append(volumes[sym], ticker.QuoteVolume24h)
				mu.Unlock()
			}(ex, sym)
		}
	}
	wg.Wait()

	return volumes
}

// scan fetches all books under a global deadline and evaluates every pair
// in both directions.
func (s *Scanner) scan(ctx context.Context) {
	s.mu.Lock()
	pairs := append([]Pair(nil), s.pairs...)
	s.mu.Unlock()

	if len(pairs) == 0 {
		return
	}

	deadline := time.Duration(2*len(pairs)) * time.Second
	if deadline < 60*time.Second {
		deadline = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	books, healthy := s.fetchBooks(ctx, pairs)

	var results []ScanResult
	for _, pair := range pairs {
		for _, buyEx := range s.cfg.Exchanges {
			for _, sellEx := range s.cfg.Exchanges {
				if buyEx.Name() == sellEx.Name() {
					continue
				}
				buyBook := books[buyEx.Name()][pair.Symbol]
				sellBook := books[sellEx.Name()][pair.Symbol]
				if buyBook == nil || sellBook == nil {
					continue
				}

				result, ok := s.evaluate(pair.Symbol, buyEx, buyBook, sellEx, sellBook)
				if !ok {
					continue
				}
				results = append(results, *result)

				if result.NetPct >= s.cfg.MinProfitPct {
					s.recordOpportunity(result)
				}
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].NetPct > results[j].NetPct })
	top := results
	if len(top) > scanResultTop {
		top = top[:scanResultTop]
	}

	ScansTotal.Inc()
	s.publish("arb_scan_result", map[string]interface{}{
		"results": top,
		"scan_ms": time.Since(start).Milliseconds(),
	})
	s.publish("arb_exchange_health", healthy)
	s.publishLeaderboards()

	s.mu.Lock()
	overview := s.overviewLocked()
	s.mu.Unlock()
	s.publish("arb_overview", overview)
}

// fetchBooks pulls every pair's book from every exchange under per-exchange
// semaphores. An exchange is healthy when at least one fetch succeeded.
func (s *Scanner) fetchBooks(ctx context.Context, pairs []Pair) (map[string]map[string]*OrderBook, map[string]bool) {
	var mu sync.Mutex
	books := make(map[string]map[string]*OrderBook)
	healthy := make(map[string]bool)
	for _, ex := range s.cfg.Exchanges {
		books[ex.Name()] = make(map[string]*OrderBook)
		healthy[ex.Name()] = false
	}

	var wg sync.WaitGroup
	for _, ex := range s.cfg.Exchanges {
		sem := make(chan struct{}, exchangeConcurrency)
		for _, pair := range pairs {
			wg.Add(1)
			go func(ex Exchange, symbol string) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				book, err := ex.FetchOrderBook(ctx, symbol, s.cfg.Depth)
				if err != nil {
					BookFetchesTotal.WithLabelValues(ex.Name(), "error").Inc()
					return
				}
				if s.cfg.MaxBookAge > 0 && time.Since(book.FetchedAt) > s.cfg.MaxBookAge {
					BookFetchesTotal.WithLabelValues(ex.Name(), "stale").Inc()
					return
				}

				BookFetchesTotal.WithLabelValues(ex.Name(), "ok").Inc()
				mu.Lock()
				books[ex.Name()][symbol] = book
				healthy[ex.Name()] = true
				mu.Unlock()
			}(ex, pair.Symbol)
		}
	}
	wg.Wait()

	return books, healthy
}

// evaluate prices one direction: buy the ask side on buyEx, sell into the
// bids on sellEx, with VWAP slippage from walking real depth.
func (s *Scanner) evaluate(symbol string, buyEx Exchange, buyBook *OrderBook, sellEx Exchange, sellBook *OrderBook) (*ScanResult, bool) {
	buyAsk := buyBook.BestAsk()
	sellBid := sellBook.BestBid()
	if buyAsk <= 0 || sellBid <= 0 || sellBid <= buyAsk {
		return nil, false
	}

	rawPct := (sellBid - buyAsk) / buyAsk * 100
	feePct := (buyEx.Fees().Taker + sellEx.Fees().Maker) * 100

	s.mu.Lock()
	intended := math.Min(s.balance*s.cfg.MaxPositionPct, s.cfg.MaxPositionUSDC)
	s.mu.Unlock()

	buyVWAP, buyFill := VWAPWalk(buyBook.Asks, intended)
	sellVWAP, sellFill := VWAPWalk(sellBook.Bids, intended)

	actual := math.Min(math.Min(buyFill, sellFill), intended)
	if actual < minTradeUSDC {
		return nil, false
	}

	slippagePct := math.Abs(buyVWAP-buyAsk)/buyAsk*100 + math.Abs(sellVWAP-sellBid)/sellBid*100
	netPct := rawPct - feePct - slippagePct

	quality := 0.0
	if feePct > 0 {
		quality = rawPct / feePct
	}

	return &ScanResult{
		Symbol:       symbol,
		BuyExchange:  buyEx.Name(),
		SellExchange: sellEx.Name(),
		RawSpreadPct: rawPct,
		FeePct:       feePct,
		SlippagePct:  slippagePct,
		NetPct:       netPct,
		Quality:      quality,
		PositionUSDC: actual,
		BuyAsk:       buyAsk,
		SellBid:      sellBid,
	}, true
}

// recordOpportunity stores the opportunity and executes the paper trade.
func (s *Scanner) recordOpportunity(result *ScanResult) {
	opp := Opportunity{
		ID:         uuid.New().String()[:8],
		ScanResult: *result,
		DetectedAt: time.Now(),
	}

	s.mu.Lock()
	s.opportunities = append(s.opportunities, opp)
	if len(s.opportunities) > opportunitiesCap {
		s.opportunities = s.opportunities[len(s.opportunities)-opportunitiesCap:]
	}
	s.oppCounts[result.Symbol]++
	s.qualitySums[result.Symbol] += result.Quality
	s.qualityCounts[result.Symbol]++
	s.mu.Unlock()

	OpportunitiesTotal.Inc()
	s.logger.Info("arb-opportunity",
		zap.String("symbol", result.Symbol),
		zap.String("buy", result.BuyExchange),
		zap.String("sell", result.SellExchange),
		zap.Float64("net-pct", result.NetPct))
	s.publish("arb_opportunity", opp)

	s.executePaperTrade(result)
}

// executePaperTrade simulates both legs: taker fee off the cost, maker fee
// off the proceeds.
func (s *Scanner) executePaperTrade(result *ScanResult) {
	fees := s.feesByName()

	cost := result.PositionUSDC
	buyFee := cost * fees[result.BuyExchange].Taker
	shares := (cost - buyFee) / result.BuyAsk
	proceeds := shares * result.SellBid
	sellFee := proceeds * fees[result.SellExchange].Maker
	pnl := proceeds - sellFee - cost

	trade := PaperTrade{
		ID:           uuid.New().String()[:8],
		Symbol:       result.Symbol,
		BuyExchange:  result.BuyExchange,
		SellExchange: result.SellExchange,
		PositionUSDC: cost,
		Shares:       shares,
		BuyFeeUSDC:   buyFee,
		SellFeeUSDC:  sellFee,
		ProceedsUSDC: proceeds,
		PnLUSDC:      pnl,
		ExecutedAt:   time.Now(),
	}

	s.mu.Lock()
	s.balance += pnl
	s.realized += pnl
	s.trades = append(s.trades, trade)
	if len(s.trades) > tradesCap {
		s.trades = s.trades[len(s.trades)-tradesCap:]
	}
	point := PnLPoint{TS: trade.ExecutedAt, BalanceUSDC: s.balance, RealizedPnL: s.realized}
	s.pnlHistory = append(s.pnlHistory, point)
	if len(s.pnlHistory) > pnlHistoryCap {
		s.pnlHistory = s.pnlHistory[len(s.pnlHistory)-pnlHistoryCap:]
	}
	s.mu.Unlock()

	TradesTotal.Inc()
	RealizedPnLUSDC.Set(point.RealizedPnL)
	s.publish("arb_trade", trade)
	s.publish("arb_pnl", point)
}

// publishLeaderboards emits the most active and highest quality pairs.
func (s *Scanner) publishLeaderboards() {
	type pairCount struct {
		Symbol string  `json:"symbol"`
		Count  int     `json:"count"`
		AvgQ   float64 `json:"avg_quality"`
	}

	s.mu.Lock()
	byCount := make([]pairCount, 0, len(s.oppCounts))
	for sym, n := range s.oppCounts {
		avg := 0.0
		if s.qualityCounts[sym] > 0 {
			avg = s.qualitySums[sym] / float64(s.qualityCounts[sym])
		}
		byCount = append(byCount, pairCount{Symbol: sym, Count: n, AvgQ: avg})
	}
	s.mu.Unlock()

	if len(byCount) == 0 {
		return
	}

	sort.Slice(byCount, func(i, j int) bool { return byCount[i].Count > byCount[j].Count })
	top := byCount
	if len(top) > topPairsN {
		top = top[:topPairsN]
	}
	s.publish("arb_top_pairs", map[string]interface{}{"pairs": top})

	byQuality := append([]pairCount(nil), byCount...)
	sort.Slice(byQuality, func(i, j int) bool { return byQuality[i].AvgQ > byQuality[j].AvgQ })
	if len(byQuality) > topPairsN {
		byQuality = byQuality[:topPairsN]
	}
	s.publish("arb_quality_pairs", map[string]interface{}{"pairs": byQuality})
}

func (s *Scanner) feesByName() map[string]Fees {
	fees := make(map[string]Fees, len(s.cfg.Exchanges))
	for _, ex := range s.cfg.Exchanges {
		fees[ex.Name()] = ex.Fees()
	}
	return fees
}

func (s *Scanner) publish(topic string, payload interface{}) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(topic, payload)
}
