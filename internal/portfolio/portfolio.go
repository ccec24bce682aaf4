// Package portfolio implements the slot-limited virtual portfolio shared by
// the mirror and datafeed bots. Capital is allocated in fixed-size slots;
// opens beyond the slot or balance limit are queued and drained greedily
// when a slot frees up.
package portfolio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	// Slots is the number of concurrent positions.
	Slots = 40
	// SlotSizeUSDC is the fixed capital allocation per position. A
	// documented constant, not a config knob.
	SlotSizeUSDC = 500.0

	// priceBatchSize keeps the clobTokenIds query parameter within URL
	// length limits.
	priceBatchSize = 20
)

// StatsSink receives per-source trade statistics. Optional.
type StatsSink interface {
	TradeMirrored(address string)
	TradeClosed(address string, result Result, pnlUSDC float64)
}

// Config holds portfolio configuration.
type Config struct {
	Logger *zap.Logger
	Bus    *bus.Bus
	// TopicPrefix namespaces bus topics, e.g. "mirror_" or "datafeed_".
	TopicPrefix         string
	StartingBalanceUSDC float64
	Stats               StatsSink
	Fetcher             *fetch.Client
	GammaAPIURL         string
}

// Portfolio is a 40-slot position book. All mutations are serialized on a
// single mutex; callbacks from the address monitor and the price loop may
// arrive concurrently.
type Portfolio struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	balance   float64
	realized  float64
	positions map[string]*Position // token id -> position
	queue     []*QueuedTrade
	resolved  []*ResolvedTrade // most recent first, capped
}

const resolvedCap = 50

// New creates a portfolio with the configured starting balance.
func New(cfg *Config) *Portfolio {
	return &Portfolio{
		cfg:       *cfg,
		logger:    cfg.Logger,
		balance:   cfg.StartingBalanceUSDC,
		positions: make(map[string]*Position),
	}
}

// Open attempts to open a position. Duplicate tokens (open or queued) are
// dropped; when slots or balance run out the trade is queued instead.
// Returns the new position, or nil when queued or deduplicated.
func (p *Portfolio) Open(src Source, req OpenRequest) *Position {
	if req.TokenID == "" {
		p.logger.Warn("open-position-missing-token-id")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, open := p.positions[req.TokenID]; open {
		return nil
	}
	for _, q := range p.queue {
		if q.TokenID == req.TokenID {
			return nil
		}
	}

	entryPrice := req.Price
	if entryPrice == 0 {
		entryPrice = 0.5
	}

	if len(p.positions) >= Slots || p.balance < SlotSizeUSDC {
		qt := &QueuedTrade{
			ID:                 shortID(),
			MarketID:           req.MarketID,
			Question:           truncate(req.Title, 100),
			TokenID:            req.TokenID,
			Outcome:            defaultOutcome(req.Outcome),
			EntryPrice:         entryPrice,
			TriggeredBy:        src.Nickname,
			TriggeredByAddress: src.Address,
			QueuedAt:           time.Now(),
		}
		p.queue = append(p.queue, qt)
		QueueSize.WithLabelValues(p.cfg.TopicPrefix).Set(float64(len(p.queue)))

		p.logger.Info("trade-queued",
			zap.String("source", src.Nickname),
			zap.String("question", truncate(qt.Question, 50)),
			zap.Int("queue-size", len(p.queue)))

		p.emitQueue()
		return nil
	}

	position := p.createPosition(src, req, entryPrice)
	p.positions[req.TokenID] = position
	p.balance -= SlotSizeUSDC
	if p.cfg.Stats != nil {
		p.cfg.Stats.TradeMirrored(src.Address)
	}

	SlotsUsed.WithLabelValues(p.cfg.TopicPrefix).Set(float64(len(p.positions)))

	p.logger.Info("position-opened",
		zap.String("source", src.Nickname),
		zap.String("question", truncate(position.Question, 50)),
		zap.Float64("entry-price", entryPrice),
		zap.Int("slots-used", len(p.positions)))

	p.publish("position_opened", position.view())
	p.emitPositions()
	p.emitOverview()

	return position
}

// CloseByToken closes the open position for the request's token. No-op when
// the token is not open. The freed slot is refilled from the queue.
func (p *Portfolio) CloseByToken(src Source, req OpenRequest) *ResolvedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()

	position, open := p.positions[req.TokenID]
	if !open {
		return nil
	}
	delete(p.positions, req.TokenID)

	exitPrice := req.Price
	if exitPrice == 0 {
		exitPrice = position.EntryPrice
	}

	pnl := (exitPrice - position.EntryPrice) * position.Shares
	result := classify(pnl)

	resolved := &ResolvedTrade{
		Question:        position.Question,
		Outcome:         position.Outcome,
		EntryPrice:      position.EntryPrice,
		ExitPrice:       exitPrice,
		Shares:          position.Shares,
		USDCDeployed:    position.USDCDeployed,
		PnLUSDC:         pnl,
		DurationSeconds: time.Since(position.OpenedAt).Seconds(),
		TriggeredBy:     position.TriggeredBy,
		ResolvedAt:      time.Now(),
		Result:          result,
	}

	p.balance += SlotSizeUSDC + pnl
	p.realized += pnl
	p.resolved = append([]*ResolvedTrade{resolved}, p.resolved...)
	if len(p.resolved) > resolvedCap {
		p.resolved = p.resolved[:resolvedCap]
	}

	if p.cfg.Stats != nil {
		p.cfg.Stats.TradeClosed(src.Address, result, pnl)
	}

	TradesClosedTotal.WithLabelValues(p.cfg.TopicPrefix, string(result)).Inc()
	SlotsUsed.WithLabelValues(p.cfg.TopicPrefix).Set(float64(len(p.positions)))

	p.logger.Info("position-closed",
		zap.String("source", src.Nickname),
		zap.String("question", truncate(position.Question, 40)),
		zap.String("result", string(result)),
		zap.Float64("pnl-usdc", pnl))

	p.publish("position_closed", resolved)
	p.emitPositions()
	p.emitOverview()
	p.drainQueue()

	return resolved
}

// drainQueue fills freed slots from the queue head while slots and balance
// allow. Drained trades carry their original source labels but bypass the
// stats sink; the queued source may no longer be registered.
func (p *Portfolio) drainQueue() {
	for len(p.queue) > 0 && len(p.positions) < Slots && p.balance >= SlotSizeUSDC {
		qt := p.queue[0]
		p.queue = p.queue[1:]

		src := Source{Nickname: qt.TriggeredBy, Address: qt.TriggeredByAddress}
		req := OpenRequest{
			TokenID:  qt.TokenID,
			MarketID: qt.MarketID,
			Title:    qt.Question,
			Outcome:  qt.Outcome,
			Price:    qt.EntryPrice,
		}

		position := p.createPosition(src, req, qt.EntryPrice)
		p.positions[qt.TokenID] = position
		p.balance -= SlotSizeUSDC

		p.logger.Info("dequeued-position-opened",
			zap.String("question", truncate(position.Question, 50)),
			zap.Float64("entry-price", qt.EntryPrice),
			zap.Int("queue-remaining", len(p.queue)))

		p.publish("position_opened", position.view())
	}

	QueueSize.WithLabelValues(p.cfg.TopicPrefix).Set(float64(len(p.queue)))
	SlotsUsed.WithLabelValues(p.cfg.TopicPrefix).Set(float64(len(p.positions)))

	p.emitQueue()
	p.emitPositions()
	p.emitOverview()
}

// UpdatePrices refreshes current prices on all open positions from the
// markets endpoint, batching token ids to stay within URL length limits.
func (p *Portfolio) UpdatePrices(ctx context.Context) {
	p.mu.Lock()
	tokenIDs := make([]string, 0, len(p.positions))
	for id := range p.positions {
		tokenIDs = append(tokenIDs, id)
	}
	p.mu.Unlock()

	if len(tokenIDs) == 0 {
		return
	}

	for i := 0; i < len(tokenIDs); i += priceBatchSize {
		end := i + priceBatchSize
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}

		var markets []types.Market
		err := p.cfg.Fetcher.GetJSON(ctx, p.cfg.GammaAPIURL+"/markets",
			map[string]string{"clobTokenIds": strings.Join(tokenIDs[i:end], ",")},
			nil, &markets)
		if err != nil {
			p.logger.Warn("price-update-failed", zap.Error(err))
			return
		}

		p.mu.Lock()
		for mi := range markets {
			p.applyMarketPrice(&markets[mi])
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.emitPositions()
	p.emitOverview()
	p.mu.Unlock()
}

// applyMarketPrice sets current price to bestAsk, falling back to bestBid.
// Caller holds p.mu.
func (p *Portfolio) applyMarketPrice(mkt *types.Market) {
	var price float64
	switch {
	case mkt.BestAsk != nil:
		price = *mkt.BestAsk
	case mkt.BestBid != nil:
		price = *mkt.BestBid
	default:
		return
	}

	for _, tid := range mkt.ClobTokenIDs {
		if pos, open := p.positions[tid]; open {
			pos.CurrentPrice = price
		}
	}
}

// Overview returns the portfolio summary.
func (p *Portfolio) Overview() Overview {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overviewLocked()
}

func (p *Portfolio) overviewLocked() Overview {
	unrealized := 0.0
	for _, pos := range p.positions {
		unrealized += pos.UnrealizedPnL()
	}

	return Overview{
		BalanceUSDC:   p.balance,
		RealizedPnL:   p.realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realized + unrealized,
		SlotsUsed:     len(p.positions),
		SlotsTotal:    Slots,
		QueueSize:     len(p.queue),
		TotalDeployed: float64(len(p.positions)) * SlotSizeUSDC,
	}
}

// Positions returns a snapshot of open positions.
func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// Queue returns a snapshot of queued trades in FIFO order.
func (p *Portfolio) Queue() []QueuedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]QueuedTrade, 0, len(p.queue))
	for _, q := range p.queue {
		out = append(out, *q)
	}
	return out
}

// Resolved returns up to limit resolved trades, most recent first.
func (p *Portfolio) Resolved(limit int) []ResolvedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || limit > len(p.resolved) {
		limit = len(p.resolved)
	}
	out := make([]ResolvedTrade, 0, limit)
	for _, r := range p.resolved[:limit] {
		out = append(out, *r)
	}
	return out
}

// Reset clears all state back to the starting balance.
func (p *Portfolio) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.balance = p.cfg.StartingBalanceUSDC
	p.realized = 0
	p.positions = make(map[string]*Position)
	p.queue = nil
	p.resolved = nil

	p.emitOverview()
	p.emitPositions()
	p.emitQueue()
}

func (p *Portfolio) createPosition(src Source, req OpenRequest, entryPrice float64) *Position {
	shares := 0.0
	if entryPrice > 0 {
		shares = SlotSizeUSDC / entryPrice
	}

	return &Position{
		ID:                 shortID(),
		MarketID:           req.MarketID,
		Question:           truncate(defaultTitle(req.Title), 100),
		TokenID:            req.TokenID,
		Outcome:            defaultOutcome(req.Outcome),
		EntryPrice:         entryPrice,
		CurrentPrice:       entryPrice,
		Shares:             shares,
		USDCDeployed:       SlotSizeUSDC,
		OpenedAt:           time.Now(),
		TriggeredBy:        src.Nickname,
		TriggeredByAddress: src.Address,
	}
}

// Emitters. Callers hold p.mu.

func (p *Portfolio) emitOverview() {
	p.publish("overview", p.overviewLocked())
}

func (p *Portfolio) emitPositions() {
	views := make([]positionView, 0, len(p.positions))
	for _, pos := range p.positions {
		views = append(views, pos.view())
	}
	p.publish("positions", map[string]interface{}{"positions": views})
}

func (p *Portfolio) emitQueue() {
	out := make([]QueuedTrade, 0, len(p.queue))
	for _, q := range p.queue {
		out = append(out, *q)
	}
	p.publish("queue", map[string]interface{}{"queue": out})
}

func (p *Portfolio) publish(topic string, payload interface{}) {
	if p.cfg.Bus == nil {
		return
	}
	p.cfg.Bus.Publish(p.cfg.TopicPrefix+topic, payload)
}

func shortID() string {
	return uuid.New().String()[:8]
}

func defaultOutcome(outcome string) string {
	if outcome == "" {
		return "Yes"
	}
	return outcome
}

func defaultTitle(title string) string {
	if title == "" {
		return "Unknown market"
	}
	return title
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
