package datafeed

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	// edgeMoveThreshold is the price move that resolves a pending edge.
	edgeMoveThreshold = 0.02
	// edgeExpiry drops pending edges that never moved.
	edgeExpiry = 120 * time.Second
	// measurementsCap bounds the retained measurement history.
	measurementsCap = 200

	edgeStatsInterval = 60 * time.Second
)

// EdgeTrackerConfig holds edge tracker configuration.
type EdgeTrackerConfig struct {
	Logger      *zap.Logger
	Fetcher     *fetch.Client
	Bus         *bus.Bus
	GammaAPIURL string
	// MoveThreshold overrides edgeMoveThreshold when > 0.
	MoveThreshold float64
}

// EdgeTracker measures how quickly market prices react to live events. Each
// detected opportunity registers a pending edge; a 3s poll batches all
// pending tokens into one markets request and resolves edges whose price
// moved past the threshold.
type EdgeTracker struct {
	cfg       EdgeTrackerConfig
	logger    *zap.Logger
	threshold float64

	mu           sync.Mutex
	pending      map[string]*PendingEdge
	measurements []EdgeMeasurement
	lastStats    time.Time
}

// NewEdgeTracker creates an edge tracker.
func NewEdgeTracker(cfg *EdgeTrackerConfig) *EdgeTracker {
	threshold := cfg.MoveThreshold
	if threshold <= 0 {
		threshold = edgeMoveThreshold
	}
	return &EdgeTracker{
		cfg:       *cfg,
		logger:    cfg.Logger,
		threshold: threshold,
		pending:   make(map[string]*PendingEdge),
	}
}

// Register adds a pending edge; an existing edge with the same key is kept.
func (t *EdgeTracker) Register(edge *PendingEdge) {
	if edge.TokenID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[edge.Key]; exists {
		return
	}
	t.pending[edge.Key] = edge
}

// Pending returns the number of unresolved edges.
func (t *EdgeTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Measurements returns a snapshot of recorded measurements.
func (t *EdgeTracker) Measurements() []EdgeMeasurement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]EdgeMeasurement(nil), t.measurements...)
}

// Tick expires stale edges, fetches current prices for the rest in one
// batched request, and resolves edges whose price moved.
func (t *EdgeTracker) Tick(ctx context.Context) {
	now := time.Now()

	t.mu.Lock()
	tokens := make([]string, 0, len(t.pending))
	for key, edge := range t.pending {
		if now.Sub(edge.EventTS) > edgeExpiry {
			delete(t.pending, key)
			continue
		}
		tokens = append(tokens, edge.TokenID)
	}
	t.mu.Unlock()

	if len(tokens) > 0 {
		prices := t.fetchPrices(ctx, tokens)
		if prices != nil {
			t.resolve(now, prices)
		}
	}

	t.maybeEmitStats(now)
}

func (t *EdgeTracker) fetchPrices(ctx context.Context, tokens []string) map[string]float64 {
	var markets []types.Market
	err := t.cfg.Fetcher.GetJSON(ctx, t.cfg.GammaAPIURL+"/markets",
		map[string]string{"clobTokenIds": strings.Join(tokens, ",")},
		nil, &markets)
	if err != nil {
		t.logger.Warn("edge-price-fetch-failed", zap.Error(err))
		return nil
	}

	prices := make(map[string]float64)
	for i := range markets {
		var price float64
		switch {
		case markets[i].BestAsk != nil:
			price = *markets[i].BestAsk
		case markets[i].BestBid != nil:
			price = *markets[i].BestBid
		default:
			continue
		}
		for _, tid := range markets[i].ClobTokenIDs {
			prices[tid] = price
		}
	}

	return prices
}

func (t *EdgeTracker) resolve(now time.Time, prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, edge := range t.pending {
		current, ok := prices[edge.TokenID]
		if !ok {
			continue
		}
		if math.Abs(current-edge.InitialPrice) < t.threshold {
			continue
		}

		measurement := EdgeMeasurement{
			LatencySeconds:   now.Sub(edge.EventTS).Seconds(),
			PriceAtDetection: edge.InitialPrice,
			PriceAfterMove:   current,
			PriceDelta:       current - edge.InitialPrice,
			FeedSource:       edge.FeedSource,
		}
		t.measurements = append(t.measurements, measurement)
		if len(t.measurements) > measurementsCap {
			t.measurements = t.measurements[len(t.measurements)-measurementsCap:]
		}
		delete(t.pending, key)

		EdgeMeasurementsTotal.Inc()
		t.logger.Info("edge-resolved",
			zap.String("key", key),
			zap.Float64("latency-s", measurement.LatencySeconds),
			zap.Float64("price-delta", measurement.PriceDelta))
		t.publish("datafeed_edge_measurement", measurement)
	}
}

// maybeEmitStats publishes latency statistics at most once a minute.
func (t *EdgeTracker) maybeEmitStats(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.measurements) == 0 || now.Sub(t.lastStats) < edgeStatsInterval {
		return
	}
	t.lastStats = now

	latencies := make([]float64, len(t.measurements))
	sum := 0.0
	for i, m := range t.measurements {
		latencies[i] = m.LatencySeconds
		sum += m.LatencySeconds
	}
	sort.Float64s(latencies)

	n := len(latencies)
	p95Idx := int(float64(n) * 0.95)
	if p95Idx > n-1 {
		p95Idx = n - 1
	}

	t.publish("datafeed_edge_stats", map[string]interface{}{
		"total_tracked": n,
		"avg_latency_s": sum / float64(n),
		"p50_latency_s": latencies[n/2],
		"p95_latency_s": latencies[p95Idx],
	})
}

func (t *EdgeTracker) publish(topic string, payload interface{}) {
	if t.cfg.Bus == nil {
		return
	}
	t.cfg.Bus.Publish(topic, payload)
}
