package mirror

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/types"
)

// analysisTTL bounds how long a cached trade-flow analysis is served.
const analysisTTL = 300 * time.Second

// activityRecord is one entry from the data-api activity/trades endpoints.
type activityRecord struct {
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	UsdcSize  float64 `json:"usdcSize"`
	Timestamp int64   `json:"timestamp"`
	Outcome   string  `json:"outcome"`
	Title     string  `json:"title"`
}

// FlowAnalysis summarizes a watched address's historical BUY activity.
type FlowAnalysis struct {
	Address     string    `json:"address"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalBuys           int     `json:"total_buys"`
	OpenPositions       int     `json:"open_positions"`
	RedeemablePositions int     `json:"redeemable_positions"`
	TotalBuyVolumeUSDC  float64 `json:"total_buy_volume_usdc"`

	SizingPercentiles map[string]float64 `json:"sizing_percentiles"`
	SizingBuckets     map[string]int     `json:"sizing_buckets"`
	PriceBuckets      map[string]int     `json:"price_buckets"`
	OutcomeSplit      map[string]int     `json:"outcome_split"`
	Categories        map[string]int     `json:"categories"`

	AvgGapSeconds float64 `json:"avg_gap_s"`
	TradesPerDay  float64 `json:"trades_per_day"`
}

// AnalyzerConfig holds trade-flow analyzer configuration.
type AnalyzerConfig struct {
	Logger     *zap.Logger
	Fetcher    *fetch.Client
	Cache      cache.Cache
	DataAPIURL string
	// CachePath is the on-disk analysis cache, shared across restarts.
	CachePath string
}

// Analyzer produces one-shot trade-flow analyses of watched addresses.
// Results are cached in memory and on disk for five minutes.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger *zap.Logger
}

// NewAnalyzer creates a trade-flow analyzer.
func NewAnalyzer(cfg *AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: *cfg, logger: cfg.Logger}
}

// Analyze returns the trade-flow analysis for an address, serving a cached
// result when one is fresh.
func (a *Analyzer) Analyze(ctx context.Context, address string) (*FlowAnalysis, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	cacheKey := "flow_" + addr
	if a.cfg.Cache != nil {
		if v, ok := a.cfg.Cache.Get(cacheKey); ok {
			if analysis, ok := v.(*FlowAnalysis); ok {
				return analysis, nil
			}
		}
	}
	if analysis := a.loadFileCache(addr); analysis != nil {
		return analysis, nil
	}

	records, err := a.fetchActivity(ctx, addr)
	if err != nil {
		return nil, err
	}

	open, redeemable := a.fetchPositionCounts(ctx, addr)

	analysis := buildAnalysis(addr, records)
	analysis.OpenPositions = open
	analysis.RedeemablePositions = redeemable

	if a.cfg.Cache != nil {
		a.cfg.Cache.Set(cacheKey, analysis, analysisTTL)
	}
	a.saveFileCache(analysis)

	a.logger.Info("flow-analysis-generated",
		zap.String("address", addr),
		zap.Int("buys", analysis.TotalBuys))

	return analysis, nil
}

// fetchActivity pulls the address's history: /activity first, /trades as
// fallback when the activity endpoint rejects the request.
func (a *Analyzer) fetchActivity(ctx context.Context, addr string) ([]activityRecord, error) {
	params := map[string]string{"user": addr, "limit": "500"}

	var records []activityRecord
	err := a.cfg.Fetcher.GetJSON(ctx, a.cfg.DataAPIURL+"/activity", params, nil, &records)
	if err == nil {
		return records, nil
	}

	a.logger.Warn("activity-endpoint-failed-falling-back", zap.Error(err))
	if err := a.cfg.Fetcher.GetJSON(ctx, a.cfg.DataAPIURL+"/trades", params, nil, &records); err != nil {
		return nil, fmt.Errorf("fetch activity for %s: %w", addr, err)
	}

	return records, nil
}

func (a *Analyzer) fetchPositionCounts(ctx context.Context, addr string) (open, redeemable int) {
	for _, r := range []struct {
		redeemable string
		out        *int
	}{
		{"false", &open},
		{"true", &redeemable},
	} {
		resp, err := a.cfg.Fetcher.Get(ctx, a.cfg.DataAPIURL+"/positions", map[string]string{
			"user":          addr,
			"sizeThreshold": "0.01",
			"redeemable":    r.redeemable,
			"limit":         "500",
		}, nil)
		if err != nil {
			a.logger.Warn("position-count-fetch-failed", zap.Error(err))
			continue
		}
		positions, err := types.DecodePositions(resp.Body)
		if err != nil {
			continue
		}
		*r.out = len(positions)
	}

	return open, redeemable
}

// buildAnalysis computes the statistics over BUY records only.
func buildAnalysis(addr string, records []activityRecord) *FlowAnalysis {
	analysis := &FlowAnalysis{
		Address:           addr,
		GeneratedAt:       time.Now(),
		SizingPercentiles: map[string]float64{},
		SizingBuckets:     map[string]int{},
		PriceBuckets:      map[string]int{},
		OutcomeSplit:      map[string]int{},
		Categories:        map[string]int{},
	}

	var buys []activityRecord
	for _, r := range records {
		if strings.EqualFold(r.Side, "BUY") {
			buys = append(buys, r)
		}
	}
	analysis.TotalBuys = len(buys)
	if len(buys) == 0 {
		return analysis
	}

	sizes := make([]float64, 0, len(buys))
	timestamps := make([]int64, 0, len(buys))
	for _, b := range buys {
		analysis.TotalBuyVolumeUSDC += b.UsdcSize
		sizes = append(sizes, b.UsdcSize)
		if b.Timestamp > 0 {
			timestamps = append(timestamps, b.Timestamp)
		}

		analysis.SizingBuckets[sizeBucket(b.UsdcSize)]++
		analysis.PriceBuckets[priceBucket(b.Price)]++
		analysis.OutcomeSplit[strings.ToLower(b.Outcome)]++
		analysis.Categories[categorize(b.Title)]++
	}

	sort.Float64s(sizes)
	for _, p := range []struct {
		label string
		q     float64
	}{{"p25", 0.25}, {"p50", 0.50}, {"p75", 0.75}, {"p90", 0.90}} {
		idx := int(float64(len(sizes)) * p.q)
		if idx >= len(sizes) {
			idx = len(sizes) - 1
		}
		analysis.SizingPercentiles[p.label] = sizes[idx]
	}

	if len(timestamps) >= 2 {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
		span := timestamps[len(timestamps)-1] - timestamps[0]
		if span > 0 {
			analysis.AvgGapSeconds = float64(span) / float64(len(timestamps)-1)
			analysis.TradesPerDay = float64(len(timestamps)) / (float64(span) / 86400.0)
		}
	}

	return analysis
}

func sizeBucket(usdc float64) string {
	switch {
	case usdc < 10:
		return "<10"
	case usdc < 50:
		return "10-50"
	case usdc < 200:
		return "50-200"
	case usdc < 1000:
		return "200-1000"
	default:
		return ">1000"
	}
}

func priceBucket(price float64) string {
	if price <= 0 || price >= 1 {
		return "invalid"
	}
	lo := math.Floor(price*5) / 5
	return fmt.Sprintf("%.1f-%.1f", lo, lo+0.2)
}

var categoryKeywords = map[string][]string{
	"sports":   {"vs", "match", "game", "nba", "nfl", "cup", "league"},
	"crypto":   {"bitcoin", "btc", "ethereum", "eth", "crypto", "solana"},
	"politics": {"election", "president", "senate", "congress", "vote"},
}

func categorize(title string) string {
	lower := strings.ToLower(title)
	for _, cat := range []string{"sports", "crypto", "politics"} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return "other"
}

// fileCacheEntry is the on-disk analysis cache shape.
type fileCacheEntry struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Analyses    map[string]FlowAnalysis `json:"analyses"`
}

func (a *Analyzer) loadFileCache(addr string) *FlowAnalysis {
	if a.cfg.CachePath == "" {
		return nil
	}

	data, err := os.ReadFile(a.cfg.CachePath)
	if err != nil {
		return nil
	}

	var entry fileCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}

	analysis, ok := entry.Analyses[addr]
	if !ok || time.Since(analysis.GeneratedAt) > analysisTTL {
		return nil
	}

	return &analysis
}

func (a *Analyzer) saveFileCache(analysis *FlowAnalysis) {
	if a.cfg.CachePath == "" {
		return
	}

	entry := fileCacheEntry{GeneratedAt: time.Now(), Analyses: map[string]FlowAnalysis{}}
	if data, err := os.ReadFile(a.cfg.CachePath); err == nil {
		_ = json.Unmarshal(data, &entry)
		if entry.Analyses == nil {
			entry.Analyses = map[string]FlowAnalysis{}
		}
	}
	entry.Analyses[analysis.Address] = *analysis
	entry.GeneratedAt = time.Now()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.CachePath), 0o755); err != nil {
		a.logger.Warn("analysis-cache-dir-failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(a.cfg.CachePath, data, 0o644); err != nil {
		a.logger.Warn("analysis-cache-write-failed", zap.Error(err))
	}
}
