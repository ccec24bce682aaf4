// Package datafeed reacts to live sports feeds faster than prediction
// markets reprice. Feed pollers diff fixture snapshots into events; goals
// and red cards are matched to catalogue markets, priced against a fair
// value model, and mirrored into a paper portfolio while the edge tracker
// measures how fast the market caught up.
package datafeed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/portfolio"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	// dedupWindow suppresses repeated events with the same key.
	dedupWindow = 90 * time.Second

	pricePollInterval = 30 * time.Second
	priceBatchSize    = 20
)

// Feed is a live sports event source.
type Feed interface {
	Poll(ctx context.Context) ([]LiveEvent, error)
	Source() string
}

// BotConfig holds datafeed bot configuration.
type BotConfig struct {
	Logger              *zap.Logger
	Fetcher             *fetch.Client
	Bus                 *bus.Bus
	Cache               cache.Cache
	GammaAPIURL         string
	APIFootballKey      string
	SportradarAPIKey    string
	StartingBalanceUSDC float64

	FootballPollInterval   time.Duration
	SportradarPollInterval time.Duration
	EdgePollInterval       time.Duration
	MinEdgePct             float64
	EntryWindow            time.Duration
	EdgeMoveThreshold      float64

	// ReferenceTitles returns titles of positions held by a reference
	// portfolio (the mirror bot); fixtures whose teams appear there match
	// at a lower threshold.
	ReferenceTitles func() []string
}

// Bot runs the datafeed pipeline: feed polls, detection, a price loop and
// the edge tracker loop.
type Bot struct {
	cfg       BotConfig
	logger    *zap.Logger
	feeds     []Feed
	matcher   *Matcher
	detector  *Detector
	tracker   *EdgeTracker
	portfolio *portfolio.Portfolio

	mu       sync.Mutex
	lastSeen map[string]time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewBot creates the datafeed bot with one feed per configured API key.
func NewBot(cfg *BotConfig) *Bot {
	b := &Bot{
		cfg:      *cfg,
		logger:   cfg.Logger,
		lastSeen: make(map[string]time.Time),
	}

	if cfg.APIFootballKey != "" {
		b.feeds = append(b.feeds, NewFootballFeed(&FootballFeedConfig{
			Logger:  cfg.Logger,
			Fetcher: cfg.Fetcher,
			Bus:     cfg.Bus,
			APIKey:  cfg.APIFootballKey,
		}))
	}
	if cfg.SportradarAPIKey != "" {
		b.feeds = append(b.feeds, NewSportradarFeed(&SportradarFeedConfig{
			Logger:    cfg.Logger,
			Fetcher:   cfg.Fetcher,
			APIKey:    cfg.SportradarAPIKey,
			EnableNBA: true,
		}))
	}

	b.matcher = NewMatcher(&MatcherConfig{
		Logger:      cfg.Logger,
		Fetcher:     cfg.Fetcher,
		Cache:       cfg.Cache,
		GammaAPIURL: cfg.GammaAPIURL,
	})
	b.detector = NewDetector(cfg.Logger, cfg.MinEdgePct)
	b.tracker = NewEdgeTracker(&EdgeTrackerConfig{
		Logger:        cfg.Logger,
		Fetcher:       cfg.Fetcher,
		Bus:           cfg.Bus,
		GammaAPIURL:   cfg.GammaAPIURL,
		MoveThreshold: cfg.EdgeMoveThreshold,
	})
	b.portfolio = portfolio.New(&portfolio.Config{
		Logger:              cfg.Logger,
		Bus:                 cfg.Bus,
		TopicPrefix:         "datafeed_",
		StartingBalanceUSDC: cfg.StartingBalanceUSDC,
		Fetcher:             cfg.Fetcher,
		GammaAPIURL:         cfg.GammaAPIURL,
	})

	return b
}

// Start launches the feed, price and edge loops.
func (b *Bot) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	b.logger.Info("datafeed-bot-starting",
		zap.Int("feeds", len(b.feeds)),
		zap.Float64("min-edge-pct", b.cfg.MinEdgePct))

	for _, feed := range b.feeds {
		interval := b.cfg.FootballPollInterval
		if feed.Source() == sourceSportradar {
			interval = b.cfg.SportradarPollInterval
		}
		b.loop(ctx, interval, func(ctx context.Context) { b.pollFeed(ctx, feed) })
	}

	b.loop(ctx, pricePollInterval, b.priceStep)
	b.loop(ctx, b.cfg.EdgePollInterval, b.tracker.Tick)
}

// Close stops all loops.
func (b *Bot) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info("datafeed-bot-stopped")
}

// Portfolio exposes the datafeed portfolio for the state endpoint.
func (b *Bot) Portfolio() *portfolio.Portfolio {
	return b.portfolio
}

// Tracker exposes the edge tracker for the state endpoint.
func (b *Bot) Tracker() *EdgeTracker {
	return b.tracker
}

func (b *Bot) loop(ctx context.Context, interval time.Duration, step func(context.Context)) {
	if interval <= 0 {
		interval = time.Second
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				step(ctx)
			}
		}
	}()
}

func (b *Bot) pollFeed(ctx context.Context, feed Feed) {
	events, err := feed.Poll(ctx)
	if err != nil {
		b.logger.Warn("feed-poll-failed",
			zap.String("source", feed.Source()),
			zap.Error(err))
		return
	}

	for i := range events {
		b.handleEvent(ctx, &events[i])
	}
}

// handleEvent dedupes, publishes and, for goals and red cards, runs the
// match-and-detect pipeline.
func (b *Bot) handleEvent(ctx context.Context, event *LiveEvent) {
	if b.isDuplicate(event) {
		EventsDedupedTotal.Inc()
		return
	}

	EventsTotal.WithLabelValues(event.Source, string(event.Type)).Inc()
	if b.cfg.Bus != nil {
		b.cfg.Bus.Publish("datafeed_live_event", event)
	}

	if event.Type != Goal && event.Type != RedCard {
		return
	}
	if time.Since(event.DetectedAt) > b.cfg.EntryWindow {
		b.logger.Debug("event-outside-entry-window",
			zap.String("key", event.DedupKey()))
		return
	}

	var refTitles []string
	if b.cfg.ReferenceTitles != nil {
		refTitles = b.cfg.ReferenceTitles()
	}

	market, ok := b.matcher.Match(ctx, event.Home, event.Away, refTitles)
	if !ok {
		return
	}

	opp, ok := b.detector.Evaluate(event, market)
	if !ok {
		return
	}

	OpportunitiesTotal.WithLabelValues(string(market.Type)).Inc()
	if b.cfg.Bus != nil {
		b.cfg.Bus.Publish("datafeed_opportunity", opp)
	}

	tokenID := market.YesTokenID
	if opp.Side == "No" {
		tokenID = market.NoTokenID
	}

	b.portfolio.Open(
		portfolio.Source{Nickname: event.Source},
		portfolio.OpenRequest{
			TokenID:  tokenID,
			MarketID: market.ConditionID,
			Title:    market.Question,
			Outcome:  opp.Side,
			Price:    market.Price,
		},
	)

	b.tracker.Register(&PendingEdge{
		Key:          fmt.Sprintf("%d_%s_%d", event.FixtureID, event.Type, event.Minute),
		TokenID:      market.YesTokenID,
		ConditionID:  market.ConditionID,
		InitialPrice: market.Price,
		EventTS:      event.DetectedAt,
		FeedSource:   event.Source,
	})
}

// isDuplicate checks the 90s dedup window, garbage-collecting expired
// entries on every event.
func (b *Bot) isDuplicate(event *LiveEvent) bool {
	key := event.DedupKey()
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, seen := range b.lastSeen {
		if now.Sub(seen) > dedupWindow {
			delete(b.lastSeen, k)
		}
	}

	if _, seen := b.lastSeen[key]; seen {
		return true
	}
	b.lastSeen[key] = now

	return false
}

// priceStep refreshes position prices and closes positions whose market is
// no longer active, settling at the published outcome price.
func (b *Bot) priceStep(ctx context.Context) {
	b.portfolio.UpdatePrices(ctx)

	positions := b.portfolio.Positions()
	if len(positions) == 0 {
		return
	}

	tokens := make([]string, 0, len(positions))
	for _, pos := range positions {
		tokens = append(tokens, pos.TokenID)
	}

	for i := 0; i < len(tokens); i += priceBatchSize {
		end := i + priceBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}

		var markets []types.Market
		err := b.cfg.Fetcher.GetJSON(ctx, b.cfg.GammaAPIURL+"/markets",
			map[string]string{"clobTokenIds": strings.Join(tokens[i:end], ",")},
			nil, &markets)
		if err != nil {
			b.logger.Warn("inactive-market-check-failed", zap.Error(err))
			return
		}

		for mi := range markets {
			if markets[mi].Active && !markets[mi].Closed {
				continue
			}

			settle := 0.5
			if len(markets[mi].OutcomePrices) > 0 {
				settle = markets[mi].OutcomePrices[0]
			}
			for _, tid := range markets[mi].ClobTokenIDs {
				b.portfolio.CloseByToken(
					portfolio.Source{Nickname: "datafeed"},
					portfolio.OpenRequest{TokenID: tid, Price: settle},
				)
			}
		}
	}
}

func decodeJSON(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}
