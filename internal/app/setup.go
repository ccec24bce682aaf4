package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/cryptoarb"
	"github.com/edgefeed/signal-engine/internal/datafeed"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/mirror"
	"github.com/edgefeed/signal-engine/internal/paper"
	"github.com/edgefeed/signal-engine/internal/storage"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/config"
	"github.com/edgefeed/signal-engine/pkg/healthprobe"
	"github.com/edgefeed/signal-engine/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
	}

	a.eventBus = bus.New(&bus.Config{Logger: logger})
	a.fetcher = fetch.New(&fetch.Config{
		Logger:  logger,
		Timeout: cfg.HTTPTimeout,
	})

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	a.appCache = appCache

	a.store, err = setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	if cfg.PaperEnabled {
		a.trader, err = paper.New(&paper.Config{
			Logger:               logger,
			Fetcher:              a.fetcher,
			Bus:                  a.eventBus,
			ClobAPIURL:           cfg.ClobAPIURL,
			MaxTradePerSideUSDC:  cfg.MaxTradeSizeUSDC,
			MaxRiskUSDC:          cfg.MaxRiskPerTradeUSDC,
			SlippageTolerancePct: cfg.SlippageTolerancePct,
			MinLiquidityUSDC:     cfg.MinLiquidityUSDC,
			StartingBalanceUSDC:  cfg.PaperStartingBalanceUSDC,
			StatePath:            filepath.Join(cfg.StateDir, "paper_state.json"),
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup paper trader: %w", err)
		}
	}

	a.marketMonitor = arb.New(&arb.Config{
		Logger:      logger,
		Fetcher:     a.fetcher,
		Bus:         a.eventBus,
		GammaAPIURL: cfg.GammaAPIURL,
		ClobAPIURL:  cfg.ClobAPIURL,
		MarketTag:   cfg.MarketTag,
		MarketLimit: cfg.MarketLimit,
		Interval:    cfg.PollingInterval,
		Limits: arb.Limits{
			MaxTradePerSideUSDC: cfg.MaxTradeSizeUSDC,
			MaxRiskUSDC:         cfg.MaxRiskPerTradeUSDC,
			MinProfitPct:        cfg.MinProfitThresholdPct,
		},
		OnOpportunity: a.handleOpportunity,
	})

	if cfg.MirrorEnabled {
		a.mirrorBot, err = mirror.NewBot(&mirror.BotConfig{
			Logger:              logger,
			Fetcher:             a.fetcher,
			Bus:                 a.eventBus,
			GammaAPIURL:         cfg.GammaAPIURL,
			DataAPIURL:          cfg.DataAPIURL,
			StateDir:            cfg.StateDir,
			PollInterval:        cfg.MirrorPollInterval,
			StartingBalanceUSDC: cfg.MirrorStartingBalanceUSDC,
			Watched:             cfg.MirrorAddresses,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup mirror bot: %w", err)
		}
	}

	if cfg.DatafeedEnabled {
		a.datafeedBot = datafeed.NewBot(&datafeed.BotConfig{
			Logger:                 logger,
			Fetcher:                a.fetcher,
			Bus:                    a.eventBus,
			Cache:                  a.appCache,
			GammaAPIURL:            cfg.GammaAPIURL,
			APIFootballKey:         cfg.APIFootballKey,
			SportradarAPIKey:       cfg.SportradarAPIKey,
			StartingBalanceUSDC:    cfg.DatafeedStartingBalanceUSDC,
			FootballPollInterval:   cfg.FootballPollInterval,
			SportradarPollInterval: cfg.SportradarPollInterval,
			EdgePollInterval:       cfg.EdgeTrackerPollInterval,
			MinEdgePct:             cfg.MinEdgePct,
			EntryWindow:            cfg.EntryWindow,
			EdgeMoveThreshold:      cfg.EdgePriceMoveThreshold,
			ReferenceTitles:        a.referenceTitles(),
		})
	}

	if cfg.CryptoArbEnabled {
		a.cryptoScanner = cryptoarb.NewScanner(&cryptoarb.ScannerConfig{
			Logger: logger,
			Bus:    a.eventBus,
			Exchanges: []cryptoarb.Exchange{
				cryptoarb.NewCoinbase(logger, a.fetcher, ""),
				cryptoarb.NewKraken(logger, a.fetcher, ""),
			},
			ScanInterval:        cfg.CryptoScanInterval,
			MinProfitPct:        cfg.CryptoMinProfitPct,
			MaxPositionUSDC:     cfg.CryptoMaxPositionUSDC,
			MaxPositionPct:      cfg.CryptoMaxPositionPct,
			MinVolumeUSDC:       cfg.CryptoMin24hVolumeUSDC,
			MaxVolumeUSDC:       cfg.CryptoMax24hVolumeUSDC,
			Depth:               cfg.CryptoOrderBookDepth,
			MaxBookAge:          cfg.CryptoMaxBookAge,
			StartingBalanceUSDC: cfg.CryptoStartingBalanceUSDC,
		})
	}

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Bus:           a.eventBus,
		State:         a.stateSnapshot,
	})

	return a, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// handleOpportunity records every confirmed opportunity and hands it to the
// paper trader when one is running.
func (a *App) handleOpportunity(ctx context.Context, opp *arb.Opportunity) {
	if err := a.store.StoreOpportunity(ctx, opp); err != nil {
		a.logger.Warn("store-opportunity-failed",
			zap.String("opportunity-id", opp.ID),
			zap.Error(err))
	}

	if a.trader != nil {
		a.trader.Execute(ctx, opp)
	}
}

// referenceTitles exposes the mirror portfolio's open position titles to
// the datafeed matcher.
func (a *App) referenceTitles() func() []string {
	if a.mirrorBot == nil {
		return nil
	}

	p := a.mirrorBot.Portfolio()
	return func() []string {
		positions := p.Positions()
		titles := make([]string, 0, len(positions))
		for _, pos := range positions {
			titles = append(titles, pos.Question)
		}
		return titles
	}
}

// stateSnapshot aggregates every running component into the /api/v1/state
// payload.
func (a *App) stateSnapshot() map[string]interface{} {
	state := map[string]interface{}{
		"mode": a.cfg.ExecutionMode,
	}

	if a.trader != nil {
		state["paper"] = a.trader.Snapshot()
	}
	if a.mirrorBot != nil {
		state["mirror"] = map[string]interface{}{
			"overview":  a.mirrorBot.Portfolio().Overview(),
			"addresses": a.mirrorBot.Monitor().Addresses(),
		}
	}
	if a.datafeedBot != nil {
		state["datafeed"] = map[string]interface{}{
			"overview": a.datafeedBot.Portfolio().Overview(),
		}
	}
	if a.cryptoScanner != nil {
		state["crypto_arb"] = a.cryptoScanner.Overview()
	}

	return state
}
