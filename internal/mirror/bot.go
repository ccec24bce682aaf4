package mirror

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/portfolio"
	"github.com/edgefeed/signal-engine/pkg/config"
	"github.com/edgefeed/signal-engine/pkg/types"
)

// BotConfig holds mirror bot configuration.
type BotConfig struct {
	Logger              *zap.Logger
	Fetcher             *fetch.Client
	Bus                 *bus.Bus
	GammaAPIURL         string
	DataAPIURL          string
	StateDir            string
	PollInterval        time.Duration
	StartingBalanceUSDC float64
	Watched             []config.WatchedAddress
}

// Bot wires the address monitor to a mirror portfolio: opened positions on
// watched wallets open mirrored slots, closed positions close them. A price
// loop refreshes current prices on the poll interval.
type Bot struct {
	cfg       BotConfig
	logger    *zap.Logger
	monitor   *Monitor
	portfolio *portfolio.Portfolio

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewBot creates the mirror bot.
func NewBot(cfg *BotConfig) (*Bot, error) {
	b := &Bot{cfg: *cfg, logger: cfg.Logger}

	monitor, err := NewMonitor(&MonitorConfig{
		Logger:       cfg.Logger,
		Fetcher:      cfg.Fetcher,
		Bus:          cfg.Bus,
		DataAPIURL:   cfg.DataAPIURL,
		PollInterval: cfg.PollInterval,
		RosterPath:   filepath.Join(cfg.StateDir, "mirror_addresses.json"),
		Watched:      cfg.Watched,
		OnOpened:     b.onPositionOpened,
		OnClosed:     b.onPositionClosed,
	})
	if err != nil {
		return nil, err
	}
	b.monitor = monitor

	b.portfolio = portfolio.New(&portfolio.Config{
		Logger:              cfg.Logger,
		Bus:                 cfg.Bus,
		TopicPrefix:         "mirror_",
		StartingBalanceUSDC: cfg.StartingBalanceUSDC,
		Stats:               monitor,
		Fetcher:             cfg.Fetcher,
		GammaAPIURL:         cfg.GammaAPIURL,
	})

	return b, nil
}

// Start launches the address monitor and the price refresh loop.
func (b *Bot) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	b.logger.Info("mirror-bot-starting",
		zap.Float64("starting-balance-usdc", b.cfg.StartingBalanceUSDC))

	b.monitor.Start(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.portfolio.UpdatePrices(ctx)
			}
		}
	}()
}

// Close stops the monitor and the price loop.
func (b *Bot) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.monitor.Close()
	b.wg.Wait()
	b.logger.Info("mirror-bot-stopped")
}

// Monitor exposes the address monitor for roster commands and the state
// endpoint.
func (b *Bot) Monitor() *Monitor {
	return b.monitor
}

// Portfolio exposes the mirror portfolio for the state endpoint.
func (b *Bot) Portfolio() *portfolio.Portfolio {
	return b.portfolio
}

func (b *Bot) onPositionOpened(address, nickname string, pos types.DataPosition) {
	b.portfolio.Open(
		portfolio.Source{Nickname: nickname, Address: address},
		openRequestFromPosition(pos),
	)
}

func (b *Bot) onPositionClosed(address, nickname string, pos types.DataPosition) {
	b.portfolio.CloseByToken(
		portfolio.Source{Nickname: nickname, Address: address},
		openRequestFromPosition(pos),
	)
}

func openRequestFromPosition(pos types.DataPosition) portfolio.OpenRequest {
	return portfolio.OpenRequest{
		TokenID:  pos.Asset,
		MarketID: pos.ConditionID,
		Title:    pos.Title,
		Outcome:  pos.Outcome,
		Price:    pos.CurPrice,
	}
}
