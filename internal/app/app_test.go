package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
	"github.com/edgefeed/signal-engine/internal/portfolio"
	"github.com/edgefeed/signal-engine/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:    "info",
		HTTPPort:    "0",
		StateDir:    t.TempDir(),
		GammaAPIURL: "http://127.0.0.1:0",
		ClobAPIURL:  "http://127.0.0.1:0",
		DataAPIURL:  "http://127.0.0.1:0",
		HTTPTimeout: 2 * time.Second,

		MinProfitThresholdPct: 0.5,
		MaxTradeSizeUSDC:      100,
		MaxRiskPerTradeUSDC:   200,
		SlippageTolerancePct:  1.0,
		MinLiquidityUSDC:      50,
		PollingInterval:       time.Hour,
		MarketLimit:           200,

		PaperEnabled:             true,
		PaperStartingBalanceUSDC: 1000,

		ExecutionMode: "paper",
		StorageMode:   "console",
	}
}

func TestNewBuildsEnabledComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.MirrorEnabled = true
	cfg.MirrorPollInterval = time.Hour
	cfg.MirrorStartingBalanceUSDC = 20000
	cfg.MirrorAddresses = []config.WatchedAddress{
		{Address: "0x00000000000000000000000000000000000000aa", Nickname: "whale"},
	}
	cfg.DatafeedEnabled = true
	cfg.APIFootballKey = "test-key"
	cfg.DatafeedStartingBalanceUSDC = 20000
	cfg.FootballPollInterval = time.Hour
	cfg.SportradarPollInterval = time.Hour
	cfg.EdgeTrackerPollInterval = time.Hour
	cfg.MinEdgePct = 5
	cfg.EntryWindow = 45 * time.Second
	cfg.EdgePriceMoveThreshold = 0.02
	cfg.CryptoArbEnabled = true
	cfg.CryptoScanInterval = time.Hour
	cfg.CryptoStartingBalanceUSDC = 10000
	cfg.CryptoMinProfitPct = 0.3
	cfg.CryptoMaxPositionUSDC = 1000
	cfg.CryptoMaxPositionPct = 0.1
	cfg.CryptoOrderBookDepth = 10

	logger, _ := zap.NewDevelopment()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.cancel()

	if a.trader == nil {
		t.Error("paper trader not built")
	}
	if a.mirrorBot == nil {
		t.Error("mirror bot not built")
	}
	if a.datafeedBot == nil {
		t.Error("datafeed bot not built")
	}
	if a.cryptoScanner == nil {
		t.Error("crypto scanner not built")
	}
	if a.marketMonitor == nil || a.httpServer == nil || a.eventBus == nil {
		t.Error("core infrastructure not built")
	}

	state := a.stateSnapshot()
	for _, key := range []string{"mode", "paper", "mirror", "datafeed", "crypto_arb"} {
		if _, ok := state[key]; !ok {
			t.Errorf("state snapshot missing %q", key)
		}
	}
}

func TestNewMinimalConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.PaperEnabled = false

	logger, _ := zap.NewDevelopment()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.cancel()

	if a.trader != nil {
		t.Error("paper trader built while disabled")
	}
	if a.mirrorBot != nil || a.datafeedBot != nil || a.cryptoScanner != nil {
		t.Error("disabled bots were built")
	}

	state := a.stateSnapshot()
	if state["mode"] != "paper" {
		t.Errorf("mode = %v", state["mode"])
	}
	if _, ok := state["paper"]; ok {
		t.Error("state snapshot has paper section while disabled")
	}
}

func TestReferenceTitlesTracksMirrorPositions(t *testing.T) {
	cfg := testConfig(t)
	cfg.MirrorEnabled = true
	cfg.MirrorPollInterval = time.Hour
	cfg.MirrorStartingBalanceUSDC = 20000
	cfg.MirrorAddresses = []config.WatchedAddress{
		{Address: "0x00000000000000000000000000000000000000aa", Nickname: "whale"},
	}

	logger, _ := zap.NewDevelopment()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.cancel()

	titles := a.referenceTitles()
	if titles == nil {
		t.Fatal("referenceTitles = nil with mirror enabled")
	}
	if got := titles(); len(got) != 0 {
		t.Errorf("titles before any position = %v", got)
	}

	a.mirrorBot.Portfolio().Open(
		portfolio.Source{Nickname: "whale", Address: "0x00000000000000000000000000000000000000aa"},
		portfolio.OpenRequest{
			TokenID:  "tok-arsenal-yes",
			MarketID: "0xmatch",
			Title:    "Will Arsenal beat Chelsea?",
			Outcome:  "YES",
			Price:    0.4,
		})

	got := titles()
	if len(got) != 1 || got[0] != "Will Arsenal beat Chelsea?" {
		t.Errorf("titles = %v, want the open position's question", got)
	}
}

func TestReferenceTitlesNilWithoutMirror(t *testing.T) {
	cfg := testConfig(t)

	logger, _ := zap.NewDevelopment()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.cancel()

	if a.referenceTitles() != nil {
		t.Error("referenceTitles should be nil when mirror mode is off")
	}
}

func TestHandleOpportunityRunsGates(t *testing.T) {
	cfg := testConfig(t)

	logger, _ := zap.NewDevelopment()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.cancel()

	// Cost above the risk cap aborts at the first gate, before any
	// order-book fetch.
	opp := &arb.Opportunity{
		ID:          "test-opp",
		MarketID:    "0xcondition",
		Question:    "Oversized opportunity?",
		YesTokenID:  "tok-yes",
		NoTokenID:   "tok-no",
		YesAsk:      0.48,
		NoAsk:       0.49,
		Shares:      1000,
		YesCostUSDC: 480,
		NoCostUSDC:  490,
		DetectedAt:  time.Now(),
	}

	a.handleOpportunity(context.Background(), opp)

	snap := a.trader.Snapshot()
	if snap.OpportunitiesSeen != 1 {
		t.Errorf("opportunities seen = %d, want 1", snap.OpportunitiesSeen)
	}
	if snap.TradesAborted != 1 {
		t.Errorf("trades aborted = %d, want 1", snap.TradesAborted)
	}
	if snap.TradesExecuted != 0 {
		t.Errorf("trades executed = %d, want 0", snap.TradesExecuted)
	}
	if snap.BalanceUSDC != 1000 {
		t.Errorf("balance = %f, want untouched 1000", snap.BalanceUSDC)
	}
}
