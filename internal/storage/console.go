package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreOpportunity pretty-prints a confirmed opportunity to console.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *arb.Opportunity) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🎯 ARBITRAGE OPPORTUNITY DETECTED\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:       %s\n", opp.ID)
	fmt.Printf("Market:   %s\n", opp.MarketID)
	fmt.Printf("Question: %s\n", opp.Question)
	fmt.Printf("Time:     %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 PRICES\n")
	fmt.Printf("  YES Ask:  %.4f\n", opp.YesAsk)
	fmt.Printf("  NO Ask:   %.4f\n", opp.NoAsk)
	fmt.Printf("  Combined: %.2f%%\n", opp.CombinedPct)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("💰 PROFIT ANALYSIS\n")
	fmt.Printf("  Shares:          %.2f\n", opp.Shares)
	fmt.Printf("  Total Cost:      $%.2f\n", opp.TotalCostUSDC())
	fmt.Printf("  Expected Profit: $%.2f (%.2f%%)\n", opp.EstimatedProfitUSD, opp.ExpectedProfitPct)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
