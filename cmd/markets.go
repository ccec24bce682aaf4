package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/edgefeed/signal-engine/internal/arb"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/config"
	"github.com/edgefeed/signal-engine/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List active markets from the Gamma API",
	Long: `Fetches active markets and shows the combined-price estimate the
pre-screen uses (YES best ask + implied NO ask). Useful for checking what
the scanner sees without starting the engine.`,
	RunE: runMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to fetch")
	marketsCmd.Flags().StringP("tag", "t", "", "Filter markets by tag")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	limit, _ := cmd.Flags().GetInt("limit")
	tag, _ := cmd.Flags().GetString("tag")

	fetcher := fetch.New(&fetch.Config{Logger: logger, Timeout: cfg.HTTPTimeout})

	params := map[string]string{
		"active": "true",
		"closed": "false",
		"limit":  fmt.Sprintf("%d", limit),
	}
	if tag != "" {
		params["tag"] = tag
	}

	fmt.Printf("Fetching up to %d active markets...\n\n", limit)

	var markets []types.Market
	err = fetcher.GetJSON(ctx, cfg.GammaAPIURL+"/markets", params, nil, &markets)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	if len(markets) == 0 {
		fmt.Println("No active markets found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "QUESTION\tCOMBINED\tTOKENS\n")
	fmt.Fprintf(w, "--------\t--------\t------\n")

	for i := range markets {
		market := &markets[i]

		yesID, noID := arb.ExtractTokenIDs(market)
		tokensStatus := "✓"
		if yesID == "" || noID == "" {
			tokensStatus = "✗ (missing YES/NO)"
		}

		combined := "n/a"
		if market.BestAsk != nil && market.BestBid != nil {
			combined = fmt.Sprintf("%.4f", *market.BestAsk+(1.0-*market.BestBid))
		}

		question := market.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", question, combined, tokensStatus)
	}

	w.Flush()

	fmt.Printf("\nTotal: %d markets\n", len(markets))

	return nil
}
