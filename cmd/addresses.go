package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/mirror"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "Manage the mirror-mode address roster",
	Long: `Manage the persistent roster of wallets mirrored by mirror mode.

The roster lives in STATE_DIR/mirror_addresses.json and survives
restarts; changes made here are picked up the next time the engine
starts.

Examples:
  # List all watched addresses
  go run . addresses list

  # Watch a new address
  go run . addresses add 0xabc... --nickname whale

  # Stop watching an address
  go run . addresses remove 0xabc...

  # Analyze an address's historical trade flow
  go run . addresses analyze 0xabc...`,
}

//nolint:gochecknoglobals // Cobra boilerplate
var addressesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched addresses",
	RunE:  runAddressesList,
}

//nolint:gochecknoglobals // Cobra boilerplate
var addressesAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Add an address to the roster",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddressesAdd,
}

//nolint:gochecknoglobals // Cobra boilerplate
var addressesRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove an address from the roster",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddressesRemove,
}

//nolint:gochecknoglobals // Cobra boilerplate
var addressesAnalyzeCmd = &cobra.Command{
	Use:   "analyze <address>",
	Short: "Analyze an address's historical trade flow",
	Long: `Fetches the address's BUY activity and open positions from the data
API and prints sizing percentiles, size and price distributions,
outcome split, market categories and timing stats as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runAddressesAnalyze,
}

//nolint:gochecknoglobals
var addNickname string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(addressesCmd)
	addressesCmd.AddCommand(addressesListCmd)
	addressesCmd.AddCommand(addressesAddCmd)
	addressesCmd.AddCommand(addressesRemoveCmd)
	addressesCmd.AddCommand(addressesAnalyzeCmd)

	addressesAddCmd.Flags().StringVarP(&addNickname, "nickname", "n", "", "Display name for the address")
}

// rosterMonitor builds an address monitor for roster CRUD without starting
// its poll loop.
func rosterMonitor() (*mirror.Monitor, *config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	fetcher := fetch.New(&fetch.Config{Logger: logger, Timeout: cfg.HTTPTimeout})

	monitor, err := mirror.NewMonitor(&mirror.MonitorConfig{
		Logger:       logger,
		Fetcher:      fetcher,
		DataAPIURL:   cfg.DataAPIURL,
		PollInterval: cfg.MirrorPollInterval,
		RosterPath:   filepath.Join(cfg.StateDir, "mirror_addresses.json"),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load roster: %w", err)
	}

	return monitor, cfg, logger, nil
}

func runAddressesList(cmd *cobra.Command, args []string) error {
	monitor, _, logger, err := rosterMonitor()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	addresses := monitor.Addresses()
	if len(addresses) == 0 {
		fmt.Println("No watched addresses.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ADDRESS\tNICKNAME\tENABLED\tHEALTH\n")
	fmt.Fprintf(w, "-------\t--------\t-------\t------\n")
	for _, a := range addresses {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", a.Address, a.Nickname, a.Enabled, a.Health)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d addresses\n", len(addresses))

	return nil
}

func runAddressesAdd(cmd *cobra.Command, args []string) error {
	monitor, _, logger, err := rosterMonitor()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	nickname := addNickname
	if nickname == "" {
		nickname = args[0]
	}

	err = monitor.AddAddress(args[0], nickname)
	if err != nil {
		return fmt.Errorf("add address: %w", err)
	}

	fmt.Printf("Added %s (%s)\n", args[0], nickname)

	return nil
}

func runAddressesRemove(cmd *cobra.Command, args []string) error {
	monitor, _, logger, err := rosterMonitor()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	err = monitor.RemoveAddress(args[0])
	if err != nil {
		return fmt.Errorf("remove address: %w", err)
	}

	fmt.Printf("Removed %s\n", args[0])

	return nil
}

func runAddressesAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
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
	defer func() { _ = logger.Sync() }()

	analysisCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer analysisCache.Close()

	analyzer := mirror.NewAnalyzer(&mirror.AnalyzerConfig{
		Logger:     logger,
		Fetcher:    fetch.New(&fetch.Config{Logger: logger, Timeout: cfg.HTTPTimeout}),
		Cache:      analysisCache,
		DataAPIURL: cfg.DataAPIURL,
		CachePath:  filepath.Join(cfg.StateDir, "flow_analysis.json"),
	})

	analysis, err := analyzer.Analyze(ctx, args[0])
	if err != nil {
		return fmt.Errorf("analyze address: %w", err)
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	fmt.Println(string(out))

	return nil
}
