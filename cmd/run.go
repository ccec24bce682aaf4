package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/edgefeed/signal-engine/internal/app"
	"github.com/edgefeed/signal-engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the signal engine",
	Long: `Starts the signal engine, which will:
1. Scan active markets for within-market YES/NO arbitrage
2. Paper-trade confirmed opportunities through pre-trade gates
3. Run the enabled strategy bots (mirror, datafeed, crypto-arb)
4. Serve metrics, state and the event stream over HTTP

Bots are enabled via MIRROR_MODE_ENABLED, DATAFEED_MODE_ENABLED and
CRYPTO_ARB_MODE_ENABLED.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	// .env is optional; environment variables win.
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

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
