package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "signal-engine",
	Short: "Multi-strategy trading signal engine",
	Long: `Multi-strategy trading signal engine for prediction markets.

Scans Polymarket for within-market YES/NO arbitrage and paper-trades the
hits, mirrors watched wallets into a virtual portfolio, reacts to live
sports feeds before markets reprice, and scans crypto exchanges for
cross-venue spreads. Telemetry streams over an event bus to an ops HTTP
server.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
