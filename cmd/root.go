package cmd

import (
	"fmt"
	"os"

	"puzzle-ledger/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "puzzle-ledger",
	Short: "Puzzle Ledger Service",
	Long: `Puzzle Ledger reconciles screenshot scans of puzzle piece collections
into per-user inventories, with full scan history and rollback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Report through the standard logger in console format, matching
		// what a CLI user expects to see.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
