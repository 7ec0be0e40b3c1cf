// Package cmd implements the fmrx command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fmreceiver/config"
)

// Version is set at build time.
var Version = "dev"

var rootFlags = struct {
	config *string
	debug  *bool
}{}

var (
	cfg *config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:               "fmrx",
	Short:             "Control the FM receiver of a WiLink combo chip.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootFlags.config = rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (defaults to $FMRX_CONFIG)")
	rootFlags.debug = rootCmd.PersistentFlags().BoolP("debug", "d", false, "Log every transaction and event")
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	var err error
	if cfg, err = config.Load(*rootFlags.config); err != nil {
		return err
	}
	if *rootFlags.debug {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Log, cfg.Debug)
	if err != nil {
		return err
	}
	log = logger.Sugar()
	return nil
}
