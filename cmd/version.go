package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Args:  cobra.NoArgs,
	Run: func(*cobra.Command, []string) {
		fmt.Println("fmrx", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
