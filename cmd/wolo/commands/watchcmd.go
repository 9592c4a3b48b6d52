package commands

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Stream a running session's events (same as -w)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchSession(args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
