package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chanbridge",
	Short: "chanbridge is a multi-channel messaging gateway",
	Long: `chanbridge connects multiple chat platforms (Telegram, Discord,
Feishu, DingTalk) behind one normalized message model, with per-channel
allowlists and a single host-facing callback surface.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
