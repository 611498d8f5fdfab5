package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Pulse chat client",
	Long:  "Headless Pulse chat client.\nKeeps a local conversation collection in sync with the backend and the push relay.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
