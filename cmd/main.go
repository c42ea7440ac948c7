package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "AI model battle arena",
	Long: `Arena pits two AI models against each other on a prompt, lets users
vote for the better answer and keeps an ELO leaderboard of the results.

Without a subcommand the HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, leaderboardCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
