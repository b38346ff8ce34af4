// Package main is the entry point for the gamemaster server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gamemaster-api",
	Short: "AI game master orchestration server",
	Long: `gamemaster-api applies structured AI game-master responses to live
game sessions: turn-based combat, dice requests, and AI rerun/retry handling.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(demoCmd)
}
