// Package main provides the entry point for the decision advisor backend.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Decision Advisor backend",
	Long:  "Decision Advisor routes user questions to domain-specific prompt modes, calls the Gemini API with quota enforcement and model fallback, and serves the result over a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
