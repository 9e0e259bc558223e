package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "crewkit",
	Short: "Crewkit — team and referral management service",
	Long:  "Crewkit manages teams with a single leader, referral-code onboarding, Pro credit grants bounded by a per-team wallet cap, and a global product catalog.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/crewkit.yaml)")
}

func main() {
	// A missing .env is fine; env vars may come from the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
