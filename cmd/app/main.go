package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/config"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "app",
		Short:         "Task timer and prioritization API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to read (default .env, or .env.production in production)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == config.EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
