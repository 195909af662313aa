package main

import (
	"fmt"
	"os"

	"github.com/Ananth-NQI/soko-ussd/internal/config"
	"github.com/Ananth-NQI/soko-ussd/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "soko-ussd",
	Short: "USSD service for Mwenge market traders",
	Long: `soko-ussd answers USSD gateway callbacks so market traders can pay daily dues,
rent stalls, check their payment history and report problems from any phone.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", "environments/.env.development"},
		"dotenv files to load before reading the environment")
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel), nil
}
