package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/commune-insights/internal/config"
	"github.com/yourorg/commune-insights/internal/logger"
)

var (
	cfg *config.Config
	log *logrus.Logger

	rootCmd = &cobra.Command{
		Use:   "communectl",
		Short: "Property market and demographic insights for French communes",
		Long: `communectl resolves a French commune, collects its recorded property
sales, price estimates and housing figures, and prints or exports the analysis.

Configuration comes from the environment (PORT, PG_DSN, REDIS_ADDR, BATCH_*...).`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json); overrides LOG_FORMAT")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(batchCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		c.LogFormat = v
	}
	cfg = c
	log = logger.New(c.LogLevel, c.LogFormat)
	log.SetOutput(os.Stderr)
	return nil
}
