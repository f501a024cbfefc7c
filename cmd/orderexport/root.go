package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/orderexport/internal/infrastructure/config"
	"github.com/erp/orderexport/internal/infrastructure/logger"
)

// newRootCmd builds the orderexport command
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "orderexport",
		Short: "Export one day of Shopify orders to CSV",
		Long: `orderexport pages through every order created on one day in the shop's time zone
and writes one CSV row per order line item, with payment fields derived from
each order's transactions.

Credentials come from orderexport.toml, ORDEREXPORT_* variables, or the
SHOP / TOKEN / API_KEY / PASSWORD variables.

Example Usage:
  SHOP=acme TOKEN=shpat_xxx orderexport --date 2024-03-01
  SHOP=acme API_KEY=key PASSWORD=pass orderexport --max-records 100 --progress log`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []config.LoadOption{config.WithFlags(cmd.Flags())}
			if cfgFile != "" {
				opts = append(opts, config.WithConfigFile(cfgFile))
			}
			cfg, err := config.Load(opts...)
			if err != nil {
				return err
			}

			log, err := logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cfg.Log.Output,
				Name:   "orderexport",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync(log)
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, log = logger.WithRunID(ctx, log, logger.NewRunID())

			_, err = runExport(ctx, cfg, cmd.OutOrStdout(), log, time.Now)
			if err != nil {
				log.Error("Export failed", zap.Error(err))
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./orderexport.toml)")
	flags.String("date", "", "export date as YYYY-MM-DD (default is today in the shop's time zone)")
	flags.Int("max-records", 0, "maximum number of orders to export (0 means unlimited)")
	flags.Int("page-size", 0, "orders per page, 1-250 (default 50)")
	flags.String("output-dir", "", "directory for the CSV file (default is the working directory)")
	flags.String("progress", "", "progress display: console, log or none (default console)")
	flags.String("format", "", "output format: csv or xlsx (default csv)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	cmd.SetContext(context.Background())
	return cmd
}
