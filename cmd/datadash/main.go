package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spektr-org/datadash/config"
)

// ============================================================================
// DATADASH CLI — sales dashboards from any CSV or workbook
// ============================================================================

const version = "0.3.0"

var (
	configPath string
	logLevel   string
	cfg        = config.Default()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("datadash failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "datadash",
		Short:   "Sales dashboard engine for arbitrary tabular data",
		Version: version,
		Long: `datadash maps the columns of a CSV or Excel file onto sales roles
(date, sales, profit, customer, ...) and computes KPIs, monthly trends,
breakdowns, rankings, customer loyalty and return metrics.

Examples:
  datadash inspect --file orders.csv
  datadash report --file orders.csv --format pretty
  datadash report --file orders.csv --map sales=Amount --map date="Order Date" --format csv --out report.csv
  datadash serve --addr :8080`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newInspectCmd(), newReportCmd(), newServeCmd(), newVersionCmd())
	return rootCmd
}

// setup loads the config file and configures the global logger.
func setup(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level := cfg.LogLevel()
	if logLevel != "" {
		lvl, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		level = lvl
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("datadash %s\n", version)
		},
	}
}
