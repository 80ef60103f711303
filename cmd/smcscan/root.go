package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/app"
	"smc-signal-engine/internal/logging"
)

// options are the flags shared by every subcommand
type options struct {
	configPath string
	mock       bool
	logLevel   string
	jsonOut    bool
	persist    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "smcscan",
		Short: "Multi-timeframe market structure signal scanner",
		Long: `smcscan evaluates symbols across the strategic, tactical and execution
timeframes and prints the resulting trade signals with their evidence.

Examples:
  smcscan analyze BTCUSDT --mock
  smcscan scan --symbols BTCUSDT,ETHUSDT --json
  smcscan sample-config config.json`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Configuration file")
	root.PersistentFlags().BoolVar(&opts.mock, "mock", false, "Use simulated market data")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.persist, "persist", false, "Store signals in the configured store instead of memory")

	root.AddCommand(
		newScanCmd(opts),
		newAnalyzeCmd(opts),
		newSampleConfigCmd(),
		newTokenCmd(opts),
	)
	return root
}

// loadConfig reads the configuration and applies the command line overrides
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.mock {
		cfg.BinanceConfig.MockMode = true
	}
	if !o.persist {
		cfg.SignalsConfig.Store = "memory"
	}
	cfg.ScannerConfig.Enabled = false
	return cfg, nil
}

// build creates the application with logs on stderr
func (o *options) build(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(logging.Config{
		Level:     o.logLevel,
		Component: "smcscan",
	}, os.Stderr)
	return app.New(ctx, cfg, logger)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitSymbols(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
