package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smc-signal-engine/internal/scanner"
)

func newScanCmd(opts *options) *cobra.Command {
	var symbols []string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan symbols once and print the report",
		Long: `Scan runs one full cycle: signal upkeep, then the pipeline for every
symbol. Without --symbols it scans the configured list, or every symbol of
the data source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.Scanner.ScanSymbols(ctx, splitSymbols(symbols))
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd, report)
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to scan (comma separated)")
	return cmd
}

func printReport(cmd *cobra.Command, r *scanner.ScanReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scan %s: %d symbols in %s (created %d, filtered %d, skipped %d, errors %d)\n\n",
		r.ScanID, r.SymbolsScanned, r.Duration.Round(time.Millisecond), r.Created, r.Filtered, r.Skipped, r.Errors)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATUS\tREASON\tDIRECTION\tENTRY\tSTOP\tRR\tSCORE")
	for _, res := range r.Results {
		reason := res.Reason
		if res.Error != "" {
			reason = res.Error
		}
		if s := res.Signal; s != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.6g\t%.6g\t%.2f\t%.1f (%s)\n",
				res.Symbol, res.Status, reason, s.Direction, s.EntryPrice, s.StopLoss, s.RiskRewardRatio, s.Score, s.Rating)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\t-\t-\n", res.Symbol, res.Status, reason)
	}
	return tw.Flush()
}
