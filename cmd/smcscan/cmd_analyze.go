package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smc-signal-engine/internal/strategy"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Evaluate one symbol and print the evidence chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ev, err := a.Scanner.AnalyzeSymbol(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), ev)
			}
			printEvaluation(cmd, ev)
			return nil
		},
	}
}

func printEvaluation(cmd *cobra.Command, ev *strategy.Evaluation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s", ev.Symbol, ev.Outcome)
	if ev.Reason != "" {
		fmt.Fprintf(out, " (%s)", ev.Reason)
	}
	fmt.Fprintln(out)

	for _, c := range ev.Evidence {
		mark := "-"
		if c.Passed {
			mark = "+"
		}
		fmt.Fprintf(out, "  %s %-20s %s\n", mark, c.Name, c.Detail)
	}

	if s := ev.Signal; s != nil {
		fmt.Fprintf(out, "\n%s entry %.6g stop %.6g targets %v rr %.2f score %.1f (%s) size %.4f x%d\n",
			s.Direction, s.EntryPrice, s.StopLoss, s.TakeProfit, s.RiskRewardRatio, s.Score, s.Rating, s.PositionSize, s.Leverage)
	}
}
