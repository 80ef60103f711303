package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smc-signal-engine/config"
)

func newSampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config FILE",
		Short: "Write a configuration file with every default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateSampleConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", args[0])
			return nil
		},
	}
}
