package cli

import (
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/dealdesk/internal/valuation"
)

func newMetricsCmd() *cobra.Command {
	var (
		flags fieldFlags
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute valuation metrics from assumptions without touching the database",
		Example: "  dealctl metrics --set hold_period=7 --set cap_rate_going_in=9\n" +
			"  dealctl metrics --file assumptions.json --raw",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := flags.collect()
			if err != nil {
				return err
			}
			if raw {
				return printJSON(cmd.OutOrStdout(), valuation.ComputeRaw(fields))
			}
			return printJSON(cmd.OutOrStdout(), valuation.Compute(fields))
		},
	}
	addFieldFlags(cmd, &flags)
	cmd.Flags().BoolVar(&raw, "raw", false, "Skip display rounding")
	return cmd
}
