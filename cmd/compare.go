package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rakeplan/infra/inputs"
)

var compareCmd = &cobra.Command{
	Use:   "compare <scenario>",
	Short: "Run every packing strategy on a scenario and rank them",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := inputs.Load(args[0])
	if err != nil {
		return err
	}
	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	cmp, err := svc.Compare(ctx, sc)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tSCORE\tRAKES\tCOST\tUTIL %\tCONFIDENCE %\tUNPLACED\t")
	for i, r := range cmp.Results {
		mark := ""
		if i == cmp.Best {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s%s\t%.4f\t%d\t%.2f\t%.1f\t%.1f\t%d\t\n", r.Plan.Strategy, mark, r.Plan.Score,
			len(r.Plan.Rakes), r.Plan.TotalCost, r.Plan.AvgUtilization, r.Confidence, len(r.Unplaced()))
	}
	return tw.Flush()
}
