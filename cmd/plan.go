package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/packing"
	"github.com/kilianp07/rakeplan/infra/inputs"
	"github.com/kilianp07/rakeplan/pkg/export"
)

var planOpts struct {
	strategy string
	format   string
	output   string
	release  bool
}

var planCmd = &cobra.Command{
	Use:   "plan <scenario>",
	Short: "Plan rakes for a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOpts.strategy, "strategy", "s", "", "packing strategy (greedy, genetic, annealing)")
	planCmd.Flags().StringVarP(&planOpts.format, "format", "f", "text", "output format: text, json or csv")
	planCmd.Flags().StringVarP(&planOpts.output, "output", "o", "", "write the output to a file")
	planCmd.Flags().BoolVar(&planOpts.release, "release", false, "approve and release the plan")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := inputs.Load(args[0])
	if err != nil {
		return err
	}
	if planOpts.strategy != "" {
		s, err := packing.ParseStrategy(planOpts.strategy)
		if err != nil {
			return err
		}
		sc.Strategy = string(s)
	}
	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	res, err := svc.Plan(ctx, sc)
	if err != nil {
		return err
	}
	if planOpts.release {
		rep, err := svc.Release(ctx, &res)
		if err != nil {
			return fmt.Errorf("release: %w", err)
		}
		printReport(cmd.ErrOrStderr(), rep)
	}

	w := cmd.OutOrStdout()
	if planOpts.output != "" {
		f, err := os.Create(planOpts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeResult(w, res, planOpts.format)
}

func writeResult(w io.Writer, res decision.Result, format string) error {
	switch format {
	case "json":
		return export.WriteJSON(w, res)
	case "csv":
		return export.WriteCSV(w, res.Plan)
	case "text", "":
		return printSummary(w, res)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printSummary(w io.Writer, res decision.Result) error {
	s := export.Summarize(res)
	if _, err := fmt.Fprintf(w, "%s\n\nplan %s (%s): %d rakes, load %s, cost %s, utilization %s%%, confidence %s%%\n",
		s.Explanation, s.PlanID, s.Strategy, s.Rakes, s.TotalLoad, s.TotalCost, s.AvgUtilization, s.Confidence); err != nil {
		return err
	}
	for _, r := range res.Plan.Rakes {
		if _, err := fmt.Fprintf(w, "  %-24s %s -> %s via %s  load %.1f  util %.1f%%  orders %v\n",
			r.ID, r.LoadingPointID, r.Destination, r.RouteID, r.TotalLoad, r.Utilization, r.OrderIDs()); err != nil {
			return err
		}
	}
	for _, u := range s.Unplaced {
		if _, err := fmt.Fprintf(w, "  unplaced %s: %s\n", u.OrderID, u.Reason); err != nil {
			return err
		}
	}
	for _, r := range s.Risks {
		if _, err := fmt.Fprintf(w, "  risk %s/%s %s p=%.2f: %s\n", r.Category, r.Severity, r.Subject, r.Probability, r.Message); err != nil {
			return err
		}
	}
	for _, r := range s.Recommendations {
		if _, err := fmt.Fprintf(w, "  recommend %s: %s\n", r.Rule, r.Message); err != nil {
			return err
		}
	}
	return nil
}
