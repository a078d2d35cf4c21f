package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/release"
	"github.com/kilianp07/rakeplan/pkg/export"
)

var releaseCmd = &cobra.Command{
	Use:   "release <plan.json>",
	Short: "Approve an exported plan and release its rakes to the loading points",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	plan, err := export.ReadPlan(f)
	f.Close()
	if err != nil {
		return err
	}
	if plan.Status == model.PlanDraft {
		if err := plan.Approve(); err != nil {
			return err
		}
	}

	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	rep, err := svc.Releaser().Release(ctx, &plan)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	if !rep.Executed {
		return fmt.Errorf("plan %s: %d of %d rakes not acknowledged", rep.PlanID, len(rep.Failed()), len(rep.Outcomes))
	}
	return nil
}

func printReport(w io.Writer, rep release.Report) {
	for _, o := range rep.Outcomes {
		status := "acknowledged"
		if !o.Acknowledged {
			status = fmt.Sprintf("failed: %v", o.Err)
		}
		fmt.Fprintf(w, "rake %s at %s (%s) %s in %s\n", o.RakeID, o.LoadingPointID, o.CommandID, status, o.Latency)
	}
	fmt.Fprintf(w, "plan %s: %d/%d rakes acknowledged\n", rep.PlanID, rep.Acknowledged(), len(rep.Outcomes))
}
