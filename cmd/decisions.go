package cmd

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rakeplan/core/decisionlog"
)

var decisionOpts struct {
	planID   string
	orderID  string
	strategy string
	since    time.Duration
	limit    int
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Query the decision log",
	RunE:  runDecisions,
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionOpts.planID, "plan", "", "filter by plan id")
	decisionsCmd.Flags().StringVar(&decisionOpts.orderID, "order", "", "filter by order id")
	decisionsCmd.Flags().StringVar(&decisionOpts.strategy, "strategy", "", "filter by packing strategy")
	decisionsCmd.Flags().DurationVar(&decisionOpts.since, "since", 0, "only records newer than this duration")
	decisionsCmd.Flags().IntVarP(&decisionOpts.limit, "limit", "n", 20, "maximum number of records")
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.DecisionLog.Enabled() {
		return errors.New("decision_log.path is not configured")
	}
	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		return err
	}
	defer store.Close()

	q := decisionlog.Query{
		PlanID:   decisionOpts.planID,
		OrderID:  decisionOpts.orderID,
		Strategy: decisionOpts.strategy,
		Limit:    decisionOpts.limit,
	}
	if decisionOpts.since > 0 {
		q.Start = time.Now().Add(-decisionOpts.since)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
