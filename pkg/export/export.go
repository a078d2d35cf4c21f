// Package export writes planning results as JSON documents or CSV sheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/model"
)

// Summary is the human facing digest of a result. Money and percentages are
// fixed point so exported figures do not carry float noise.
type Summary struct {
	PlanID          string                 `json:"plan_id"`
	Strategy        string                 `json:"strategy"`
	Rakes           int                    `json:"rakes"`
	TotalLoad       decimal.Decimal        `json:"total_load"`
	TotalCost       decimal.Decimal        `json:"total_cost"`
	AvgUtilization  decimal.Decimal        `json:"avg_utilization"`
	SLACompliance   decimal.Decimal        `json:"sla_compliance"`
	Confidence      decimal.Decimal        `json:"confidence"`
	Explanation     string                 `json:"explanation"`
	Risks           []model.Risk           `json:"risks"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Unplaced        []model.Unplaced       `json:"unplaced"`
}

// Document is the JSON export of a planning result. The plan is kept in full
// so it can be read back for release.
type Document struct {
	Summary Summary            `json:"summary"`
	Plan    model.DispatchPlan `json:"plan"`
}

// Summarize builds the summary of a result.
func Summarize(res decision.Result) Summary {
	p := res.Plan
	return Summary{
		PlanID:          p.ID,
		Strategy:        p.Strategy,
		Rakes:           len(p.Rakes),
		TotalLoad:       round(p.TotalLoad, 2),
		TotalCost:       round(p.TotalCost, 2),
		AvgUtilization:  round(p.AvgUtilization, 1),
		SLACompliance:   round(p.SLACompliance, 1),
		Confidence:      round(res.Confidence, 1),
		Explanation:     res.Explanation,
		Risks:           res.Risks,
		Recommendations: res.Recommendations,
		Unplaced:        res.Unplaced(),
	}
}

func round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// WriteJSON writes the result to w as an indented Document.
func WriteJSON(w io.Writer, res decision.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{Summary: Summarize(res), Plan: res.Plan})
}

// ReadPlan decodes the plan of a Document written by WriteJSON.
func ReadPlan(r io.Reader) (model.DispatchPlan, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.DispatchPlan{}, fmt.Errorf("decode plan document: %w", err)
	}
	if doc.Plan.ID == "" {
		return model.DispatchPlan{}, fmt.Errorf("%w: document has no plan", model.ErrInvalidInput)
	}
	return doc.Plan, nil
}

// WriteCSV writes one row per order carried by each rake of the plan.
func WriteCSV(w io.Writer, plan model.DispatchPlan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"plan_id", "rake_id", "loading_point", "route", "destination", "order_id",
		"priority", "quantity", "cost", "estimated_delivery", "required_by", "on_time"}); err != nil {
		return err
	}
	for _, r := range plan.Rakes {
		for _, m := range r.Members {
			rec := []string{
				plan.ID,
				r.ID,
				r.LoadingPointID,
				r.RouteID,
				r.Destination,
				m.OrderID,
				m.Priority.String(),
				strconv.FormatFloat(m.Quantity, 'f', -1, 64),
				round(m.Cost, 2).StringFixed(2),
				formatTime(m.EstimatedDelivery),
				formatTime(m.RequiredBy),
				strconv.FormatBool(m.OnTime()),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
