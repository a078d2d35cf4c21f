package decision

import (
	"fmt"
	"strings"
)

// Causes named by the explanation of an empty plan.
const (
	CauseNoOrders         = "no valid orders were supplied"
	CauseNoStockyards     = "no stockyards were supplied"
	CauseNothingAllocated = "no order could be allocated stock"
	CauseNothingRouted    = "no allocation could be routed to a loading point"
	CauseConstraints      = "every candidate rake violated a hard constraint"
)

// EmptyCause returns why a result carries no rakes, or an empty string.
func EmptyCause(res Result, validOrders, stockyards int) string {
	switch {
	case len(res.Plan.Rakes) > 0:
		return ""
	case validOrders == 0:
		return CauseNoOrders
	case stockyards == 0:
		return CauseNoStockyards
	case len(res.Allocation.Allocations) == 0:
		return CauseNothingAllocated
	case len(res.Routing.Decisions) == 0:
		return CauseNothingRouted
	default:
		return CauseConstraints
	}
}

func explain(res Result, validOrders, stockyards int) string {
	var b strings.Builder
	p := res.Plan
	if cause := EmptyCause(res, validOrders, stockyards); cause != "" {
		fmt.Fprintf(&b, "No rakes planned: %s.", cause)
		switch cause {
		case CauseNothingAllocated:
			if len(res.Allocation.Unallocated) > 0 {
				u := res.Allocation.Unallocated[0]
				fmt.Fprintf(&b, " Order %s: %s.", u.OrderID, u.Reason)
			}
		case CauseNothingRouted:
			if len(res.Routing.Unrouted) > 0 {
				u := res.Routing.Unrouted[0]
				fmt.Fprintf(&b, " Order %s: %s.", u.OrderID, u.Reason)
			}
		case CauseConstraints:
			if len(res.Deferred) > 0 {
				fmt.Fprintf(&b, " Rake %s: %s.", res.Deferred[0].RakeID, res.Deferred[0].Reason)
			}
		}
		if n := len(res.Rejected); n > 0 {
			fmt.Fprintf(&b, " %d input entities were rejected as malformed.", n)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Plan %s (%s) forms %d rakes carrying %.0f units for %d orders at a total cost of %.2f.",
		p.ID, p.Strategy, len(p.Rakes), p.TotalLoad, len(p.OrderIDs()), p.TotalCost)
	fmt.Fprintf(&b, " Average utilization %.1f%%, on-time share %.1f%%, confidence %.1f%%.",
		p.AvgUtilization, p.SLACompliance, res.Confidence)
	if n := len(res.Unplaced()); n > 0 {
		fmt.Fprintf(&b, " %d orders are left out.", n)
	}
	if n := len(res.Rejected); n > 0 {
		fmt.Fprintf(&b, " %d input entities were rejected as malformed.", n)
	}
	switch severe := countSevere(res.Risks); {
	case severe > 0:
		fmt.Fprintf(&b, " %d high or critical risks need attention.", severe)
	case len(res.Risks) > 0:
		fmt.Fprintf(&b, " %d minor risks noted.", len(res.Risks))
	default:
		b.WriteString(" No risks identified.")
	}
	if len(res.Alternatives) > 0 && res.Alternatives[0].Score > p.Score+1e-9 {
		a := res.Alternatives[0]
		fmt.Fprintf(&b, " The %s alternative scores higher (%.2f vs %.2f).", a.Objective, a.Score, p.Score)
	}
	return b.String()
}
