package decisions

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/rakeplan/api"
	"github.com/kilianp07/rakeplan/core/decisionlog"
)

// NewLogHandler returns an HTTP handler exposing the decision log via
// GET /api/decisions. Supported filters: start, end (RFC3339), plan_id,
// order_id, strategy and limit.
func NewLogHandler(store decisionlog.LogStore, token string) http.Handler {
	return api.RequireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []decisionlog.Record{}
		}
		api.WriteJSON(w, records)
	}))
}

func parseQuery(r *http.Request) (decisionlog.Query, error) {
	v := r.URL.Query()
	q := decisionlog.Query{
		PlanID:   v.Get("plan_id"),
		OrderID:  v.Get("order_id"),
		Strategy: v.Get("strategy"),
	}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		s := v.Get(key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid limit %q", s)
		}
		q.Limit = n
	}
	return q, nil
}
