package plans

import (
	"net/http"

	"github.com/kilianp07/rakeplan/api"
	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/pkg/export"
)

// LatestFunc returns the most recent planning result, if any.
type LatestFunc func() (decision.Result, bool)

// NewLatestHandler serves GET /api/plans/latest with the summary and plan of
// the last planning run. Passing ?full=1 returns the whole result.
func NewLatestHandler(latest LatestFunc, token string) http.Handler {
	return api.RequireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res, ok := latest()
		if !ok {
			http.Error(w, "no plan yet", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("full") == "1" {
			api.WriteJSON(w, res)
			return
		}
		api.WriteJSON(w, export.Document{Summary: export.Summarize(res), Plan: res.Plan})
	}))
}
