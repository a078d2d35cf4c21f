// Package telemetry keeps the latest status reported by each loading point
// and applies it to the planning input.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/rakeplan/core/model"
)

// Status is the last report of a loading point. Nil fields were not reported.
type Status struct {
	LoadingPointID    string    `json:"loading_point_id"`
	Operational       *bool     `json:"operational,omitempty"`
	Available         *float64  `json:"available,omitempty"`
	ThroughputPerHour *float64  `json:"throughput_per_hour,omitempty"`
	Time              time.Time `json:"-"`
	TS                *int64    `json:"ts,omitempty"`
}

// Tracker stores statuses. It is safe for concurrent use.
type Tracker struct {
	maxAge time.Duration

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewTracker creates a tracker ignoring statuses older than maxAge. A zero
// maxAge keeps statuses forever.
func NewTracker(maxAge time.Duration) *Tracker {
	return &Tracker{maxAge: maxAge, statuses: make(map[string]Status)}
}

// Process decodes a status payload. The loading point id falls back to the
// last topic segment and the time to now.
func (t *Tracker) Process(payload []byte, topic string, now time.Time) (Status, error) {
	var st Status
	if err := json.Unmarshal(payload, &st); err != nil {
		statusUpdates.WithLabelValues("invalid").Inc()
		return Status{}, err
	}
	if st.LoadingPointID == "" {
		st.LoadingPointID = lastSegment(topic)
	}
	if st.LoadingPointID == "" {
		statusUpdates.WithLabelValues("invalid").Inc()
		return Status{}, fmt.Errorf("status without loading point id on %q", topic)
	}
	if st.Available != nil && *st.Available < 0 {
		statusUpdates.WithLabelValues("invalid").Inc()
		return Status{}, fmt.Errorf("loading point %s: negative availability", st.LoadingPointID)
	}
	st.Time = now
	if st.TS != nil {
		st.Time = time.Unix(*st.TS, 0)
	}
	t.mu.Lock()
	if prev, ok := t.statuses[st.LoadingPointID]; !ok || !st.Time.Before(prev.Time) {
		t.statuses[st.LoadingPointID] = st
	}
	t.mu.Unlock()
	statusUpdates.WithLabelValues("accepted").Inc()
	lastStatus.WithLabelValues(st.LoadingPointID).Set(float64(st.Time.Unix()))
	return st, nil
}

// Get returns the status of a loading point.
func (t *Tracker) Get(id string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[id]
	return st, ok
}

// Apply returns a copy of lps with the fresh statuses applied. A loading
// point reported as not operational has no availability left.
func (t *Tracker) Apply(lps []model.LoadingPointStatus, now time.Time) []model.LoadingPointStatus {
	out := make([]model.LoadingPointStatus, len(lps))
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, lp := range lps {
		lp.Equipment = append([]string(nil), lp.Equipment...)
		st, ok := t.statuses[lp.ID]
		if ok && (t.maxAge <= 0 || now.Sub(st.Time) <= t.maxAge) {
			if st.Available != nil {
				lp.Available = min(*st.Available, lp.Capacity)
			}
			if st.ThroughputPerHour != nil {
				lp.ThroughputPerHour = *st.ThroughputPerHour
			}
			if st.Operational != nil && !*st.Operational {
				lp.Available = 0
			}
		}
		out[i] = lp
	}
	return out
}

func lastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

var (
	statusUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rakeplan_loading_point_status_updates_total",
		Help: "Loading point status messages by outcome",
	}, []string{"result"})
	lastStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rakeplan_loading_point_status_timestamp_seconds",
		Help: "Unix time of the last status of each loading point",
	}, []string{"loading_point"})
)

func init() {
	prometheus.MustRegister(statusUpdates, lastStatus)
}
