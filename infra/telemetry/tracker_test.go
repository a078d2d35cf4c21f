package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rakeplan/core/model"
)

func points() []model.LoadingPointStatus {
	return []model.LoadingPointStatus{
		{ID: "LP1", StockyardID: "S1", Capacity: 2000, Available: 2000, ThroughputPerHour: 250, Equipment: []string{"conveyor"}},
		{ID: "LP2", StockyardID: "S1", Capacity: 1000, Available: 1000, ThroughputPerHour: 100},
	}
}

func TestProcessUsesTopicSegment(t *testing.T) {
	tr := NewTracker(time.Hour)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	st, err := tr.Process([]byte(`{"available":300}`), "loading_points/status/LP1", now)
	require.NoError(t, err)
	assert.Equal(t, "LP1", st.LoadingPointID)
	assert.Equal(t, now, st.Time)

	got, ok := tr.Get("LP1")
	require.True(t, ok)
	assert.InDelta(t, 300.0, *got.Available, 1e-9)
}

func TestProcessRejectsInvalidPayloads(t *testing.T) {
	tr := NewTracker(0)
	now := time.Now()
	_, err := tr.Process([]byte(`{`), "loading_points/status/LP1", now)
	assert.Error(t, err)
	_, err = tr.Process([]byte(`{"available":-1}`), "loading_points/status/LP1", now)
	assert.Error(t, err)
	_, err = tr.Process([]byte(`{"available":1}`), "", now)
	assert.Error(t, err)
	_, ok := tr.Get("LP1")
	assert.False(t, ok)
}

func TestProcessKeepsNewestStatus(t *testing.T) {
	tr := NewTracker(0)
	now := time.Now()
	_, err := tr.Process([]byte(`{"loading_point_id":"LP1","available":100,"ts":2000}`), "x/LP1", now)
	require.NoError(t, err)
	_, err = tr.Process([]byte(`{"loading_point_id":"LP1","available":900,"ts":1000}`), "x/LP1", now)
	require.NoError(t, err)
	st, _ := tr.Get("LP1")
	assert.InDelta(t, 100.0, *st.Available, 1e-9)
}

func TestApply(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	_, err := tr.Process([]byte(`{"available":5000,"throughput_per_hour":400}`), "s/LP1", now)
	require.NoError(t, err)
	_, err = tr.Process([]byte(`{"operational":false}`), "s/LP2", now)
	require.NoError(t, err)

	in := points()
	out := tr.Apply(in, now.Add(10*time.Minute))
	// availability is capped at capacity
	assert.InDelta(t, 2000.0, out[0].Available, 1e-9)
	assert.InDelta(t, 400.0, out[0].ThroughputPerHour, 1e-9)
	assert.Zero(t, out[1].Available)
	assert.InDelta(t, 1000.0, in[1].Available, 1e-9)

	out[0].Equipment[0] = "changed"
	assert.Equal(t, "conveyor", in[0].Equipment[0])
}

func TestApplyIgnoresStaleStatus(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	_, err := tr.Process([]byte(`{"operational":false}`), "s/LP1", now)
	require.NoError(t, err)
	out := tr.Apply(points(), now.Add(time.Hour))
	assert.InDelta(t, 2000.0, out[0].Available, 1e-9)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "loading_points/status/+", c.Topic())
	assert.Equal(t, 30*time.Minute, c.MaxAge)
	assert.NoError(t, c.Validate())
	c.StatePrefix = "a/#"
	assert.Error(t, c.Validate())
}
