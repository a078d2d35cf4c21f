package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingMonitor struct {
	errs    []error
	tags    []map[string]string
	flushed time.Duration
}

func (r *recordingMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordingMonitor) Recover()              {}
func (r *recordingMonitor) Flush(d time.Duration) { r.flushed = d }

func TestForwardsToInstalledMonitor(t *testing.T) {
	rec := &recordingMonitor{}
	Init(rec)
	t.Cleanup(func() { Init(nil) })

	boom := errors.New("release failed")
	CaptureException(boom, map[string]string{"plan_id": "p1"})
	CaptureException(nil, nil)
	Flush(time.Second)

	assert.Equal(t, []error{boom}, rec.errs)
	assert.Equal(t, "p1", rec.tags[0]["plan_id"])
	assert.Equal(t, time.Second, rec.flushed)
}

func TestNilRestoresNop(t *testing.T) {
	Init(&recordingMonitor{})
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
	assert.NotPanics(t, func() {
		CaptureException(errors.New("x"), nil)
		Flush(0)
	})
}
