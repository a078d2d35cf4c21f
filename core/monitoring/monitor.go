// Package monitoring reports planning and release failures to an error
// tracker. The package level helpers forward to the monitor installed with
// Init and do nothing until one is installed.
package monitoring

import (
	"sync"
	"time"
)

// Monitor captures errors and panics.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process monitor. A nil m restores the no-op monitor.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with tags such as plan_id or stage. Nil errors
// are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover reports a panic of the calling goroutine. It must be deferred.
func Recover() {
	get().Recover()
}

// Flush waits up to d for buffered reports to be sent.
func Flush(d time.Duration) {
	get().Flush(d)
}
