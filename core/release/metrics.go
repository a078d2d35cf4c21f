package release

import "github.com/prometheus/client_golang/prometheus"

var (
	releaseLatency   prometheus.Histogram
	releasedRakes    *prometheus.CounterVec
	releasePublishes *prometheus.CounterVec
	releaseAckRate   prometheus.Gauge
)

func newCollectors() (prometheus.Histogram, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge) {
	lat := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rakeplan_release_latency_seconds",
		Help:    "Latency of rake commands from publish to acknowledgment",
		Buckets: prometheus.DefBuckets,
	})
	rakes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rakeplan_rakes_released_total",
		Help: "Number of rakes released by result",
	}, []string{"result"})
	pub := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rakeplan_mqtt_publish_total",
		Help: "Number of rake command publish operations by outcome",
	}, []string{"outcome"})
	ack := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rakeplan_release_ack_rate",
		Help: "Acknowledgment rate of the last released plan",
	})
	return lat, rakes, pub, ack
}

func init() {
	releaseLatency, releasedRakes, releasePublishes, releaseAckRate = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers release metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(releaseLatency, releasedRakes, releasePublishes, releaseAckRate)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg when not nil.
func ResetMetrics(reg prometheus.Registerer) {
	releaseLatency, releasedRakes, releasePublishes, releaseAckRate = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
