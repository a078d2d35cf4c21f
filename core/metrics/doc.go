// Package metrics defines the sinks planning runs report to. Sinks like
// PromSink and InfluxSink record plan summaries and can be combined with
// NewMultiSink. Optional recorder interfaces let a sink opt into per-rake and
// release records; the factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
