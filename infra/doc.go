// Package infra holds the technical adapters of the planner: MQTT, metrics
// sinks, loading point telemetry, scenario inputs and error monitoring. They
// implement interfaces declared in the core packages.
package infra
