// Package events defines the planning related events emitted on the event bus.
//
// Available event types:
//   - StageEvent: a pipeline stage finished
//   - StrategyEvent: packing strategy selection and comparison results
//   - PlanEvent: a plan was produced
//   - ReleaseEvent: a rake release was acknowledged or failed
package events
