// Package prediction defines the read-only forecasts consumed by the planning
// pipeline and the providers that supply them. The pipeline never computes
// predictions itself: a failing provider yields an empty set of predictions.
package prediction
