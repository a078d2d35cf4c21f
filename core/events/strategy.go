package events

// StrategyEvent is emitted when a packing strategy runs.
// Action can be "selected", "compared" or "failed".
type StrategyEvent struct {
	Strategy string
	Action   string
	Score    float64
	Err      error
}
