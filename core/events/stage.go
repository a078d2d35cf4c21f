package events

import "time"

// Pipeline stage names carried by StageEvent.
const (
	StageValidate  = "validate"
	StagePredict   = "predict"
	StageAllocate  = "allocate"
	StageRoute     = "route"
	StageCompose   = "compose"
	StagePack      = "pack"
	StageAssess    = "assess"
	StageAlternate = "alternatives"
)

// StageEvent is published when a pipeline stage completes. Count is the
// number of entities the stage produced and Dropped the number it could not
// serve.
type StageEvent struct {
	Stage    string
	Count    int
	Dropped  int
	Duration time.Duration
}
