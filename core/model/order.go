package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is wrapped by every validation failure so callers can
// separate malformed entities from planning infeasibility.
var ErrInvalidInput = errors.New("invalid input")

// Order is a customer request for a quantity of material at a destination.
// Orders are immutable once submitted to a planning run.
type Order struct {
	ID              string    `json:"id" yaml:"id"`
	MaterialID      string    `json:"material_id" yaml:"material_id"`
	Quantity        float64   `json:"quantity" yaml:"quantity"`
	Destination     string    `json:"destination" yaml:"destination"`
	DestLat         float64   `json:"dest_lat" yaml:"dest_lat"`
	DestLon         float64   `json:"dest_lon" yaml:"dest_lon"`
	RequiredQuality string    `json:"required_quality" yaml:"required_quality"`
	Priority        Priority  `json:"priority" yaml:"priority"`
	RequiredBy      time.Time `json:"required_by" yaml:"required_by"`
}

// Validate checks that the order carries every field the pipeline relies on.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if o.MaterialID == "" {
		return fmt.Errorf("%w: order %s: material is required", ErrInvalidInput, o.ID)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: order %s: quantity must be positive", ErrInvalidInput, o.ID)
	}
	if o.Destination == "" {
		return fmt.Errorf("%w: order %s: destination is required", ErrInvalidInput, o.ID)
	}
	if o.Priority == PriorityUnknown {
		return fmt.Errorf("%w: order %s: priority is required", ErrInvalidInput, o.ID)
	}
	return nil
}

// Before reports whether o must be served before other: higher priority
// first, then earlier required-by time, then identifier.
func (o Order) Before(other Order) bool {
	if o.Priority.Rank() != other.Priority.Rank() {
		return o.Priority.Rank() > other.Priority.Rank()
	}
	if !o.RequiredBy.Equal(other.RequiredBy) {
		return o.RequiredBy.Before(other.RequiredBy)
	}
	return o.ID < other.ID
}
