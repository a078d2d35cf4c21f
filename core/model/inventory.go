package model

import (
	"fmt"
	"time"
)

// MaterialLot is a quantity of one material stored at a stockyard.
type MaterialLot struct {
	MaterialID string  `json:"material_id" yaml:"material_id"`
	Available  float64 `json:"available" yaml:"available"`
	Reserved   float64 `json:"reserved" yaml:"reserved"`
	Quality    string  `json:"quality" yaml:"quality"`
	AgeDays    float64 `json:"age_days" yaml:"age_days"`
}

// Net returns the quantity still free for allocation.
func (l MaterialLot) Net() float64 { return l.Available - l.Reserved }

// StockyardInventory is the stock held at one stockyard.
type StockyardInventory struct {
	ID          string        `json:"id" yaml:"id"`
	Lat         float64       `json:"lat" yaml:"lat"`
	Lon         float64       `json:"lon" yaml:"lon"`
	Capacity    float64       `json:"capacity" yaml:"capacity"`
	CurrentLoad float64       `json:"current_load" yaml:"current_load"`
	Lots        []MaterialLot `json:"lots" yaml:"lots"`
}

// Validate rejects stockyards with missing identifiers or negative figures.
func (s StockyardInventory) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: stockyard id is required", ErrInvalidInput)
	}
	if s.Capacity < 0 || s.CurrentLoad < 0 {
		return fmt.Errorf("%w: stockyard %s: negative capacity or load", ErrInvalidInput, s.ID)
	}
	for i, l := range s.Lots {
		if l.MaterialID == "" {
			return fmt.Errorf("%w: stockyard %s: lot %d has no material", ErrInvalidInput, s.ID, i)
		}
		if l.Available < 0 || l.Reserved < 0 || l.AgeDays < 0 {
			return fmt.Errorf("%w: stockyard %s: lot %d has negative quantities", ErrInvalidInput, s.ID, i)
		}
		if l.Reserved > l.Available {
			return fmt.Errorf("%w: stockyard %s: lot %d reserved exceeds available", ErrInvalidInput, s.ID, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the inventory.
func (s StockyardInventory) Clone() StockyardInventory {
	cp := s
	cp.Lots = append([]MaterialLot(nil), s.Lots...)
	return cp
}

// LoadingPointStatus describes a loading facility and its remaining capacity
// for the planning horizon.
type LoadingPointStatus struct {
	ID                string   `json:"id" yaml:"id"`
	StockyardID       string   `json:"stockyard_id" yaml:"stockyard_id"`
	Capacity          float64  `json:"capacity" yaml:"capacity"`
	Available         float64  `json:"available" yaml:"available"`
	ThroughputPerHour float64  `json:"throughput_per_hour" yaml:"throughput_per_hour"`
	Equipment         []string `json:"equipment" yaml:"equipment"`
	OpenHour          int      `json:"open_hour" yaml:"open_hour"`
	CloseHour         int      `json:"close_hour" yaml:"close_hour"`
}

// Validate rejects loading points with missing identifiers or negative figures.
func (lp LoadingPointStatus) Validate() error {
	if lp.ID == "" || lp.StockyardID == "" {
		return fmt.Errorf("%w: loading point requires id and stockyard", ErrInvalidInput)
	}
	if lp.Capacity < 0 || lp.Available < 0 || lp.ThroughputPerHour < 0 {
		return fmt.Errorf("%w: loading point %s: negative capacity", ErrInvalidInput, lp.ID)
	}
	if lp.Available > lp.Capacity {
		return fmt.Errorf("%w: loading point %s: available exceeds capacity", ErrInvalidInput, lp.ID)
	}
	return nil
}

// Clone returns a deep copy of the loading point.
func (lp LoadingPointStatus) Clone() LoadingPointStatus {
	cp := lp
	cp.Equipment = append([]string(nil), lp.Equipment...)
	return cp
}

// Assigned returns the load already committed at the loading point.
func (lp LoadingPointStatus) Assigned() float64 { return lp.Capacity - lp.Available }

// Route is a rail path from a stockyard to a destination.
type Route struct {
	ID             string        `json:"id" yaml:"id"`
	Origin         string        `json:"origin" yaml:"origin"`
	Destination    string        `json:"destination" yaml:"destination"`
	DistanceKm     float64       `json:"distance_km" yaml:"distance_km"`
	TransitTime    time.Duration `json:"transit_time" yaml:"transit_time"`
	CostPerUnit    float64       `json:"cost_per_unit" yaml:"cost_per_unit"`
	Congestion     float64       `json:"congestion" yaml:"congestion"`
	SidingCapacity int           `json:"siding_capacity" yaml:"siding_capacity"`
	Restrictions   []string      `json:"restrictions" yaml:"restrictions"`
}

// Validate rejects routes with missing endpoints or negative figures.
func (r Route) Validate() error {
	if r.ID == "" || r.Origin == "" || r.Destination == "" {
		return fmt.Errorf("%w: route requires id, origin and destination", ErrInvalidInput)
	}
	if r.DistanceKm < 0 || r.TransitTime < 0 || r.CostPerUnit < 0 || r.SidingCapacity < 0 {
		return fmt.Errorf("%w: route %s: negative attribute", ErrInvalidInput, r.ID)
	}
	return nil
}
