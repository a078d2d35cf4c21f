package model

import "time"

// StockAllocation records which stockyard lot serves an order.
type StockAllocation struct {
	OrderID     string  `json:"order_id"`
	StockyardID string  `json:"stockyard_id"`
	LotIndex    int     `json:"lot_index"`
	MaterialID  string  `json:"material_id"`
	Quality     string  `json:"quality"`
	Quantity    float64 `json:"quantity"`
	Cost        float64 `json:"cost"`
	DistanceKm  float64 `json:"distance_km"`
	Feasibility float64 `json:"feasibility"`
	Rationale   string  `json:"rationale"`
}

// RoutingDecision binds an allocation to a loading point and a route.
type RoutingDecision struct {
	OrderID           string          `json:"order_id"`
	Allocation        StockAllocation `json:"allocation"`
	LoadingPointID    string          `json:"loading_point_id"`
	RouteID           string          `json:"route_id"`
	Destination       string          `json:"destination"`
	TotalCost         float64         `json:"total_cost"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	RequiredBy        time.Time       `json:"required_by"`
	Priority          Priority        `json:"priority"`
	Feasibility       float64         `json:"feasibility"`
	Rationale         string          `json:"rationale"`
}

// Unplaced records an order the pipeline could not serve and why.
type Unplaced struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}
