// Package mqtt defines the messaging boundary used to release rakes to
// loading points and collect their acknowledgments.
package mqtt

import (
	"fmt"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
)

// RakeCommand instructs a loading point to start loading a rake.
type RakeCommand struct {
	CommandID        string    `json:"command_id"`
	PlanID           string    `json:"plan_id"`
	RakeID           string    `json:"rake_id"`
	LoadingPointID   string    `json:"loading_point_id"`
	RouteID          string    `json:"route_id"`
	Destination      string    `json:"destination"`
	Orders           []string  `json:"orders"`
	Load             float64   `json:"load"`
	Wagons           int       `json:"wagons"`
	EstimatedArrival time.Time `json:"estimated_arrival"`
	Timestamp        int64     `json:"timestamp"`
}

// NewRakeCommand builds the command releasing rake r of plan planID.
func NewRakeCommand(planID string, r model.PlannedRake) RakeCommand {
	return RakeCommand{
		PlanID:           planID,
		RakeID:           r.ID,
		LoadingPointID:   r.LoadingPointID,
		RouteID:          r.RouteID,
		Destination:      r.Destination,
		Orders:           r.OrderIDs(),
		Load:             r.TotalLoad,
		Wagons:           r.Wagons,
		EstimatedArrival: r.EstimatedArrival,
	}
}

// CommandTopic returns the topic a loading point listens on.
func CommandTopic(loadingPointID string) string {
	return fmt.Sprintf("rakes/%s/orders", loadingPointID)
}

// Ack is the payload a loading point sends back.
type Ack struct {
	CommandID string `json:"command_id"`
	Accepted  *bool  `json:"accepted,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Client sends rake commands and waits for loading point acknowledgments.
type Client interface {
	// SendRake publishes the command and returns the identifier used to
	// track its acknowledgment.
	SendRake(cmd RakeCommand) (commandID string, err error)

	// WaitForAck waits for an acknowledgment of the command or until the
	// timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
