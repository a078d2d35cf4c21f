package model

import (
	"fmt"
	"strings"
)

// Priority ranks orders. Higher values are served first.
type Priority int

const (
	PriorityUnknown Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Rank returns the ordering weight of the priority. Unknown priorities rank
// below low.
func (p Priority) Rank() int { return int(p) }

// ParsePriority converts a textual priority into its enum value.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "normal":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "urgent", "critical":
		return PriorityUrgent, nil
	default:
		return PriorityUnknown, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. "unknown" decodes to
// PriorityUnknown so marshalled plans round-trip.
func (p *Priority) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), PriorityUnknown.String()) {
		*p = PriorityUnknown
		return nil
	}
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
