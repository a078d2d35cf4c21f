package model

import (
	"fmt"
	"strings"
)

// RiskCategory classifies a plan risk.
type RiskCategory int

const (
	RiskDelay RiskCategory = iota
	RiskCost
	RiskCapacity
	RiskQuality
	RiskConstraint
)

// String returns a human-readable representation of the category.
func (c RiskCategory) String() string {
	switch c {
	case RiskDelay:
		return "delay"
	case RiskCost:
		return "cost"
	case RiskCapacity:
		return "capacity"
	case RiskQuality:
		return "quality"
	case RiskConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c RiskCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *RiskCategory) UnmarshalText(b []byte) error {
	for _, v := range []RiskCategory{RiskDelay, RiskCost, RiskCapacity, RiskQuality, RiskConstraint} {
		if strings.EqualFold(string(b), v.String()) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("%w: risk category %q", ErrInvalidInput, b)
}

// Severity orders risks from low to critical.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns a human-readable representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	for _, v := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if strings.EqualFold(string(b), v.String()) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("%w: severity %q", ErrInvalidInput, b)
}

// Risk is an explainable hazard attached to a plan or one of its rakes.
type Risk struct {
	Category    RiskCategory `json:"category"`
	Severity    Severity     `json:"severity"`
	Subject     string       `json:"subject"`
	Message     string       `json:"message"`
	Mitigation  string       `json:"mitigation"`
	Probability float64      `json:"probability"`
}

// NewRisk builds a risk with its probability clamped to [0,1].
func NewRisk(cat RiskCategory, sev Severity, subject, msg, mitigation string, p float64) Risk {
	if p < 0 || p != p {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return Risk{Category: cat, Severity: sev, Subject: subject, Message: msg, Mitigation: mitigation, Probability: p}
}

func (r Risk) String() string {
	return fmt.Sprintf("[%s/%s] %s: %s", r.Severity, r.Category, r.Subject, r.Message)
}

// Recommendation is an actionable suggestion derived from a plan. Rule names
// the check that fired, Value and Threshold the figures it compared.
type Recommendation struct {
	Rule      string  `json:"rule"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}
