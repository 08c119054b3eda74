package domain

import (
	"fmt"
	"strings"
)

// EventKind distinguishes discrete-outcome events from ranged ones.
type EventKind string

const (
	EventCategorical EventKind = "CATEGORICAL"
	EventScalar      EventKind = "SCALAR"
)

// ParseEventKind maps a raw kind string onto the closed set of event kinds.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(strings.ToUpper(strings.TrimSpace(s))) {
	case EventCategorical:
		return EventCategorical, nil
	case EventScalar:
		return EventScalar, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
	}
}

// Event binds an oracle to a collateral token and an outcome space.
//
// LowerBound and UpperBound are human-readable decimals. Once the event is
// created LowerBoundBase and UpperBoundBase hold the on-chain values, which
// are the human bounds multiplied by 10^Decimals.
type Event struct {
	Kind            EventKind `json:"kind"`
	Oracle          string    `json:"oracle"`
	CollateralToken string    `json:"collateralToken,omitempty"`

	OutcomeCount int `json:"outcomeCount,omitempty"`

	LowerBound string `json:"lowerBound,omitempty"`
	UpperBound string `json:"upperBound,omitempty"`
	Decimals   int32  `json:"decimals,omitempty"`

	LowerBoundBase string `json:"lowerBoundBase,omitempty"`
	UpperBoundBase string `json:"upperBoundBase,omitempty"`

	Address string `json:"address,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

// Validate resolves the kind. Unknown kinds fail with ErrInvalidEventKind
// before anything else is looked at.
func (e *Event) Validate() error {
	kind, err := ParseEventKind(string(e.Kind))
	if err != nil {
		return err
	}
	e.Kind = kind

	if e.Oracle == "" {
		return fmt.Errorf("%w: event oracle address is required", ErrInvalidRecord)
	}
	switch kind {
	case EventCategorical:
		if e.OutcomeCount < 2 || e.OutcomeCount > 255 {
			return fmt.Errorf("%w: categorical event needs 2-255 outcomes, got %d", ErrInvalidRecord, e.OutcomeCount)
		}
	case EventScalar:
		if e.LowerBound == "" || e.UpperBound == "" {
			return fmt.Errorf("%w: scalar event needs lower and upper bounds", ErrInvalidRecord)
		}
		if e.Decimals < 0 || e.Decimals > 77 {
			return fmt.Errorf("%w: scalar event decimals out of range: %d", ErrInvalidRecord, e.Decimals)
		}
	}
	return nil
}
