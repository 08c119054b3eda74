package domain

import (
	"context"
	"time"
)

// Step names a pipeline operation.
type Step string

const (
	StepDescriptionPublished Step = "description_published"
	StepOracleCreated        Step = "oracle_created"
	StepEventCreated         Step = "event_created"
	StepMarketCreated        Step = "market_created"
	StepMarketFunded         Step = "market_funded"
	StepSharesBought         Step = "shares_bought"
	StepFailed               Step = "step_failed"
)

// StepEvent is emitted after a pipeline step finishes.
type StepEvent struct {
	Step    Step           `json:"step"`
	Key     string         `json:"key"`
	TxHash  string         `json:"txHash,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
	Error   string         `json:"error,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
	At      time.Time      `json:"at"`
}

// StepObserver receives step events. Implementations must not block for
// long; observer errors never fail the step that produced the event.
type StepObserver interface {
	StepCompleted(ctx context.Context, ev StepEvent) error
}
