package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/chain"
	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/numeric"
)

// CreateEvent creates a categorical or scalar event collateralised by the
// wrapped token. Scalar bounds are scaled by 10^Decimals before submission
// and the scaled values are returned in LowerBoundBase/UpperBoundBase.
func (s *MarketService) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	start := time.Now()
	if err := e.Validate(); err != nil {
		return domain.Event{}, fmt.Errorf("market_service: create event: %w", err)
	}
	oracle, err := chain.ParseAddress("oracle", e.Oracle)
	if err != nil {
		return domain.Event{}, fmt.Errorf("market_service: create event: %w", err)
	}

	var lower, upper *big.Int
	if e.Kind == domain.EventScalar {
		if lower, err = numeric.ScaleBound(e.LowerBound, e.Decimals); err != nil {
			return domain.Event{}, fmt.Errorf("market_service: create event: lower bound: %w", err)
		}
		if upper, err = numeric.ScaleBound(e.UpperBound, e.Decimals); err != nil {
			return domain.Event{}, fmt.Errorf("market_service: create event: upper bound: %w", err)
		}
		if lower.Cmp(upper) >= 0 {
			return domain.Event{}, fmt.Errorf("market_service: create event: %w: lower bound %s must be below upper bound %s",
				domain.ErrInvalidRecord, e.LowerBound, e.UpperBound)
		}
	}

	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	collateral := conn.Registry().EtherToken

	var created chain.Creation
	switch e.Kind {
	case domain.EventCategorical:
		created, err = conn.Factories().CreateCategoricalEvent(ctx, collateral, oracle, uint8(e.OutcomeCount))
	case domain.EventScalar:
		created, err = conn.Factories().CreateScalarEvent(ctx, collateral, oracle, lower, upper)
	}
	if err != nil {
		s.failed(ctx, domain.StepEventCreated, e.Oracle, err, start)
		return domain.Event{}, fmt.Errorf("market_service: create %s event: %w", e.Kind, err)
	}
	if err := s.settle(ctx); err != nil {
		return domain.Event{}, err
	}

	e.CollateralToken = collateral.Hex()
	if e.Kind == domain.EventScalar {
		e.LowerBoundBase = lower.String()
		e.UpperBoundBase = upper.String()
	}
	e.Address = created.Address.Hex()
	e.TxHash = created.Receipt.TxHash.Hex()

	s.completed(ctx, domain.StepEventCreated, domain.RecordEvent, e.Address, e.TxHash, e, map[string]any{
		"kind":   string(e.Kind),
		"oracle": e.Oracle,
	}, start)
	return e, nil
}
