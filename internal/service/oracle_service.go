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

// CreateOracle creates an oracle of o.Kind. The kind and its parameters are
// checked before the connection is touched.
func (s *MarketService) CreateOracle(ctx context.Context, o domain.Oracle) (domain.Oracle, error) {
	start := time.Now()
	if err := o.Validate(); err != nil {
		return domain.Oracle{}, fmt.Errorf("market_service: create oracle: %w", err)
	}

	var (
		ultimate chain.UltimateOracleArgs
		err      error
	)
	if o.Kind == domain.OracleUltimate {
		if ultimate, err = ultimateArgs(o.Ultimate); err != nil {
			return domain.Oracle{}, fmt.Errorf("market_service: create oracle: %w", err)
		}
	}

	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.Oracle{}, err
	}

	var created chain.Creation
	switch o.Kind {
	case domain.OracleCentralized:
		created, err = conn.Factories().CreateCentralizedOracle(ctx, o.ContentHash)
	case domain.OracleUltimate:
		ultimate.CollateralToken = conn.Registry().EtherToken
		created, err = conn.Factories().CreateUltimateOracle(ctx, ultimate)
	}
	if err != nil {
		s.failed(ctx, domain.StepOracleCreated, string(o.Kind), err, start)
		return domain.Oracle{}, fmt.Errorf("market_service: create %s oracle: %w", o.Kind, err)
	}
	if err := s.settle(ctx); err != nil {
		return domain.Oracle{}, err
	}

	o.Address = created.Address.Hex()
	o.TxHash = created.Receipt.TxHash.Hex()
	s.completed(ctx, domain.StepOracleCreated, domain.RecordOracle, o.Address, o.TxHash, o, map[string]any{
		"kind": string(o.Kind),
	}, start)
	return o, nil
}

func ultimateArgs(p *domain.UltimateOracleParams) (chain.UltimateOracleArgs, error) {
	forwarded, err := chain.ParseAddress("forwarded oracle", p.ForwardedOracle)
	if err != nil {
		return chain.UltimateOracleArgs{}, err
	}
	amount := new(big.Int)
	if p.ChallengeAmount != "" {
		if amount, err = numeric.ParseFunding(p.ChallengeAmount); err != nil {
			return chain.UltimateOracleArgs{}, fmt.Errorf("challenge amount: %w", err)
		}
	}
	return chain.UltimateOracleArgs{
		ForwardedOracle:   forwarded,
		SpreadMultiplier:  p.SpreadMultiplier,
		ChallengePeriod:   new(big.Int).SetUint64(p.ChallengePeriod),
		ChallengeAmount:   amount,
		FrontRunnerPeriod: new(big.Int).SetUint64(p.FrontRunnerPeriod),
	}, nil
}
