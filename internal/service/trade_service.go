package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lmsrmarket/internal/chain"
	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/lmsr"
	"github.com/alanyoungcy/lmsrmarket/internal/numeric"
)

// Quote is an LMSR purchase quote for a collateral amount.
type Quote struct {
	Collateral *big.Int
	// Raw is the exact LMSR outcome token count for Collateral.
	Raw decimal.Decimal
	// Bounded is Raw less the slippage buffer, floored.
	Bounded *big.Int
}

// QuoteShares prices a purchase of outcomeIndex tokens for collateralAmount
// (human units) without trading.
func (s *MarketService) QuoteShares(ctx context.Context, m domain.Market, outcomeIndex int, collateralAmount string) (Quote, error) {
	base, err := numeric.ParseCollateral(collateralAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("market_service: quote: %w", err)
	}
	addr, err := chain.ParseAddress("market address", m.Address)
	if err != nil {
		return Quote{}, fmt.Errorf("market_service: quote: %w", err)
	}
	if outcomeIndex < 0 || outcomeIndex > 255 {
		return Quote{}, fmt.Errorf("market_service: quote: %w: outcome index %d", domain.ErrInvalidRecord, outcomeIndex)
	}
	conn, err := s.conns.Get(ctx)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, conn, m, addr, outcomeIndex, base)
}

// BuyShares buys outcome tokens of outcomeIndex in m with collateralAmount
// (human units) of wrapped collateral. The requested token count is the LMSR
// quote reduced by the slippage buffer, and the collateral is the maximum
// cost. Already submitted deposit and approval are not undone when the buy
// fails.
func (s *MarketService) BuyShares(ctx context.Context, m domain.Market, outcomeIndex int, collateralAmount string) (domain.TradeResult, error) {
	start := time.Now()
	base, err := numeric.ParseCollateral(collateralAmount)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("market_service: buy shares: %w", err)
	}
	addr, err := chain.ParseAddress("market address", m.Address)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("market_service: buy shares: %w", err)
	}
	if outcomeIndex < 0 || outcomeIndex > 255 {
		return domain.TradeResult{}, fmt.Errorf("market_service: buy shares: %w: outcome index %d", domain.ErrInvalidRecord, outcomeIndex)
	}

	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.TradeResult{}, err
	}
	q, err := s.quote(ctx, conn, m, addr, outcomeIndex, base)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("market_service: buy shares: %w", err)
	}
	s.logger.InfoContext(ctx, "market_service: lmsr quote",
		slog.String("market", m.Address),
		slog.Int("outcome", outcomeIndex),
		slog.String("collateral", base.String()),
		slog.String("raw", q.Raw.String()),
		slog.String("bounded", q.Bounded.String()),
	)

	token := conn.EtherToken()
	if _, err := token.Deposit(ctx, base); err != nil {
		return domain.TradeResult{}, s.buyFailed(ctx, m, "deposit", err, start)
	}
	if _, err := token.Approve(ctx, addr, base); err != nil {
		return domain.TradeResult{}, s.buyFailed(ctx, m, "approve", err, start)
	}
	market := conn.Market(addr)
	receipt, err := market.Buy(ctx, uint8(outcomeIndex), q.Bounded, base)
	if err != nil {
		return domain.TradeResult{}, s.buyFailed(ctx, m, "buy", err, start)
	}
	if err := s.settle(ctx); err != nil {
		return domain.TradeResult{}, err
	}

	res := domain.TradeResult{
		Market:            addr.Hex(),
		OutcomeIndex:      outcomeIndex,
		OutcomeTokenCount: q.Bounded.String(),
		MaxCost:           base.String(),
		TxHash:            receipt.TxHash.Hex(),
		ExecutedAt:        time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if cost, ok := market.PurchaseCost(receipt); ok {
		res.Cost = cost.String()
	}

	s.invalidateMarket(ctx, m.Address)
	s.completed(ctx, domain.StepSharesBought, domain.RecordTrade, res.TxHash, res.TxHash, res, map[string]any{
		"market":              res.Market,
		"outcome":             outcomeIndex,
		"outcome_token_count": res.OutcomeTokenCount,
		"max_cost":            res.MaxCost,
	}, start)
	return res, nil
}

func (s *MarketService) buyFailed(ctx context.Context, m domain.Market, stage string, err error, start time.Time) error {
	s.failed(ctx, domain.StepSharesBought, m.Address, fmt.Errorf("%s: %w", stage, err), start)
	return fmt.Errorf("market_service: buy shares %s: %s: %w", m.Address, stage, err)
}

// quote resolves the market state (from the record when it carries the
// quantities sold, from chain otherwise) and prices the purchase.
func (s *MarketService) quote(ctx context.Context, conn *chain.Connection, m domain.Market, addr common.Address, outcomeIndex int, base *big.Int) (Quote, error) {
	var (
		sold    []decimal.Decimal
		funding decimal.Decimal
	)
	if len(m.NetOutcomeTokensSold) > 0 {
		var err error
		if sold, err = numeric.ToDecimals(m.NetOutcomeTokensSold); err != nil {
			return Quote{}, fmt.Errorf("net outcome tokens sold: %w", err)
		}
		f, err := numeric.ParseFunding(m.Funding)
		if err != nil {
			return Quote{}, fmt.Errorf("funding: %w", err)
		}
		funding = decimal.NewFromBigInt(f, 0)
	} else {
		onChainSold, onChainFunding, _, err := readMarketState(ctx, conn, addr)
		if err != nil {
			return Quote{}, err
		}
		sold = make([]decimal.Decimal, len(onChainSold))
		for i, v := range onChainSold {
			sold[i] = decimal.NewFromBigInt(v, 0)
		}
		funding = decimal.NewFromBigInt(onChainFunding, 0)
	}
	if outcomeIndex >= len(sold) {
		return Quote{}, fmt.Errorf("%w: outcome index %d, market has %d outcomes", domain.ErrInvalidRecord, outcomeIndex, len(sold))
	}

	raw, err := lmsr.OutcomeTokenCount(lmsr.Params{
		NetOutcomeTokensSold: sold,
		Funding:              funding,
		OutcomeTokenIndex:    outcomeIndex,
		Cost:                 decimal.NewFromBigInt(base, 0),
	})
	if err != nil {
		return Quote{}, err
	}
	bounded := applySlippage(raw, s.cfg.SlippageBps)
	if bounded.Sign() <= 0 {
		return Quote{}, fmt.Errorf("%w: collateral buys no outcome tokens", domain.ErrInvalidAmount)
	}
	return Quote{Collateral: base, Raw: raw, Bounded: bounded}, nil
}

// applySlippage returns floor(raw × (1 − bps/10000)).
func applySlippage(raw decimal.Decimal, bps int64) *big.Int {
	factor := decimal.NewFromInt(10_000 - bps).Shift(-4)
	return raw.Mul(factor).Floor().BigInt()
}

func readMarketState(ctx context.Context, conn *chain.Connection, addr common.Address) ([]*big.Int, *big.Int, common.Address, error) {
	market := conn.Market(addr)
	event, err := market.EventAddress(ctx)
	if err != nil {
		return nil, nil, common.Address{}, err
	}
	n, err := conn.Event(event).OutcomeCount(ctx)
	if err != nil {
		return nil, nil, common.Address{}, err
	}
	sold, err := market.NetOutcomeTokensSold(ctx, n)
	if err != nil {
		return nil, nil, common.Address{}, err
	}
	funding, err := market.Funding(ctx)
	if err != nil {
		return nil, nil, common.Address{}, err
	}
	return sold, funding, event, nil
}
