package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MarketContract is a deployed LMSR market.
type MarketContract struct {
	conn    *Connection
	address common.Address
}

func (m *MarketContract) Address() common.Address { return m.address }

// Fund seeds the market with funding base units of collateral. The market
// must already be approved to pull them.
func (m *MarketContract) Fund(ctx context.Context, funding *big.Int) (*types.Receipt, error) {
	data, err := MarketABI.Pack("fund", funding)
	if err != nil {
		return nil, fmt.Errorf("chain: pack fund: %w", err)
	}
	receipt, err := m.conn.Transact(ctx, m.address, nil, data)
	if err != nil {
		return receipt, fmt.Errorf("chain: fund: %w", err)
	}
	return receipt, nil
}

// Buy purchases count outcome tokens of outcome index, paying at most
// maxCost collateral.
func (m *MarketContract) Buy(ctx context.Context, index uint8, count, maxCost *big.Int) (*types.Receipt, error) {
	data, err := MarketABI.Pack("buy", index, count, maxCost)
	if err != nil {
		return nil, fmt.Errorf("chain: pack buy: %w", err)
	}
	receipt, err := m.conn.Transact(ctx, m.address, nil, data)
	if err != nil {
		return receipt, fmt.Errorf("chain: buy: %w", err)
	}
	return receipt, nil
}

// Funding returns the market's funding in base units.
func (m *MarketContract) Funding(ctx context.Context) (*big.Int, error) {
	data, err := MarketABI.Pack("funding")
	if err != nil {
		return nil, fmt.Errorf("chain: pack funding: %w", err)
	}
	out, err := m.conn.Call(ctx, m.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: funding: %w", err)
	}
	return unpackBig(MarketABI.Unpack("funding", out))
}

// EventAddress returns the event the market trades on.
func (m *MarketContract) EventAddress(ctx context.Context) (common.Address, error) {
	data, err := MarketABI.Pack("eventContract")
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack eventContract: %w", err)
	}
	out, err := m.conn.Call(ctx, m.address, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: eventContract: %w", err)
	}
	vals, err := MarketABI.Unpack("eventContract", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: unpack eventContract: %w", err)
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: unpack eventContract: unexpected type %T", vals[0])
	}
	return addr, nil
}

// NetOutcomeTokensSold reads the signed quantity sold for each of
// outcomeCount outcomes.
func (m *MarketContract) NetOutcomeTokensSold(ctx context.Context, outcomeCount int) ([]*big.Int, error) {
	sold := make([]*big.Int, outcomeCount)
	for i := range outcomeCount {
		data, err := MarketABI.Pack("netOutcomeTokensSold", big.NewInt(int64(i)))
		if err != nil {
			return nil, fmt.Errorf("chain: pack netOutcomeTokensSold: %w", err)
		}
		out, err := m.conn.Call(ctx, m.address, data)
		if err != nil {
			return nil, fmt.Errorf("chain: netOutcomeTokensSold(%d): %w", i, err)
		}
		v, err := unpackBig(MarketABI.Unpack("netOutcomeTokensSold", out))
		if err != nil {
			return nil, err
		}
		sold[i] = v
	}
	return sold, nil
}

// PurchaseCost extracts the collateral paid from a buy receipt's
// OutcomeTokenPurchase log.
func (m *MarketContract) PurchaseCost(receipt *types.Receipt) (*big.Int, bool) {
	ev := MarketABI.Events["OutcomeTokenPurchase"]
	for _, lg := range receipt.Logs {
		if lg.Address != m.address || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		vals, err := MarketABI.Unpack("OutcomeTokenPurchase", lg.Data)
		if err != nil || len(vals) < 3 {
			return nil, false
		}
		cost, ok := vals[2].(*big.Int)
		return cost, ok
	}
	return nil, false
}

// EventContract is a deployed event.
type EventContract struct {
	conn    *Connection
	address common.Address
}

// OutcomeCount returns the number of outcomes of the event.
func (e *EventContract) OutcomeCount(ctx context.Context) (int, error) {
	data, err := EventABI.Pack("getOutcomeCount")
	if err != nil {
		return 0, fmt.Errorf("chain: pack getOutcomeCount: %w", err)
	}
	out, err := e.conn.Call(ctx, e.address, data)
	if err != nil {
		return 0, fmt.Errorf("chain: getOutcomeCount: %w", err)
	}
	vals, err := EventABI.Unpack("getOutcomeCount", out)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack getOutcomeCount: %w", err)
	}
	n, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: unpack getOutcomeCount: unexpected type %T", vals[0])
	}
	return int(n), nil
}
