package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EtherToken is the wrapped native token used as market collateral.
type EtherToken struct {
	conn    *Connection
	address common.Address
}

func (t *EtherToken) Address() common.Address { return t.address }

// Deposit wraps amount of the native currency.
func (t *EtherToken) Deposit(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	data, err := EtherTokenABI.Pack("deposit")
	if err != nil {
		return nil, fmt.Errorf("chain: pack deposit: %w", err)
	}
	receipt, err := t.conn.Transact(ctx, t.address, amount, data)
	if err != nil {
		return receipt, fmt.Errorf("chain: deposit: %w", err)
	}
	return receipt, nil
}

// Approve lets spender move amount of the caller's wrapped tokens.
func (t *EtherToken) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	data, err := EtherTokenABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: pack approve: %w", err)
	}
	receipt, err := t.conn.Transact(ctx, t.address, nil, data)
	if err != nil {
		return receipt, fmt.Errorf("chain: approve: %w", err)
	}
	return receipt, nil
}

// BalanceOf returns owner's wrapped token balance in base units.
func (t *EtherToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := EtherTokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOf: %w", err)
	}
	out, err := t.conn.Call(ctx, t.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf: %w", err)
	}
	return unpackBig(EtherTokenABI.Unpack("balanceOf", out))
}

func unpackBig(vals []any, err error) (*big.Int, error) {
	if err != nil {
		return nil, fmt.Errorf("chain: unpack: %w", err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("chain: unpack: expected 1 value, got %d", len(vals))
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: unpack: unexpected type %T", vals[0])
	}
	return v, nil
}
