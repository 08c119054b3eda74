package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// Connection is an established, shared link to the chain: a backend, the
// signing account and the contract registry. It is safe for concurrent use.
type Connection struct {
	backend  Backend
	chainID  *big.Int
	account  common.Address
	registry Registry
	limiter  *rate.Limiter
	tx       *transactor
	confirm  confirmer
	logger   *slog.Logger
}

func (c *Connection) Account() common.Address { return c.account }
func (c *Connection) ChainID() *big.Int       { return new(big.Int).Set(c.chainID) }
func (c *Connection) Registry() Registry      { return c.registry }

// Call performs a read-only contract call from the connection's account.
func (c *Connection) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.CallContract(ctx, ethereum.CallMsg{From: c.account, To: &to, Data: data}, nil)
}

// Transact submits a transaction and blocks until it is mined. A reverted
// transaction returns domain.ErrTxReverted together with its receipt.
func (c *Connection) Transact(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	tx, err := c.tx.send(ctx, to, value, data)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("tx", tx.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", tx.Nonce()),
	)
	receipt, err := c.confirm.wait(ctx, tx.Hash())
	if err != nil {
		return receipt, fmt.Errorf("tx %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

// EtherToken returns the wrapped collateral token.
func (c *Connection) EtherToken() *EtherToken {
	return &EtherToken{conn: c, address: c.registry.EtherToken}
}

// Factories returns the oracle, event and market factories.
func (c *Connection) Factories() *Factories {
	return &Factories{conn: c}
}

// Market returns a handle on the market contract at address.
func (c *Connection) Market(address common.Address) *MarketContract {
	return &MarketContract{conn: c, address: address}
}

// Event returns a handle on the event contract at address.
func (c *Connection) Event(address common.Address) *EventContract {
	return &EventContract{conn: c, address: address}
}
