// Package chain holds the shared connection to the prediction-market
// contracts and the typed calls made against them.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// Backend is the part of an Ethereum JSON-RPC client the market operations
// use. *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// DialFunc opens a backend for an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// DialRPC is the production DialFunc.
func DialRPC(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	return client, nil
}

// Registry is the set of deployed contract addresses the connection works
// against.
type Registry struct {
	EtherToken               common.Address
	LMSRMarketMaker          common.Address
	StandardMarketFactory    common.Address
	CentralizedOracleFactory common.Address
	UltimateOracleFactory    common.Address
	EventFactory             common.Address
}

// Addresses is the hex form of a Registry as it appears in configuration.
type Addresses struct {
	EtherToken               string
	LMSRMarketMaker          string
	StandardMarketFactory    string
	CentralizedOracleFactory string
	UltimateOracleFactory    string
	EventFactory             string
}

// ParseRegistry checks and converts configured addresses. The ultimate
// oracle factory is optional.
func ParseRegistry(a Addresses) (Registry, error) {
	var r Registry
	required := []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"ether_token", a.EtherToken, &r.EtherToken},
		{"lmsr_market_maker", a.LMSRMarketMaker, &r.LMSRMarketMaker},
		{"standard_market_factory", a.StandardMarketFactory, &r.StandardMarketFactory},
		{"centralized_oracle_factory", a.CentralizedOracleFactory, &r.CentralizedOracleFactory},
		{"event_factory", a.EventFactory, &r.EventFactory},
	}
	for _, f := range required {
		if !common.IsHexAddress(f.raw) {
			return Registry{}, fmt.Errorf("chain: contract %s: invalid address %q", f.name, f.raw)
		}
		*f.dst = common.HexToAddress(f.raw)
	}
	if a.UltimateOracleFactory != "" {
		if !common.IsHexAddress(a.UltimateOracleFactory) {
			return Registry{}, fmt.Errorf("chain: contract ultimate_oracle_factory: invalid address %q", a.UltimateOracleFactory)
		}
		r.UltimateOracleFactory = common.HexToAddress(a.UltimateOracleFactory)
	}
	return r, nil
}

// ParseAddress converts a user-supplied hex address.
func ParseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", domain.ErrInvalidRecord, field, raw)
	}
	return common.HexToAddress(raw), nil
}
