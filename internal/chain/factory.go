package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Creation is the outcome of a factory call: the address of the new
// contract and the receipt that announced it.
type Creation struct {
	Address common.Address
	Receipt *types.Receipt
}

// UltimateOracleArgs are the base-unit constructor arguments of an
// ultimate oracle.
type UltimateOracleArgs struct {
	ForwardedOracle   common.Address
	CollateralToken   common.Address
	SpreadMultiplier  uint8
	ChallengePeriod   *big.Int
	ChallengeAmount   *big.Int
	FrontRunnerPeriod *big.Int
}

// ErrFactoryNotConfigured is returned when the registry has no address for
// the factory a call needs.
var ErrFactoryNotConfigured = errors.New("chain: factory not configured")

// Factories creates oracles, events and markets.
type Factories struct {
	conn *Connection
}

// CreateCentralizedOracle creates an oracle bound to a description hash.
func (f *Factories) CreateCentralizedOracle(ctx context.Context, contentHash string) (Creation, error) {
	return f.create(ctx, f.conn.registry.CentralizedOracleFactory,
		CentralizedOracleFactoryABI, "createCentralizedOracle", "CentralizedOracleCreation",
		[]byte(contentHash))
}

// CreateUltimateOracle creates an oracle that forwards to another one and
// can be challenged.
func (f *Factories) CreateUltimateOracle(ctx context.Context, args UltimateOracleArgs) (Creation, error) {
	if f.conn.registry.UltimateOracleFactory == (common.Address{}) {
		return Creation{}, ErrFactoryNotConfigured
	}
	return f.create(ctx, f.conn.registry.UltimateOracleFactory,
		UltimateOracleFactoryABI, "createUltimateOracle", "UltimateOracleCreation",
		args.ForwardedOracle, args.CollateralToken, args.SpreadMultiplier,
		args.ChallengePeriod, args.ChallengeAmount, args.FrontRunnerPeriod)
}

// CreateCategoricalEvent creates an event with outcomeCount discrete
// outcomes.
func (f *Factories) CreateCategoricalEvent(ctx context.Context, collateral, oracle common.Address, outcomeCount uint8) (Creation, error) {
	return f.create(ctx, f.conn.registry.EventFactory,
		EventFactoryABI, "createCategoricalEvent", "CategoricalEventCreation",
		collateral, oracle, outcomeCount)
}

// CreateScalarEvent creates a ranged event. Bounds are in base units.
func (f *Factories) CreateScalarEvent(ctx context.Context, collateral, oracle common.Address, lower, upper *big.Int) (Creation, error) {
	return f.create(ctx, f.conn.registry.EventFactory,
		EventFactoryABI, "createScalarEvent", "ScalarEventCreation",
		collateral, oracle, lower, upper)
}

// CreateMarket creates an LMSR market on an event through factory.
func (f *Factories) CreateMarket(ctx context.Context, factory, event, marketMaker common.Address, fee uint32) (Creation, error) {
	return f.create(ctx, factory,
		StandardMarketFactoryABI, "createMarket", "StandardMarketCreation",
		event, marketMaker, new(big.Int).SetUint64(uint64(fee)))
}

func (f *Factories) create(ctx context.Context, factory common.Address, contract abi.ABI, method, event string, args ...any) (Creation, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return Creation{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	receipt, err := f.conn.Transact(ctx, factory, nil, data)
	if err != nil {
		return Creation{Receipt: receipt}, fmt.Errorf("chain: %s: %w", method, err)
	}
	addr, err := createdAddress(receipt, factory, contract, event)
	if err != nil {
		return Creation{Receipt: receipt}, err
	}
	return Creation{Address: addr, Receipt: receipt}, nil
}

// createdAddress reads the new contract address from the first non-indexed
// field of the factory's creation log.
func createdAddress(receipt *types.Receipt, emitter common.Address, contract abi.ABI, event string) (common.Address, error) {
	ev, ok := contract.Events[event]
	if !ok {
		return common.Address{}, fmt.Errorf("chain: unknown event %s", event)
	}
	for _, lg := range receipt.Logs {
		if lg.Address != emitter || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		vals, err := contract.Unpack(event, lg.Data)
		if err != nil {
			return common.Address{}, fmt.Errorf("chain: decode %s: %w", event, err)
		}
		if len(vals) == 0 {
			break
		}
		addr, ok := vals[0].(common.Address)
		if !ok {
			return common.Address{}, fmt.Errorf("chain: decode %s: unexpected type %T", event, vals[0])
		}
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("chain: %s log missing from tx %s", event, receipt.TxHash.Hex())
}
