// Package chaintest provides an in-memory chain backend that executes the
// market contract calls well enough for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/lmsrmarket/internal/chain"
	"github.com/alanyoungcy/lmsrmarket/internal/crypto"
)

// Fixed registry addresses used by NewRegistry.
var (
	EtherToken               = common.HexToAddress("0x00000000000000000000000000000000000e7e00")
	LMSRMarketMaker          = common.HexToAddress("0x00000000000000000000000000000000000a4a00")
	StandardMarketFactory    = common.HexToAddress("0x00000000000000000000000000000000000f4c00")
	CentralizedOracleFactory = common.HexToAddress("0x00000000000000000000000000000000000c0f00")
	UltimateOracleFactory    = common.HexToAddress("0x00000000000000000000000000000000000a0f00")
	EventFactory             = common.HexToAddress("0x00000000000000000000000000000000000e0f00")
)

// NewRegistry returns a registry pointing at the fixed test addresses.
func NewRegistry() chain.Registry {
	return chain.Registry{
		EtherToken:               EtherToken,
		LMSRMarketMaker:          LMSRMarketMaker,
		StandardMarketFactory:    StandardMarketFactory,
		CentralizedOracleFactory: CentralizedOracleFactory,
		UltimateOracleFactory:    UltimateOracleFactory,
		EventFactory:             EventFactory,
	}
}

// NewSigner returns a signer for a freshly generated key.
func NewSigner() *crypto.TxSigner {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return crypto.NewTxSigner(key)
}

// creationEvents maps factory methods onto the log they emit.
var creationEvents = map[string]struct {
	contract abi.ABI
	event    string
}{
	"createCentralizedOracle": {chain.CentralizedOracleFactoryABI, "CentralizedOracleCreation"},
	"createUltimateOracle":    {chain.UltimateOracleFactoryABI, "UltimateOracleCreation"},
	"createCategoricalEvent":  {chain.EventFactoryABI, "CategoricalEventCreation"},
	"createScalarEvent":       {chain.EventFactoryABI, "ScalarEventCreation"},
	"createMarket":            {chain.StandardMarketFactoryABI, "StandardMarketCreation"},
}

var allABIs = []abi.ABI{
	chain.EtherTokenABI,
	chain.CentralizedOracleFactoryABI,
	chain.UltimateOracleFactoryABI,
	chain.EventFactoryABI,
	chain.StandardMarketFactoryABI,
	chain.MarketABI,
	chain.EventABI,
}

// Call is one decoded transaction sent to the backend.
type Call struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []any
	Value  *big.Int
	TxHash common.Hash
}

// Backend is an in-memory chain.Backend. Every sent transaction is mined
// immediately unless HoldReceipts is set.
type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	calls    []Call
	reads    []string
	block    uint64
	created  uint64
	closed   bool

	balances map[common.Address]*big.Int

	// OutcomeCount is returned by getOutcomeCount.
	OutcomeCount uint8
	// MarketFunding is returned by funding.
	MarketFunding *big.Int
	// NetSold is returned by netOutcomeTokensSold.
	NetSold []*big.Int
	// MarketEvent is returned by eventContract.
	MarketEvent common.Address

	// Fail makes the named method fail on send or call.
	Fail map[string]error
	// Revert makes transactions calling the named method revert.
	Revert map[string]bool
	// SkipDepositCredit makes deposits succeed without crediting the
	// wrapped token balance.
	SkipDepositCredit bool
	// HoldReceipts keeps every transaction pending.
	HoldReceipts bool
	// ChainIDErr is returned by ChainID.
	ChainIDErr error
}

// NewBackend creates an empty chain with the given id.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:  big.NewInt(chainID),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
		balances: make(map[common.Address]*big.Int),
		Fail:     make(map[string]error),
		Revert:   make(map[string]bool),
	}
}

// Dialer returns a chain.DialFunc that always yields b.
func (b *Backend) Dialer() chain.DialFunc {
	return func(context.Context, string) (chain.Backend, error) { return b, nil }
}

// SetBalance sets owner's wrapped token balance.
func (b *Backend) SetBalance(owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[owner] = new(big.Int).Set(amount)
}

// Calls returns every transaction sent so far, in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Methods returns the method names of every transaction sent so far.
func (b *Backend) Methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Method
	}
	return out
}

// Reads returns the method names of every read-only call made so far.
func (b *Backend) Reads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.reads))
	copy(out, b.reads)
	return out
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	if b.ChainIDErr != nil {
		return nil, b.ChainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, args, err := decode(msg.Data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, method.Name)
	if err := b.Fail[method.Name]; err != nil {
		return nil, err
	}

	var out any
	switch method.Name {
	case "balanceOf":
		out = b.balance(args[0].(common.Address))
	case "getOutcomeCount":
		out = b.OutcomeCount
	case "funding":
		out = orZero(b.MarketFunding)
	case "eventContract":
		out = b.MarketEvent
	case "netOutcomeTokensSold":
		i := int(args[0].(*big.Int).Int64())
		if i < len(b.NetSold) {
			out = orZero(b.NetSold[i])
		} else {
			out = new(big.Int)
		}
	default:
		return nil, fmt.Errorf("chaintest: %s is not a view", method.Name)
	}
	return method.Outputs.Pack(out)
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("chaintest: recover sender: %w", err)
	}
	method, args, err := decode(tx.Data())
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Fail[method.Name]; err != nil {
		return err
	}
	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("chaintest: nonce %d, expected %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.block++

	to := *tx.To()
	b.calls = append(b.calls, Call{
		From:   from,
		To:     to,
		Method: method.Name,
		Args:   args,
		Value:  new(big.Int).Set(tx.Value()),
		TxHash: tx.Hash(),
	})

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     tx.Gas() / 2,
	}
	if b.Revert[method.Name] {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		logs, err := b.execute(from, to, method.Name, args, tx.Value())
		if err != nil {
			return err
		}
		for _, lg := range logs {
			lg.TxHash = tx.Hash()
			lg.BlockNumber = b.block
		}
		receipt.Logs = logs
	}
	b.receipts[tx.Hash()] = receipt
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok || b.HoldReceipts {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// execute applies the state change of a transaction and returns its logs.
func (b *Backend) execute(from, to common.Address, method string, args []any, value *big.Int) ([]*types.Log, error) {
	switch method {
	case "deposit":
		if !b.SkipDepositCredit {
			b.balances[from] = new(big.Int).Add(b.balance(from), value)
		}
	case "buy":
		ev := chain.MarketABI.Events["OutcomeTokenPurchase"]
		data, err := ev.Inputs.NonIndexed().Pack(args[0], args[1], args[2], new(big.Int))
		if err != nil {
			return nil, err
		}
		return []*types.Log{{
			Address: to,
			Topics:  []common.Hash{ev.ID, common.BytesToHash(from.Bytes())},
			Data:    data,
		}}, nil
	}

	creation, ok := creationEvents[method]
	if !ok {
		return nil, nil
	}
	b.created++
	addr := ethcrypto.CreateAddress(to, b.created)
	ev := creation.contract.Events[creation.event]
	data, err := ev.Inputs.NonIndexed().Pack(append([]any{addr}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("chaintest: pack %s: %w", creation.event, err)
	}
	return []*types.Log{{
		Address: to,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(from.Bytes())},
		Data:    data,
	}}, nil
}

func (b *Backend) balance(owner common.Address) *big.Int {
	if v, ok := b.balances[owner]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("chaintest: calldata too short")
	}
	for _, contract := range allABIs {
		method, err := contract.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, nil, fmt.Errorf("chaintest: unpack %s: %w", method.Name, err)
		}
		return method, args, nil
	}
	return nil, nil, fmt.Errorf("chaintest: unknown selector %x", data[:4])
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
