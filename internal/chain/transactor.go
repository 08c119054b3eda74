package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

const lockRetryInterval = 200 * time.Millisecond

// transactor builds, signs and submits transactions for one account.
// Submissions are serialised so that pending nonces never collide.
type transactor struct {
	backend   Backend
	signer    Signer
	chainID   *big.Int
	limiter   *rate.Limiter
	locks     domain.LockManager
	lockTTL   time.Duration
	bufferPct uint64
	logger    *slog.Logger

	mu sync.Mutex
}

func (t *transactor) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.signer.Address()
	if t.locks != nil {
		unlock, err := t.acquire(ctx, "tx:"+from.Hex())
		if err != nil {
			return nil, fmt.Errorf("chain: tx lock: %w", err)
		}
		defer unlock()
	}
	if value == nil {
		value = new(big.Int)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: nonce: %w", err)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	// 10% over the suggestion to avoid sitting in the pool.
	gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(110)), big.NewInt(100))

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("chain: estimate gas: %w", err)
	}
	gas = gas * (100 + t.bufferPct) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send tx: %w", err)
	}
	return signed, nil
}

// acquire retries the distributed lock until it is free or ctx ends.
func (t *transactor) acquire(ctx context.Context, key string) (func(), error) {
	for {
		unlock, err := t.locks.Acquire(ctx, key, t.lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		t.logger.DebugContext(ctx, "waiting for tx lock", slog.String("key", key))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
