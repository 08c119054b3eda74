package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// confirmer polls for transaction receipts.
type confirmer struct {
	backend  Backend
	limiter  *rate.Limiter
	interval time.Duration
	timeout  time.Duration
}

// wait blocks until hash is mined. It returns domain.ErrConfirmationTimeout
// when the receipt does not appear within the configured timeout, and
// domain.ErrTxReverted (with the receipt) when the transaction failed.
func (c confirmer) wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if c.limiter.Wait(waitCtx) == nil {
			// NotFound and transient RPC errors are retried until the deadline.
			receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
			if err == nil && receipt != nil {
				if receipt.Status != types.ReceiptStatusSuccessful {
					return receipt, domain.ErrTxReverted
				}
				return receipt, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}
