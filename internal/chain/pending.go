package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// PendingTx is a broadcast transaction. It implements domain.PendingTx.
type PendingTx struct {
	backend      Backend
	hash         common.Hash
	pollInterval time.Duration
}

// Hash returns the transaction hash.
func (p *PendingTx) Hash() common.Hash { return p.hash }

// Wait polls for the receipt until it appears or ctx is done. A mined
// transaction with a failed status returns domain.ErrTxReverted.
func (p *PendingTx) Wait(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("chain: tx %s: %w", p.hash.Hex(), domain.ErrTxReverted)
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
		default:
			return fmt.Errorf("chain: receipt %s: %w", p.hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("chain: waiting for %s: %w", p.hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ domain.PendingTx = (*PendingTx)(nil)
