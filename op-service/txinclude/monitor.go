package txinclude

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Monitor keeps polling for a receipt until it shows up and has enough confirmations.
type Monitor struct {
	inner     ConfirmationSource
	blockTime time.Duration
}

func NewMonitor(inner ConfirmationSource, blockTime time.Duration) *Monitor {
	return &Monitor{
		inner:     inner,
		blockTime: blockTime,
	}
}

var transientErrs = []error{
	ethereum.NotFound,
	errors.New("transaction indexing in progress"), // Not exported from geth.
}

func isTransient(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	return slices.ContainsFunc(transientErrs, func(transientErr error) bool {
		return strings.Contains(err.Error(), transientErr.Error())
	})
}

func (m *Monitor) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := m.inner.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !isTransient(err) {
			return nil, err
		}
		if err := m.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// WaitConfirmed waits until the receipt for hash is included and buried under enough blocks
// for the inclusion block to count as confirmations deep (1 means the inclusion block itself).
// If the inclusion block is reorged out while waiting, the wait starts over.
func (m *Monitor) WaitConfirmed(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	for {
		receipt, err := m.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		target := receipt.BlockNumber.Uint64() + confirmations - 1
		for {
			head, err := m.inner.BlockNumber(ctx)
			if err != nil && !isTransient(err) {
				return nil, err
			}
			if err == nil && head >= target {
				break
			}
			if err := m.sleep(ctx); err != nil {
				return nil, err
			}
		}
		if confirmations == 1 {
			return receipt, nil
		}
		latest, err := m.inner.TransactionReceipt(ctx, hash)
		if err == nil && latest != nil && latest.BlockHash == receipt.BlockHash {
			return latest, nil
		}
		if err != nil && !isTransient(err) {
			return nil, err
		}
	}
}

func (m *Monitor) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.blockTime):
		return nil
	}
}
