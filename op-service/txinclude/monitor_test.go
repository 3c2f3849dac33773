package txinclude

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// mockSource implements ConfirmationSource for testing
type mockSource struct {
	mu       sync.Mutex
	receipts []*types.Receipt // returned in order, the last one repeats
	errs     []error
	calls    uint64
	head     uint64
	headStep uint64
}

func (m *mockSource) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if call < uint64(len(m.errs)) {
		return nil, m.errs[call]
	}
	idx := int(call) - len(m.errs)
	if idx >= len(m.receipts) {
		idx = len(m.receipts) - 1
	}
	return m.receipts[idx], nil
}

func (m *mockSource) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.head
	m.head += m.headStep
	return h, nil
}

func receiptAt(num uint64, blockHash common.Hash) *types.Receipt {
	return &types.Receipt{BlockNumber: new(big.Int).SetUint64(num), BlockHash: blockHash}
}

func TestMonitorReceiptFound(t *testing.T) {
	inner := &mockSource{receipts: []*types.Receipt{receiptAt(1, common.Hash{1})}}
	monitor := NewMonitor(inner, time.Millisecond)
	receipt, err := monitor.TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.Equal(t, inner.receipts[0], receipt)
}

func TestMonitorTransientError(t *testing.T) {
	inner := &mockSource{
		errs:     []error{ethereum.NotFound, errors.New("transaction indexing in progress")},
		receipts: []*types.Receipt{receiptAt(1, common.Hash{1})},
	}
	receipt, err := NewMonitor(inner, time.Millisecond).TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.Equal(t, inner.receipts[0], receipt)
}

func TestMonitorFatalError(t *testing.T) {
	want := errors.New("connection refused")
	inner := &mockSource{errs: []error{want}}
	receipt, err := NewMonitor(inner, time.Millisecond).TransactionReceipt(context.Background(), common.Hash{})
	require.ErrorIs(t, err, want)
	require.Nil(t, receipt)
}

func TestMonitorWaitConfirmed(t *testing.T) {
	t.Run("single confirmation returns on inclusion", func(t *testing.T) {
		inner := &mockSource{receipts: []*types.Receipt{receiptAt(5, common.Hash{1})}, head: 5}
		receipt, err := NewMonitor(inner, time.Millisecond).WaitConfirmed(context.Background(), common.Hash{}, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(5), receipt.BlockNumber.Uint64())
	})

	t.Run("waits for depth", func(t *testing.T) {
		inner := &mockSource{receipts: []*types.Receipt{receiptAt(5, common.Hash{1})}, head: 5, headStep: 1}
		receipt, err := NewMonitor(inner, time.Millisecond).WaitConfirmed(context.Background(), common.Hash{}, 3)
		require.NoError(t, err)
		require.Equal(t, common.Hash{1}, receipt.BlockHash)
		require.GreaterOrEqual(t, inner.head, uint64(7))
	})

	t.Run("restarts after reorg", func(t *testing.T) {
		inner := &mockSource{
			receipts: []*types.Receipt{receiptAt(5, common.Hash{1}), receiptAt(6, common.Hash{2})},
			head:     10,
		}
		receipt, err := NewMonitor(inner, time.Millisecond).WaitConfirmed(context.Background(), common.Hash{}, 2)
		require.NoError(t, err)
		require.Equal(t, common.Hash{2}, receipt.BlockHash)
	})

	t.Run("context deadline surfaces", func(t *testing.T) {
		inner := &mockSource{receipts: []*types.Receipt{receiptAt(5, common.Hash{1})}, head: 5}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewMonitor(inner, time.Millisecond).WaitConfirmed(ctx, common.Hash{}, 100)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
