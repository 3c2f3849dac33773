package txinclude

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustNext(t *testing.T, nm *NonceManager) uint64 {
	t.Helper()
	n, err := nm.Next(context.Background())
	require.NoError(t, err)
	return n
}

func TestNonceManagerNext(t *testing.T) {
	t.Run("sequential nonces with no gaps", func(t *testing.T) {
		nm := NewNonceManagerAt(5)

		require.Equal(t, uint64(5), mustNext(t, nm))
		require.Equal(t, uint64(6), mustNext(t, nm))
		require.Equal(t, uint64(7), mustNext(t, nm))
	})

	t.Run("handles single gap", func(t *testing.T) {
		nm := NewNonceManagerAt(20)

		nm.InsertGap(15)

		require.Equal(t, uint64(15), mustNext(t, nm))
		require.Equal(t, uint64(20), mustNext(t, nm))
		require.Equal(t, uint64(21), mustNext(t, nm))
	})

	t.Run("fetches start nonce lazily once", func(t *testing.T) {
		calls := 0
		nm := NewNonceManager(func(ctx context.Context) (uint64, error) {
			calls++
			return 9, nil
		})
		require.Zero(t, calls)
		require.Equal(t, uint64(9), mustNext(t, nm))
		require.Equal(t, uint64(10), mustNext(t, nm))
		require.Equal(t, 1, calls)
	})

	t.Run("fetch error is returned and retried", func(t *testing.T) {
		fail := true
		nm := NewNonceManager(func(ctx context.Context) (uint64, error) {
			if fail {
				return 0, errors.New("rpc down")
			}
			return 3, nil
		})
		_, err := nm.Next(context.Background())
		require.ErrorContains(t, err, "rpc down")
		fail = false
		require.Equal(t, uint64(3), mustNext(t, nm))
	})
}

func TestNonceManagerInsertGap(t *testing.T) {
	t.Run("inserts gaps in sorted order", func(t *testing.T) {
		nm := NewNonceManagerAt(100)

		nm.InsertGap(50)
		nm.InsertGap(30)
		nm.InsertGap(70)

		require.Equal(t, []uint64{30, 50, 70}, nm.gaps)
	})

	t.Run("ignores duplicates and future nonces", func(t *testing.T) {
		nm := NewNonceManagerAt(10)

		nm.InsertGap(4)
		nm.InsertGap(4)
		nm.InsertGap(10)
		nm.InsertGap(11)

		require.Equal(t, []uint64{4}, nm.gaps)
	})
}

func TestNonceManagerConcurrentUnique(t *testing.T) {
	nm := NewNonceManagerAt(0)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := nm.Next(context.Background())
			require.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 50)
}
