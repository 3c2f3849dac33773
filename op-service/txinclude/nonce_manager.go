package txinclude

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// NonceFetcher returns the next pending nonce of the managed account.
type NonceFetcher func(ctx context.Context) (uint64, error)

// NonceManager tracks nonces for an account and handles gaps in the nonce sequence.
// The sequence starts at the chain's pending nonce, fetched on first use. When a
// transaction fails to be submitted its nonce is released and used preferentially
// for the next transaction.
type NonceManager struct {
	mu        sync.Mutex
	fetch     NonceFetcher
	started   bool
	nextNonce uint64
	gaps      []uint64 // sorted list of nonce gaps
}

func NewNonceManager(fetch NonceFetcher) *NonceManager {
	return &NonceManager{
		fetch: fetch,
		gaps:  make([]uint64, 0),
	}
}

// NewNonceManagerAt creates a nonce manager starting at the given nonce.
func NewNonceManagerAt(startNonce uint64) *NonceManager {
	return &NonceManager{
		started:   true,
		nextNonce: startNonce,
		gaps:      make([]uint64, 0),
	}
}

func (nm *NonceManager) Next(ctx context.Context) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	if !nm.started {
		start, err := nm.fetch(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetch pending nonce: %w", err)
		}
		nm.nextNonce = start
		nm.started = true
	}
	if len(nm.gaps) > 0 {
		nonce := nm.gaps[0]
		nm.gaps = nm.gaps[1:]
		return nonce, nil
	}
	nonce := nm.nextNonce
	nm.nextNonce++
	return nonce, nil
}

// InsertGap inserts a nonce gap. It is a no-op if nonce is already a gap or if it is ahead of the
// current nonce.
func (nm *NonceManager) InsertGap(nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	if nonce >= nm.nextNonce {
		return
	}
	i, exists := slices.BinarySearch(nm.gaps, nonce)
	if exists {
		return
	}
	nm.gaps = slices.Insert(nm.gaps, i, nonce)
}
