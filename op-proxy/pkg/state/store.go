// Package state persists proxy records between runs, keyed by network and contract name.
package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Store holds one ProxyRecord per key, plus at most one pending upgrade journal entry per key.
// Records are only ever replaced whole, and a record's proxy address can never change.
type Store interface {
	// Get returns proxy.ErrRecordNotFound if there is no record.
	Get(key proxy.Key) (*proxy.ProxyRecord, error)
	Put(rec *proxy.ProxyRecord) error
	// List returns the records of a network, or of all networks if network is empty,
	// sorted by key.
	List(network string) ([]*proxy.ProxyRecord, error)

	// GetPending returns nil without error if nothing is journaled.
	GetPending(key proxy.Key) (*proxy.PendingUpgrade, error)
	PutPending(key proxy.Key, p *proxy.PendingUpgrade) error
	ClearPending(key proxy.Key) error

	Close() error
}

type Backend string

const (
	BackendJSON   Backend = "json"
	BackendPebble Backend = "pebble"
)

func (b Backend) String() string {
	return string(b)
}

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendJSON, BackendPebble:
		return b, nil
	default:
		return "", fmt.Errorf("unknown state backend %q", s)
	}
}

// Open opens the store of the given backend rooted at dir.
func Open(backend Backend, fsys afero.Fs, dir string) (Store, error) {
	switch backend {
	case BackendJSON:
		return NewFileStore(fsys, dir), nil
	case BackendPebble:
		return OpenPebbleStore(dir)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

var ErrInvalidKey = errors.New("invalid record key")

func checkKey(key proxy.Key) error {
	for _, part := range []string{key.Network, key.Name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// checkReplace guards the proxy address of an existing record.
func checkReplace(prev, next *proxy.ProxyRecord) error {
	if prev == nil {
		return nil
	}
	if prev.ProxyAddress != next.ProxyAddress {
		return fmt.Errorf("record %s: proxy address is immutable, have %s, got %s",
			next.Key(), prev.ProxyAddress, next.ProxyAddress)
	}
	return nil
}

func sortRecords(records []*proxy.ProxyRecord) {
	slices.SortFunc(records, func(a, b *proxy.ProxyRecord) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})
}

// FindByProxy returns the record of network whose proxy lives at addr.
func FindByProxy(s Store, network string, addr common.Address) (*proxy.ProxyRecord, error) {
	records, err := s.List(network)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ProxyAddress == addr {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: no proxy %s on %s", proxy.ErrRecordNotFound, addr, network)
}
