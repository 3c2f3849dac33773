package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

var (
	recordPrefix  = []byte("record/")
	pendingPrefix = []byte("pending/")
)

// PebbleStore keeps records and journal entries as JSON values in a pebble database.
type PebbleStore struct {
	db *pebble.DB
	// mu makes the read-check-write of Put atomic.
	mu sync.Mutex
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	return openPebble(dir, &pebble.Options{})
}

// OpenMemPebbleStore opens a pebble store backed by memory.
func OpenMemPebbleStore() (*PebbleStore, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store at %q: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func dbKey(prefix []byte, key proxy.Key) []byte {
	out := append([]byte{}, prefix...)
	return append(out, key.String()...)
}

func (s *PebbleStore) get(k []byte, dst any) (bool, error) {
	data, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", k, err)
	}
	return true, nil
}

func (s *PebbleStore) put(k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(k, data, pebble.Sync)
}

func (s *PebbleStore) Get(key proxy.Key) (*proxy.ProxyRecord, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var rec proxy.ProxyRecord
	ok, err := s.get(dbKey(recordPrefix, key), &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", proxy.ErrRecordNotFound, key)
	}
	return &rec, nil
}

func (s *PebbleStore) Put(rec *proxy.ProxyRecord) error {
	key := rec.Key()
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.Get(key)
	if err != nil && !errors.Is(err, proxy.ErrRecordNotFound) {
		return err
	}
	if err := checkReplace(prev, rec); err != nil {
		return err
	}
	if err := s.put(dbKey(recordPrefix, key), rec); err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) List(network string) ([]*proxy.ProxyRecord, error) {
	lower := append([]byte{}, recordPrefix...)
	if network != "" {
		lower = append(lower, network+"/"...)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(lower)})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	defer iter.Close()
	var out []*proxy.ProxyRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec proxy.ProxyRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", iter.Key(), err)
		}
		out = append(out, &rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func (s *PebbleStore) GetPending(key proxy.Key) (*proxy.PendingUpgrade, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var p proxy.PendingUpgrade
	ok, err := s.get(dbKey(pendingPrefix, key), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending upgrade of %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *PebbleStore) PutPending(key proxy.Key, p *proxy.PendingUpgrade) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.put(dbKey(pendingPrefix, key), p); err != nil {
		return fmt.Errorf("failed to write pending upgrade of %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) ClearPending(key proxy.Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.db.Delete(dbKey(pendingPrefix, key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear pending upgrade of %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// prefixEnd returns the smallest key greater than every key with the prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
