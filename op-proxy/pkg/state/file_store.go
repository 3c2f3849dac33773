package state

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-service/jsonutil"
)

const pendingSuffix = ".pending.json"

// FileStore keeps each record in <dir>/<network>/<name>.json and its
// journal in <dir>/<network>/<name>.pending.json. Writes are atomic renames.
type FileStore struct {
	fs  afero.Fs
	dir string
}

func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fsys, dir: dir}
}

func (s *FileStore) recordPath(key proxy.Key) string {
	return path.Join(s.dir, key.Network, key.Name+".json")
}

func (s *FileStore) pendingPath(key proxy.Key) string {
	return path.Join(s.dir, key.Network, key.Name+pendingSuffix)
}

func (s *FileStore) Get(key proxy.Key) (*proxy.ProxyRecord, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	rec, err := jsonutil.LoadJSON[proxy.ProxyRecord](s.fs, s.recordPath(key))
	if errors.Is(err, jsonutil.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", proxy.ErrRecordNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", key, err)
	}
	return rec, nil
}

func (s *FileStore) Put(rec *proxy.ProxyRecord) error {
	key := rec.Key()
	if err := checkKey(key); err != nil {
		return err
	}
	prev, err := s.Get(key)
	if err != nil && !errors.Is(err, proxy.ErrRecordNotFound) {
		return err
	}
	if err := checkReplace(prev, rec); err != nil {
		return err
	}
	if err := jsonutil.WriteJSON(s.fs, rec, s.recordPath(key)); err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) List(network string) ([]*proxy.ProxyRecord, error) {
	networks := []string{network}
	if network == "" {
		entries, err := afero.ReadDir(s.fs, s.dir)
		if errors.Is(err, jsonutil.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list networks: %w", err)
		}
		networks = networks[:0]
		for _, e := range entries {
			if e.IsDir() {
				networks = append(networks, e.Name())
			}
		}
	}
	var out []*proxy.ProxyRecord
	for _, n := range networks {
		entries, err := afero.ReadDir(s.fs, path.Join(s.dir, n))
		if errors.Is(err, jsonutil.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list records of %s: %w", n, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, pendingSuffix) {
				continue
			}
			rec, err := s.Get(proxy.Key{Network: n, Name: strings.TrimSuffix(name, ".json")})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) GetPending(key proxy.Key) (*proxy.PendingUpgrade, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	p, err := jsonutil.LoadJSON[proxy.PendingUpgrade](s.fs, s.pendingPath(key))
	if errors.Is(err, jsonutil.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending upgrade of %s: %w", key, err)
	}
	return p, nil
}

func (s *FileStore) PutPending(key proxy.Key, p *proxy.PendingUpgrade) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := jsonutil.WriteJSON(s.fs, p, s.pendingPath(key)); err != nil {
		return fmt.Errorf("failed to write pending upgrade of %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) ClearPending(key proxy.Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := s.fs.Remove(s.pendingPath(key))
	if err != nil && !errors.Is(err, jsonutil.ErrNotExist) {
		return fmt.Errorf("failed to clear pending upgrade of %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
