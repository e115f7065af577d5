// Package memstore is an in-memory store.Store used by every package's test
// suite, mirroring the teacher's chain/memdb in-memory beacon store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemStore) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Has(_ context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemStore) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemStore) Iterate(_ context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make(map[string][]byte, len(keys))
	for _, k := range keys {
		vals[k] = append([]byte(nil), m.data[k]...)
	}
	m.mu.RUnlock()

	for _, k := range keys {
		if !fn([]byte(k), vals[k]) {
			break
		}
	}
	return nil
}

func (m *MemStore) Close() error { return nil }
