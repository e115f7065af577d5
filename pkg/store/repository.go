package store

import (
	"context"
	"strings"
)

// Repository is a typed view onto a scoped prefix of the underlying Store
// (spec §3). Writes are append-only semantically: last-write-wins per key,
// matching the teacher's "beaconBucket" JSON-encoded bucket convention
// (chain/boltdb/store.go) generalized to an arbitrary prefix tree.
type Repository struct {
	backend Store
	prefix  string
}

// NewRepository returns the root repository for backend, scoped under prefix
// (e.g. "//keyshare").
func NewRepository(backend Store, prefix string) Repository {
	return Repository{backend: backend, prefix: prefix}
}

// Sub returns a child repository scoped under prefix + "/" + name, matching
// spec §6's "//parent/{child}" key layout.
func (r Repository) Sub(name string) Repository {
	return Repository{backend: r.backend, prefix: r.prefix + "/" + name}
}

func (r Repository) key(k string) []byte {
	return []byte(r.prefix + "/" + k)
}

func (r Repository) Read(ctx context.Context, key string) ([]byte, error) {
	return r.backend.Get(ctx, r.key(key))
}

func (r Repository) Write(ctx context.Context, key string, value []byte) error {
	return r.backend.Put(ctx, r.key(key), value)
}

func (r Repository) Has(ctx context.Context, key string) (bool, error) {
	return r.backend.Has(ctx, r.key(key))
}

func (r Repository) Clear(ctx context.Context, key string) error {
	return r.backend.Delete(ctx, r.key(key))
}

// Keys returns every key under this scope as the suffix after the prefix,
// including keys written through Sub repositories (their suffixes contain
// "/"). Used by components that enumerate persisted entities on restart
// (the sequencer's log, the sortition registry, the sync cursors).
func (r Repository) Keys(ctx context.Context) ([]string, error) {
	var out []string
	pfx := r.prefix + "/"
	err := r.backend.Iterate(ctx, []byte(pfx), func(key, _ []byte) bool {
		out = append(out, strings.TrimPrefix(string(key), pfx))
		return true
	})
	return out, err
}
