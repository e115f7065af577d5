// Package badgerstore implements store.Store over the badger2-backed
// ipfs/go-datastore abstraction, the second pluggable KV backend named in
// SPEC_FULL.md's domain stack. It is a thin adapter over ds.Datastore's
// key/value/query contract rather than a reimplementation of badger's API,
// the same "wrap a datastore.Datastore" shape the IPFS ecosystem uses.
package badgerstore

import (
	"context"

	badger "github.com/ipfs/go-ds-badger2"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"

	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

// BadgerStore is a store.Store backed by a badger2 datastore.
type BadgerStore struct {
	ds *badger.Datastore
}

// Open opens (creating if absent) a badger2-backed store rooted at folder.
func Open(folder string, opts *badger.Options) (*BadgerStore, error) {
	if opts == nil {
		defaults := badger.DefaultOptions
		opts = &defaults
	}
	d, err := badger.NewDatastore(folder, opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{ds: d}, nil
}

func toKey(k []byte) ds.Key { return ds.NewKey(string(k)) }

func (b *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := b.ds.Get(ctx, toKey(key))
	if err == ds.ErrNotFound {
		return nil, store.ErrNotFound
	}
	return v, err
}

func (b *BadgerStore) Put(ctx context.Context, key, value []byte) error {
	return b.ds.Put(ctx, toKey(key), value)
}

func (b *BadgerStore) Has(ctx context.Context, key []byte) (bool, error) {
	return b.ds.Has(ctx, toKey(key))
}

func (b *BadgerStore) Delete(ctx context.Context, key []byte) error {
	return b.ds.Delete(ctx, toKey(key))
}

func (b *BadgerStore) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	results, err := b.ds.Query(ctx, query.Query{Prefix: string(prefix)})
	if err != nil {
		return err
	}
	defer results.Close()
	for entry := range results.Next() {
		if entry.Error != nil {
			return entry.Error
		}
		if !fn([]byte(entry.Key), entry.Value) {
			break
		}
	}
	return nil
}

func (b *BadgerStore) Close() error { return b.ds.Close() }
