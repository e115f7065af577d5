// Package boltstore implements store.Store over go.etcd.io/bbolt, the
// durable single-file backend the teacher uses for its beacon chain
// (chain/boltdb/store.go), generalized here to a flat byte-key bucket for
// the ciphernode's Repository layer.
package boltstore

import (
	"context"
	"path"

	bolt "go.etcd.io/bbolt"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

var rootBucket = []byte("enclave")

// FileName is the on-disk database file name, mirroring the teacher's
// BoltFileName convention.
const FileName = "enclave.db"

// OpenPerm is the permission used to open/create the database file.
const OpenPerm = 0o660

// BoltStore is a store.Store backed by a single bbolt database file.
type BoltStore struct {
	db  *bolt.DB
	log elog.Logger
}

// Open opens (creating if absent) a BoltStore rooted at folder.
func Open(folder string, l elog.Logger, opts *bolt.Options) (*BoltStore, error) {
	dbPath := path.Join(folder, FileName)
	db, err := bolt.Open(dbPath, OpenPerm, opts)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		return nil, err
	}
	return &BoltStore{db: db, log: l}, nil
}

func (b *BoltStore) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return store.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *BoltStore) Put(_ context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
}

func (b *BoltStore) Has(_ context.Context, key []byte) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(rootBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltStore) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
}

func (b *BoltStore) Iterate(_ context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if !fn(append([]byte(nil), k...), append([]byte(nil), v...)) {
				break
			}
		}
		return nil
	})
}

func (b *BoltStore) Close() error { return b.db.Close() }

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}
