// Package keystore backs cmd/enclave's password/wallet CLI commands
// (spec §4.10/§10): encrypted-at-rest storage for the few secrets a node
// holds outside the event log itself (a wallet private key, a libp2p
// identity). It is a thin store.Repository wrapper around pkg/secretbox,
// the same "derive a key, seal, persist the sealed blob" shape pkg/secretbox
// itself generalized from ecies/ecies.go. The wallet/chain signing backend
// behind Wallet is out of scope per spec §1, so this package only manages
// the bytes, not what they are used to sign.
package keystore

import (
	"context"
	"errors"

	"github.com/gnosisguild/enclave-sub005/pkg/secretbox"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

// ErrLocked is returned by Put/Get when no password has been set.
var ErrLocked = errors.New("keystore: locked, call SetPassword first")

const (
	walletKey = "wallet"
	netKey    = "libp2p"
)

// Keystore is an encrypted-at-rest secret store scoped to one node.
type Keystore struct {
	repo store.Repository
	key  *secretbox.Key
}

// New returns a Keystore rooted at //keystore on backend.
func New(backend store.Store) *Keystore {
	return &Keystore{repo: store.NewRepository(backend, "//keystore")}
}

// SetPassword derives and caches the encryption key used by Put/Get for
// the remainder of this process's lifetime. Backs `password set`.
func (k *Keystore) SetPassword(passphrase []byte) error {
	key, err := secretbox.DeriveKey(passphrase, nil)
	if err != nil {
		return err
	}
	if k.key != nil {
		k.key.Zeroize()
	}
	k.key = key
	return nil
}

// DeletePassword zeroes the cached key, locking the keystore. Backs
// `password delete`. It does not touch anything already persisted.
func (k *Keystore) DeletePassword() {
	if k.key != nil {
		k.key.Zeroize()
		k.key = nil
	}
}

// Locked reports whether SetPassword must be called before Put/Get.
func (k *Keystore) Locked() bool { return k.key == nil }

func (k *Keystore) put(ctx context.Context, name string, secret []byte) error {
	if k.key == nil {
		return ErrLocked
	}
	sealed, err := secretbox.Seal(k.key, secret)
	if err != nil {
		return err
	}
	return k.repo.Write(ctx, name, sealed.Encode())
}

func (k *Keystore) get(ctx context.Context, name string) ([]byte, error) {
	if k.key == nil {
		return nil, ErrLocked
	}
	raw, err := k.repo.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	sealed, err := secretbox.Decode(raw)
	if err != nil {
		return nil, err
	}
	return secretbox.Open(k.key, sealed)
}

// SetWallet stores the wallet private key. Backs `wallet set`.
func (k *Keystore) SetWallet(ctx context.Context, privKey []byte) error {
	return k.put(ctx, walletKey, privKey)
}

// Wallet returns the stored wallet private key. Backs `wallet get`.
func (k *Keystore) Wallet(ctx context.Context) ([]byte, error) {
	return k.get(ctx, walletKey)
}

// HasWallet reports whether a wallet key has been set, without unlocking.
func (k *Keystore) HasWallet(ctx context.Context) (bool, error) {
	return k.repo.Has(ctx, walletKey)
}

// SetLibp2pIdentity stores the raw libp2p private key. The `net` CLI
// commands do not use it; they manage the identity file via netpeer.
func (k *Keystore) SetLibp2pIdentity(ctx context.Context, privKey []byte) error {
	return k.put(ctx, netKey, privKey)
}

// Libp2pIdentity returns the stored raw libp2p private key.
func (k *Keystore) Libp2pIdentity(ctx context.Context) ([]byte, error) {
	return k.get(ctx, netKey)
}

// PurgeLibp2pIdentity deletes the stored libp2p identity.
func (k *Keystore) PurgeLibp2pIdentity(ctx context.Context) error {
	return k.repo.Clear(ctx, netKey)
}
