// Package secretbox wraps sensitive byte material (keyshares, threshold key
// material, wallet keys, libp2p private keys) so that it is encrypted at
// rest and zeroed once no longer needed. It generalizes the teacher's
// ecies package (ecies/ecies.go's hkdf-derive-then-AEAD-seal shape) from a
// point-to-point DH exchange to a local passphrase-derived key, using
// golang.org/x/crypto/nacl/secretbox instead of AES-GCM because the
// plaintext is sealed with a single symmetric key rather than a DH shared
// secret.
package secretbox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const keySize = 32
const nonceSize = 24

// ErrDecryptFailed is returned when Open cannot authenticate the sealed box,
// meaning either the key is wrong or the ciphertext was tampered with.
var ErrDecryptFailed = errors.New("secretbox: message authentication failed")

// Key is a derived symmetric key held only in memory. Zeroize must be
// called once the key is no longer needed.
type Key struct {
	raw [keySize]byte
}

// DeriveKey stretches passphrase (plus an optional salt, e.g. a node's
// address) into a Key via HKDF-SHA256, matching the teacher's
// hkdf.New(sha256.New, secret, nil, nil) convention in ecies/ecies.go.
func DeriveKey(passphrase, salt []byte) (*Key, error) {
	reader := hkdf.New(sha256.New, passphrase, salt, nil)
	k := &Key{}
	if _, err := io.ReadFull(reader, k.raw[:]); err != nil {
		return nil, err
	}
	return k, nil
}

// Zeroize overwrites the key material in place. Callers must not use the
// Key after calling Zeroize.
func (k *Key) Zeroize() {
	for i := range k.raw {
		k.raw[i] = 0
	}
}

// Sealed is an encrypted-at-rest blob: a random nonce followed by the
// secretbox-sealed ciphertext, safe to persist via store.Repository.
type Sealed struct {
	Nonce      [nonceSize]byte
	Ciphertext []byte
}

// Seal encrypts plaintext under key, generating a fresh random nonce.
func Seal(key *Key, plaintext []byte) (*Sealed, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	ct := secretbox.Seal(nil, plaintext, &nonce, &key.raw)
	return &Sealed{Nonce: nonce, Ciphertext: ct}, nil
}

// Open decrypts s under key, returning ErrDecryptFailed if authentication
// fails.
func Open(key *Key, s *Sealed) ([]byte, error) {
	plaintext, ok := secretbox.Open(nil, s.Ciphertext, &s.Nonce, &key.raw)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// Encode concatenates nonce and ciphertext into a single byte slice for
// storage, so a Sealed round-trips through store.Repository.Write/Read.
func (s *Sealed) Encode() []byte {
	out := make([]byte, nonceSize+len(s.Ciphertext))
	copy(out[:nonceSize], s.Nonce[:])
	copy(out[nonceSize:], s.Ciphertext)
	return out
}

// Decode parses the output of Encode back into a Sealed.
func Decode(raw []byte) (*Sealed, error) {
	if len(raw) < nonceSize {
		return nil, errors.New("secretbox: truncated sealed blob")
	}
	s := &Sealed{Ciphertext: append([]byte(nil), raw[nonceSize:]...)}
	copy(s.Nonce[:], raw[:nonceSize])
	return s, nil
}
