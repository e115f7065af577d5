package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/store"
	"github.com/gnosisguild/enclave-sub005/pkg/store/memstore"
)

func TestPutGetRequiresPassword(t *testing.T) {
	k := New(memstore.New())
	require.True(t, k.Locked())

	err := k.SetWallet(context.Background(), []byte("secret"))
	require.ErrorIs(t, err, ErrLocked)

	_, err = k.Wallet(context.Background())
	require.ErrorIs(t, err, ErrLocked)
}

func TestSetAndGetWalletRoundTrips(t *testing.T) {
	k := New(memstore.New())
	require.NoError(t, k.SetPassword([]byte("hunter2")))
	require.False(t, k.Locked())

	require.NoError(t, k.SetWallet(context.Background(), []byte("0xdeadbeef")))

	got, err := k.Wallet(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("0xdeadbeef"), got)
}

func TestDeletePasswordLocksKeystore(t *testing.T) {
	k := New(memstore.New())
	require.NoError(t, k.SetPassword([]byte("hunter2")))
	require.NoError(t, k.SetWallet(context.Background(), []byte("0xdeadbeef")))

	k.DeletePassword()
	require.True(t, k.Locked())

	_, err := k.Wallet(context.Background())
	require.ErrorIs(t, err, ErrLocked)
}

func TestWrongPasswordFailsToDecrypt(t *testing.T) {
	backend := memstore.New()
	k1 := New(backend)
	require.NoError(t, k1.SetPassword([]byte("correct")))
	require.NoError(t, k1.SetWallet(context.Background(), []byte("0xdeadbeef")))

	k2 := New(backend)
	require.NoError(t, k2.SetPassword([]byte("wrong")))
	_, err := k2.Wallet(context.Background())
	require.Error(t, err)
}

func TestHasWalletDoesNotRequireUnlock(t *testing.T) {
	k := New(memstore.New())
	has, err := k.HasWallet(context.Background())
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, k.SetPassword([]byte("hunter2")))
	require.NoError(t, k.SetWallet(context.Background(), []byte("0xdeadbeef")))

	k.DeletePassword()
	has, err = k.HasWallet(context.Background())
	require.NoError(t, err)
	require.True(t, has)
}

func TestPurgeLibp2pIdentity(t *testing.T) {
	k := New(memstore.New())
	require.NoError(t, k.SetPassword([]byte("hunter2")))
	require.NoError(t, k.SetLibp2pIdentity(context.Background(), []byte("identity-bytes")))

	require.NoError(t, k.PurgeLibp2pIdentity(context.Background()))

	_, err := k.Libp2pIdentity(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)
}
