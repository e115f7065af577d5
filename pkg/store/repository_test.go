package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/store"
	"github.com/gnosisguild/enclave-sub005/pkg/store/memstore"
)

func TestRepositoryScoping(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	root := store.NewRepository(backend, "//keyshare")

	a := root.Sub("1:7")
	b := root.Sub("1:8")

	require.NoError(t, a.Write(ctx, "state", []byte("A")))
	require.NoError(t, b.Write(ctx, "state", []byte("B")))

	va, err := a.Read(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, []byte("A"), va)

	vb, err := b.Read(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, []byte("B"), vb)

	has, err := a.Has(ctx, "state")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, a.Clear(ctx, "state"))
	has, err = a.Has(ctx, "state")
	require.NoError(t, err)
	require.False(t, has)
}

func TestRepositoryKeys(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	root := store.NewRepository(backend, "//context")
	require.NoError(t, root.Write(ctx, "1:7", []byte("a")))
	require.NoError(t, root.Write(ctx, "1:8", []byte("b")))

	keys, err := root.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1:7", "1:8"}, keys)
}
