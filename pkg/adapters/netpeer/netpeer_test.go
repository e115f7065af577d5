package netpeer

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
)

func TestTopicIsNamespacedPerNetwork(t *testing.T) {
	require.Equal(t, "/enclave/gossip/v0/mainnet", Topic("mainnet"))
	require.NotEqual(t, Topic("mainnet"), Topic("testnet"))
}

func TestLoadOrCreatePrivKeyPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	identityPath := path.Join(dir, "identity.key")

	priv0, err := LoadOrCreatePrivKey(identityPath, elog.DefaultLogger())
	require.NoError(t, err)

	priv1, err := LoadOrCreatePrivKey(identityPath, elog.DefaultLogger())
	require.NoError(t, err)

	require.True(t, priv0.Equals(priv1))
}

func TestLoadOrCreatePrivKeyCreatesMissingDirs(t *testing.T) {
	dir := t.TempDir()
	identityPath := path.Join(dir, "nested", "does-not-exist-yet", "identity.key")

	_, err := LoadOrCreatePrivKey(identityPath, elog.DefaultLogger())
	require.NoError(t, err)

	_, err = os.Stat(identityPath)
	require.NoError(t, err)
}

func TestPurgeIdentityRemovesFileAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	identityPath := path.Join(dir, "identity.key")

	_, err := LoadOrCreatePrivKey(identityPath, elog.DefaultLogger())
	require.NoError(t, err)

	require.NoError(t, PurgeIdentity(identityPath))
	_, err = os.Stat(identityPath)
	require.True(t, os.IsNotExist(err))

	// purging an already-absent identity is not an error
	require.NoError(t, PurgeIdentity(identityPath))
}

func TestParseMultiaddrsRejectsInvalidInput(t *testing.T) {
	_, err := ParseMultiaddrs([]string{"not-a-multiaddr"})
	require.Error(t, err)

	addrs, err := ParseMultiaddrs([]string{"/ip4/127.0.0.1/tcp/4001/p2p/QmcgpsyWgH8Y8ajJz1Cu72KnS5uo2Aa2LpzU7kinSWS1gB"})
	require.NoError(t, err)
	require.Len(t, addrs, 1)
}
