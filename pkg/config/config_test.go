package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigAppliesDefaults(t *testing.T) {
	c := NewConfig()

	require.Equal(t, DefaultControlPort, c.ControlPort())
	require.Equal(t, DefaultDKGTimeout, c.DKGTimeout())
	require.Equal(t, StorageEngineBolt, c.StorageEngine())
	require.NotNil(t, c.Logger())
	require.NotNil(t, c.Clock())
}

func TestConfigOptionsOverrideDefaults(t *testing.T) {
	c := NewConfig(
		WithControlPort("1234"),
		WithDKGTimeout(30*time.Second),
		WithStorageEngine(StorageEngineMemory),
		WithChains(ChainEndpoint{ChainID: 1, RPCURL: "http://localhost:8545"}),
		WithBootstrapPeers("/ip4/127.0.0.1/tcp/4001/p2p/foo"),
	)

	require.Equal(t, "1234", c.ControlPort())
	require.Equal(t, 30*time.Second, c.DKGTimeout())
	require.Equal(t, StorageEngineMemory, c.StorageEngine())
	require.Len(t, c.Chains(), 1)
	require.Equal(t, uint64(1), c.Chains()[0].ChainID)
	require.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001/p2p/foo"}, c.BootstrapPeers())
}

func TestListenAddressFallsBackToDefault(t *testing.T) {
	c := NewConfig()
	require.Equal(t, "0.0.0.0:9000", c.ListenAddress("0.0.0.0:9000"))

	c = NewConfig(WithListenAddress("0.0.0.0:9100"))
	require.Equal(t, "0.0.0.0:9100", c.ListenAddress("0.0.0.0:9000"))
}

func TestOpenStoreSelectsMemoryBackend(t *testing.T) {
	c := NewConfig(WithStorageEngine(StorageEngineMemory))
	s, err := c.OpenStore()
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
