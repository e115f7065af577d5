package main

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitCreatesFolderAndConfig(t *testing.T) {
	folder := path.Join(t.TempDir(), "node1")
	app := CLI()
	require.NoError(t, app.Run([]string{"enclave", "init", "--folder", folder}))

	raw, err := os.ReadFile(path.Join(folder, "enclave.toml"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "control_port")

	// second init leaves the existing config alone
	require.NoError(t, app.Run([]string{"enclave", "init", "--folder", folder}))
}

func TestNetGenerateAndPeerID(t *testing.T) {
	folder := t.TempDir()
	app := CLI()
	require.NoError(t, app.Run([]string{"enclave", "net", "generate", "--folder", folder}))

	_, err := os.Stat(path.Join(folder, "libp2p.key"))
	require.NoError(t, err)

	require.NoError(t, app.Run([]string{"enclave", "net", "get-peer-id", "--folder", folder}))
	require.NoError(t, app.Run([]string{"enclave", "net", "purge", "--folder", folder}))
	_, err = os.Stat(path.Join(folder, "libp2p.key"))
	require.True(t, os.IsNotExist(err))
}

func TestWalletRoundTrip(t *testing.T) {
	folder := t.TempDir()
	t.Setenv("ENCLAVE_PASSWORD", "cli-test-pass")

	app := CLI()
	require.NoError(t, app.Run([]string{"enclave", "init", "--folder", folder}))
	require.NoError(t, app.Run([]string{"enclave", "wallet", "set", "--folder", folder,
		"--private-key", "0xdeadbeef"}))
	require.NoError(t, app.Run([]string{"enclave", "wallet", "get", "--folder", folder}))
}
