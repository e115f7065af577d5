package config

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureNodeFolderCreatesRestricted(t *testing.T) {
	folder := path.Join(t.TempDir(), "node1")
	got, err := EnsureNodeFolder(folder)
	require.NoError(t, err)
	require.Equal(t, folder, got)

	info, err := os.Lstat(folder)
	require.NoError(t, err)
	require.Equal(t, folderPerm, info.Mode().Perm())

	// idempotent on an existing folder
	_, err = EnsureNodeFolder(folder)
	require.NoError(t, err)
}

func TestEnsureNodeFolderTightensLoosePermissions(t *testing.T) {
	folder := path.Join(t.TempDir(), "loose")
	require.NoError(t, os.MkdirAll(folder, 0o777))
	require.NoError(t, os.Chmod(folder, 0o777))

	_, err := EnsureNodeFolder(folder)
	require.NoError(t, err)

	info, err := os.Lstat(folder)
	require.NoError(t, err)
	require.Equal(t, folderPerm, info.Mode().Perm())
}

func TestEnsureNodeFolderRejectsRegularFile(t *testing.T) {
	file := path.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := EnsureNodeFolder(file)
	require.Error(t, err)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	require.True(t, FileExists(dir))
	require.False(t, FileExists(path.Join(dir, "absent")))
}

func TestHomeFolderNonEmpty(t *testing.T) {
	require.NotEmpty(t, homeFolder())
}
