package config

import (
	"fmt"
	"os"
)

// folderPerm is the permission every node folder is created with: key
// material and the event log live under it, so the owner has full access,
// the group may only read, and world access stays off.
const folderPerm os.FileMode = 0o740

// homeFolder resolves the current user's home directory, falling back to
// the working directory when the environment does not expose one (bare
// containers).
func homeFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// EnsureNodeFolder creates the node folder with restricted permissions,
// or verifies an existing one. A pre-existing folder with looser
// permissions is tightened back to folderPerm rather than accepted:
// keyshare snapshots and identity keys are about to be written under it.
func EnsureNodeFolder(folder string) (string, error) {
	info, err := os.Lstat(folder)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", fmt.Errorf("config: node folder %s exists and is not a directory", folder)
		}
		if info.Mode().Perm() != folderPerm {
			if err := os.Chmod(folder, folderPerm); err != nil {
				return "", fmt.Errorf("config: tightening permissions on %s: %w", folder, err)
			}
		}
		return folder, nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(folder, folderPerm); err != nil {
			return "", fmt.Errorf("config: creating node folder %s: %w", folder, err)
		}
		// MkdirAll's mode passes through the umask; pin it
		if err := os.Chmod(folder, folderPerm); err != nil {
			return "", fmt.Errorf("config: setting permissions on %s: %w", folder, err)
		}
		return folder, nil
	default:
		return "", fmt.Errorf("config: checking node folder %s: %w", folder, err)
	}
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
