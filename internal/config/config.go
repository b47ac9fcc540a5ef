// Package config handles global configuration and the on-disk layout of
// credentials and library snapshots.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDir         = "mly"
	CredentialsDir = "credentials"
	LibraryFile    = "library.jsonl"
	CacheDir       = "cache"
	DBFile         = "library.db"
	DefaultUser    = "default"
)

// DefaultDataDir returns $XDG_DATA_HOME/mly, defaulting to ~/.local/share/mly.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppDir)
}

// CredentialsPath returns the token file for a user under the data directory.
func CredentialsPath(dataDir, user string) string {
	if user == "" {
		user = DefaultUser
	}
	return filepath.Join(dataDir, CredentialsDir, user+".json")
}

// LibraryPath returns the path to the JSONL library snapshot.
func LibraryPath(dataDir string) string {
	return filepath.Join(dataDir, LibraryFile)
}

// CachePath returns the path to the cache directory.
func CachePath(dataDir string) string {
	return filepath.Join(dataDir, CacheDir)
}

// DBPath returns the path to the SQLite library snapshot.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, CacheDir, DBFile)
}

// EnsureDir creates the directory (and parents) if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
