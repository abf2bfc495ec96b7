package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFile is the database file name inside the mcsolve home directory.
const DBFile = "runs.db"

// HomeDir returns the mcsolve data directory.
// On Unix: ~/.mcsolve
// On Windows: %USERPROFILE%\.mcsolve
func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mcsolve"), nil
}

// DefaultPath returns the default database location, ~/.mcsolve/runs.db.
func DefaultPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFile), nil
}
