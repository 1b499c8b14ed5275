package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureStateDirs creates the database directory tree with restrictive
// permissions and verifies it is writable.
func EnsureStateDirs(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(dbPath, 0o700); err != nil {
		return fmt.Errorf("create state dir %s: %w", dbPath, err)
	}
	probe := filepath.Join(dbPath, ".writable")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("state dir %s not writable: %w", dbPath, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}
