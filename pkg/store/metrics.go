package store

import (
	"io/fs"
	"path/filepath"
)

// DiskUsage reports the bytes used by the store on disk. It prefers the
// engine's own accounting and falls back to walking the DB directory.
func DiskUsage() int64 {
	if db == nil {
		return 0
	}
	if m := db.Metrics(); m != nil {
		if u := m.DiskSpaceUsage(); u > 0 {
			return int64(u)
		}
	}
	if dbPath == "" {
		return 0
	}
	var total int64
	filepath.WalkDir(dbPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
