// Package util provides small shared helpers for the autorun tool.
package util

import (
	"encoding/json"
	"os"
)

// AtomicWriteJSON marshals v with indentation and writes it to path
// atomically. Readers never observe a half-written file: the data lands in a
// temporary file first and is renamed into place.
func AtomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data, 0644)
}

// AtomicWriteFile writes data to path via a temporary file and rename.
// The rename is atomic on POSIX systems, so a crash mid-write leaves the
// previous contents intact.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}
