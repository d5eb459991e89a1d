package writers

// Functions for writing to a save file.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrWriteFailed = errors.New("write failed")

// Patch returns a copy of buf with the byte at offset set to value.
// buf itself is left alone, so callers can still compare before and after.
func Patch(buf []byte, offset int, value byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	out[offset] = value
	return out
}

// Commit replaces the file at filename with content.
//
// The new content goes to a temporary file in the same directory, which is
// synced and then renamed over the original.  A crash part-way through leaves
// either the old file or the new one, never half of each.
// The original file's permissions are kept.
func Commit(filename string, content []byte) error {
	err := commit(filename, content)
	if err != nil {
		return fmt.Errorf("%w: %v: %w", ErrWriteFailed, filename, err)
	}
	return nil
}

func commit(filename string, content []byte) error {
	mode := os.FileMode(0644)
	info, err := os.Stat(filename)
	if err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpname := f.Name()
	// Harmless once the rename has happened
	defer os.Remove(tmpname)

	_, err = f.Write(content)
	if err != nil {
		f.Close()
		return err
	}
	err = f.Sync()
	if err != nil {
		f.Close()
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(tmpname, mode)
	if err != nil {
		return err
	}

	return os.Rename(tmpname, filename)
}
