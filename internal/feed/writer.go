// Package feed writes generated feeds to disk and formats longitudes for
// display.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotWritable is returned when the output location cannot be written.
var ErrNotWritable = errors.New("output path not writable")

// WriteFile encodes v as indented JSON into path. The data goes to a
// temporary file in the same directory which is then renamed over path,
// so readers never observe a partial feed.
func WriteFile(path string, v interface{}) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(v); err != nil {
		return fmt.Errorf("encoding feed: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing feed: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing feed: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod feed: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming feed into place: %w", err)
	}
	return nil
}

// CheckWritable verifies that a file can be created next to path.
func CheckWritable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrNotWritable)
	}
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: directory %s does not exist", ErrNotWritable, dir)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
