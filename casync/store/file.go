package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFetcher fetches chunk bytes from a directory on the local
// filesystem rooted at Root. Paths handed to Fetch use forward slashes;
// they are converted to the host's separator before use.
type LocalFetcher struct {
	Root string
}

// NewLocalFetcher returns a LocalFetcher rooted at root.
func NewLocalFetcher(root string) *LocalFetcher {
	return &LocalFetcher{Root: root}
}

// Fetch reads the file at Root/path (after converting path's forward
// slashes to the host separator) and returns its contents whole, matching
// the teacher's plain os-based file access in filen/io/file.go.
func (f *LocalFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(f.Root, filepath.FromSlash(path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", full, err)
	}
	return data, nil
}
