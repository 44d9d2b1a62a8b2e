// Package storage answers where downloaded model files live and whether a
// descriptor's weights are present on disk. It never downloads anything.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"companiond/internal/catalog"
	"companiond/internal/common/fsutil"
)

// Store is the storage collaborator consulted before a model is loaded.
type Store interface {
	// Root is the directory downloaded model files are kept under.
	Root() string
	// Exists reports whether the descriptor resolves to a file on disk.
	Exists(d catalog.Descriptor) bool
	// Path returns the resolved file for d, or "" when it is not on disk.
	Path(d catalog.Descriptor) string
}

// FSStore is a Store backed by a local directory.
type FSStore struct {
	root string
}

// NewFSStore returns a store rooted at dir ("~" expanded, made absolute).
// The directory does not need to exist yet.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty storage root")
	}
	p, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Unrooted returns a store without a download directory; only descriptors
// with a local Path resolve.
func Unrooted() *FSStore { return &FSStore{} }

func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Exists(d catalog.Descriptor) bool {
	return d.ResolvePath(s.root) != ""
}

func (s *FSStore) Path(d catalog.Descriptor) string {
	return d.ResolvePath(s.root)
}

// EnsureRoot creates the root directory if it is missing.
func (s *FSStore) EnsureRoot() error {
	if fsutil.DirExists(s.root) {
		return nil
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	return nil
}
