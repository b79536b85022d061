// Package storage resolves notebook names and paths to files under the
// notebook directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nbconvert/internal/domain"
)

// Extension is the file extension of stored notebooks.
const Extension = ".ipynb"

// Info describes a stored notebook.
type Info struct {
	OSPath   string
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// Store is a read-only view of a notebook directory.
type Store struct {
	root string
}

// New returns a store rooted at dir.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve notebook dir: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute notebook directory.
func (s *Store) Root() string { return s.root }

// OSPath maps a notebook name and its directory path, relative to the root,
// to a filesystem path. Paths leaving the root are rejected.
func (s *Store) OSPath(name, path string) (string, error) {
	path = strings.Trim(path, "/")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
	}
	p := filepath.Join(s.root, filepath.FromSlash(path), name)
	if !s.contains(p) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
	}
	return p, nil
}

func (s *Store) contains(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stat returns the notebook name in path if it is an existing regular file.
func (s *Store) Stat(name, path string) (Info, error) {
	osPath, err := s.OSPath(name, path)
	if err != nil {
		return Info{}, err
	}
	// Symlinks are followed only while they stay under the root.
	resolved, err := filepath.EvalSymlinks(osPath)
	if err != nil || !s.contains(resolved) {
		return Info{}, fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
	}
	fi, err := os.Stat(resolved)
	if err != nil || !fi.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
	}
	return Info{
		OSPath:   osPath,
		Name:     name,
		Path:     strings.Trim(path, "/"),
		Size:     fi.Size(),
		Modified: fi.ModTime(),
	}, nil
}
