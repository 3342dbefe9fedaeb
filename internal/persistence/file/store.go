// Package file keeps the document as a single JSON file replaced by
// write-then-rename.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"example.com/liftlog/internal/persistence"
)

const stagingInfix = ".tmp."

// Store is a persistence.DocumentStore backed by one file on local disk.
type Store struct {
	path string
	perm os.FileMode
}

// Open prepares the directory holding path and removes staging files left by
// an interrupted write. The committed document is never touched.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{path: path, perm: 0o600}
	if err := s.removeStale(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the committed document location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the committed document or persistence.ErrNoDocument.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write replaces the document. The new bytes are fully written and synced
// to a staging file before the rename makes them visible.
func (s *Store) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	staged, err := s.stage(data)
	if err != nil {
		return err
	}
	return s.commit(staged)
}

// Close is a no-op; the store holds no open handles between writes.
func (s *Store) Close() error {
	return nil
}

func (s *Store) stage(data []byte) (string, error) {
	dir, base := filepath.Dir(s.path), filepath.Base(s.path)
	tmp, err := os.CreateTemp(dir, base+stagingInfix+"*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	name := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(name)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Chmod(s.perm); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	ok = true
	return name, nil
}

func (s *Store) commit(staged string) error {
	if err := os.Rename(staged, s.path); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("commit document: %w", err)
	}
	return fsyncDir(filepath.Dir(s.path))
}

func (s *Store) removeStale() error {
	dir, base := filepath.Dir(s.path), filepath.Base(s.path)
	matches, err := filepath.Glob(filepath.Join(dir, base+stagingInfix+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale staging file: %w", err)
		}
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
