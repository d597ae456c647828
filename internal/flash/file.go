package flash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/okkerse/fieldlink/internal/logging"
)

// FileStore keeps each blob in its own file under a root directory,
// namespaced one directory deep. Writes go through a temporary file and
// an atomic rename so a crash never leaves a half-written blob behind.
type FileStore struct {
	root string

	mu      sync.Mutex
	mounted bool
}

// NewFileStore returns a store rooted at dir. The directory is created
// on Mount, not here.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Mount makes the root directory usable. A root that exists but is not a
// directory is erased and re-created, the same recovery a unit applies
// to an unusable storage partition.
func (s *FileStore) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, err := os.Stat(s.root); err == nil && !info.IsDir() {
		logging.Warn("Flash root is not a directory, erasing",
			zap.String("path", s.root))
		if err := os.Remove(s.root); err != nil {
			return fmt.Errorf("erasing unusable flash root: %w", err)
		}
	}
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("creating flash root: %w", err)
	}
	s.mounted = true
	return nil
}

// Unmount releases the store.
func (s *FileStore) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrNotMounted
	}
	s.mounted = false
	return nil
}

// Read returns the blob stored under namespace and key.
func (s *FileStore) Read(namespace, key string) ([]byte, error) {
	path, err := s.blobPath(namespace, key)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s/%s: %w", namespace, key, err)
	}
	return blob, nil
}

// Write stores blob under namespace and key, replacing any previous
// value atomically.
func (s *FileStore) Write(namespace, key string, blob []byte) error {
	path, err := s.blobPath(namespace, key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating namespace %s: %w", namespace, err)
	}

	// Write to a temporary file first, then rename. Rename within one
	// directory is atomic, so readers see either the old blob or the new
	// one, never a mix.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return fmt.Errorf("writing blob %s/%s: %w", namespace, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes the blob stored under namespace and key.
func (s *FileStore) Delete(namespace, key string) error {
	path, err := s.blobPath(namespace, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
		}
		return fmt.Errorf("deleting blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under namespace and key.
func (s *FileStore) Exists(namespace, key string) (bool, error) {
	path, err := s.blobPath(namespace, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking blob %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

func (s *FileStore) blobPath(namespace, key string) (string, error) {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if !mounted {
		return "", ErrNotMounted
	}
	if err := checkName(namespace, key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, namespace, key+".bin"), nil
}
