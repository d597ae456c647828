package flash

import (
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and the simulated agent. It
// supports injected faults and artificial latency so callers can exercise
// failure handling and busy windows deterministically.
type MemStore struct {
	mu      sync.Mutex
	mounted bool
	blobs   map[string][]byte

	latency      time.Duration
	failReads    int
	failWrites   int
	failMounts   int
	failUnmounts int
	readErr      error
	writeErr     error
	mountErr     error
	unmountErr   error

	reads  int
	writes int
}

// NewMemStore returns an unmounted empty store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Mount prepares the store for use.
func (s *MemStore) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMounts > 0 {
		s.failMounts--
		return s.mountErr
	}
	s.mounted = true
	return nil
}

// Unmount releases the store. Blobs survive an unmount, as flash contents
// survive a reboot.
func (s *MemStore) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrNotMounted
	}
	if s.failUnmounts > 0 {
		s.failUnmounts--
		return s.unmountErr
	}
	s.mounted = false
	return nil
}

// Read returns the blob stored under namespace and key.
func (s *MemStore) Read(namespace, key string) ([]byte, error) {
	s.sleep()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return nil, ErrNotMounted
	}
	if err := checkName(namespace, key); err != nil {
		return nil, err
	}
	s.reads++
	if s.failReads > 0 {
		s.failReads--
		return nil, s.readErr
	}
	blob, ok := s.blobs[namespace+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Write stores a copy of blob under namespace and key.
func (s *MemStore) Write(namespace, key string, blob []byte) error {
	s.sleep()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrNotMounted
	}
	if err := checkName(namespace, key); err != nil {
		return err
	}
	s.writes++
	if s.failWrites > 0 {
		s.failWrites--
		return s.writeErr
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.blobs[namespace+"/"+key] = stored
	return nil
}

// Delete removes the blob stored under namespace and key.
func (s *MemStore) Delete(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrNotMounted
	}
	if err := checkName(namespace, key); err != nil {
		return err
	}
	if _, ok := s.blobs[namespace+"/"+key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	delete(s.blobs, namespace+"/"+key)
	return nil
}

// Exists reports whether a blob is stored under namespace and key.
func (s *MemStore) Exists(namespace, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return false, ErrNotMounted
	}
	if err := checkName(namespace, key); err != nil {
		return false, err
	}
	_, ok := s.blobs[namespace+"/"+key]
	return ok, nil
}

// Seed stores a blob directly, bypassing mount checks and fault
// injection. Tests use it to shape flash contents before boot.
func (s *MemStore) Seed(namespace, key string, blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.blobs[namespace+"/"+key] = stored
}

// FailNextReads makes the next n reads fail with err.
func (s *MemStore) FailNextReads(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = n
	s.readErr = err
}

// FailNextWrites makes the next n writes fail with err.
func (s *MemStore) FailNextWrites(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = n
	s.writeErr = err
}

// FailNextMounts makes the next n mounts fail with err.
func (s *MemStore) FailNextMounts(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMounts = n
	s.mountErr = err
}

// FailNextUnmounts makes the next n unmounts fail with err.
func (s *MemStore) FailNextUnmounts(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUnmounts = n
	s.unmountErr = err
}

// SetLatency delays every read and write by d. Tests use it to hold a
// manager in its busy window long enough to observe.
func (s *MemStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Counts returns how many reads and writes have been attempted,
// including ones that were failed by injection.
func (s *MemStore) Counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func (s *MemStore) sleep() {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}
