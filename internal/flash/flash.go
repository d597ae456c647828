package flash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotMounted reports an operation on a store that has not been
	// mounted, or has been unmounted.
	ErrNotMounted = errors.New("flash: store not mounted")

	// ErrNotFound reports a read of a blob that does not exist.
	ErrNotFound = errors.New("flash: blob not found")

	// ErrBadName reports a namespace or key the store cannot represent.
	ErrBadName = errors.New("flash: invalid namespace or key")
)

// Store is the blob storage the persistence manager runs against.
//
// Implementations must allow concurrent calls. Write must be atomic: a
// reader never observes a half-written blob, and a failed write leaves
// any previous blob intact.
type Store interface {
	// Mount prepares the store for use, recovering or re-initializing
	// unusable storage where possible.
	Mount() error

	// Unmount releases the store. Further calls other than Mount fail
	// with ErrNotMounted.
	Unmount() error

	// Read returns the blob stored under namespace and key, or
	// ErrNotFound.
	Read(namespace, key string) ([]byte, error)

	// Write stores blob under namespace and key, replacing any previous
	// value atomically.
	Write(namespace, key string, blob []byte) error

	// Delete removes the blob stored under namespace and key, or returns
	// ErrNotFound.
	Delete(namespace, key string) error

	// Exists reports whether a blob is stored under namespace and key.
	Exists(namespace, key string) (bool, error)
}

// checkName rejects namespace or key values that would escape a
// path-backed store or collide with its bookkeeping.
func checkName(namespace, key string) error {
	for _, part := range []string{namespace, key} {
		if part == "" {
			return fmt.Errorf("%w: empty name", ErrBadName)
		}
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrBadName, part)
		}
	}
	return nil
}
