package unitcfg

import "sync"

// Store guards the live unit configuration. Exactly one Store exists per
// running unit; every manager and surface reads and writes configuration
// through it.
//
// Acquire hands out the configuration itself, not a copy. The holder may
// read and mutate it freely, including replacing whole variable-length
// fields, until Release. Anything a caller wants to keep past Release
// must be copied out first; Snapshot does that in one step.
type Store struct {
	mu  sync.Mutex
	cfg *Config
}

// NewStore returns a store holding an empty current-version configuration.
func NewStore() *Store {
	return &Store{cfg: &Config{Version: FormatVersion}}
}

// Acquire blocks until the caller holds exclusive access to the
// configuration and returns it. Callers must not retain the pointer or
// anything reachable from it after Release.
func (s *Store) Acquire() *Config {
	s.mu.Lock()
	return s.cfg
}

// Release gives up the exclusive access taken by Acquire.
func (s *Store) Release() {
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current configuration, safe to use
// without holding the store.
func (s *Store) Snapshot() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Replace installs cfg as the live configuration, preserving transient
// runtime state. The previous document becomes garbage; holders from an
// earlier Acquire must already have released.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Connected = s.cfg.Connected
	s.cfg = cfg
}

// Connected reports the transient link state maintained by the
// connectivity manager.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Connected
}

// SetConnected updates the transient link state.
func (s *Store) SetConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Connected = v
}
