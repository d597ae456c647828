package unitcfg

import (
	"testing"
	"time"
)

func TestStoreAcquireExcludesOthers(t *testing.T) {
	s := NewStore()

	cfg := s.Acquire()
	cfg.User.UnitName = "holder-one"

	entered := make(chan string, 1)
	go func() {
		other := s.Acquire()
		entered <- other.User.UnitName
		other.User.UnitName = "holder-two"
		s.Release()
	}()

	select {
	case <-entered:
		t.Fatal("second Acquire() succeeded while the store was held")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()

	select {
	case name := <-entered:
		// The second holder must observe the first holder's write.
		if name != "holder-one" {
			t.Errorf("second holder saw unit name %q, want %q", name, "holder-one")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Acquire() never proceeded after Release()")
	}
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	s := NewStore()

	cfg := s.Acquire()
	cfg.Connectivity.Networks = []Network{{SSID: "orchard", Password: "apple-crate-9"}}
	cfg.User.UnitName = "gate-house"
	s.Release()

	snap := s.Snapshot()

	// Mutating the snapshot must not leak into the store.
	snap.Connectivity.Networks[0].SSID = "tampered"
	snap.User.UnitName = "tampered"

	cur := s.Snapshot()
	if cur.Connectivity.Networks[0].SSID != "orchard" {
		t.Errorf("store network ssid = %q, want %q", cur.Connectivity.Networks[0].SSID, "orchard")
	}
	if cur.User.UnitName != "gate-house" {
		t.Errorf("store unit name = %q, want %q", cur.User.UnitName, "gate-house")
	}
}

func TestStoreReplacePreservesLinkState(t *testing.T) {
	s := NewStore()
	s.SetConnected(true)

	s.Replace(&Config{
		Version: FormatVersion,
		User:    User{UnitName: "reloaded"},
	})

	if !s.Connected() {
		t.Error("Connected() = false after Replace(); transient link state must survive reloads")
	}
	if got := s.Snapshot().User.UnitName; got != "reloaded" {
		t.Errorf("unit name = %q, want %q", got, "reloaded")
	}
}

func TestStoreStartsDisconnected(t *testing.T) {
	s := NewStore()
	if s.Connected() {
		t.Error("Connected() = true on a fresh store")
	}
	if got := s.Snapshot().Version; got != FormatVersion {
		t.Errorf("fresh store version = %d, want %d", got, FormatVersion)
	}
}
