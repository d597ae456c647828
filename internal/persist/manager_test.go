package persist

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/okkerse/fieldlink/internal/flash"
	"github.com/okkerse/fieldlink/internal/unitcfg"
)

var testFactory = unitcfg.Factory{
	SSID:       "barn-north",
	Password:   "hay-loft-2024",
	OTAURL:     "https://updates.example.dev/firmware.bin",
	VersionURL: "https://updates.example.dev/version.json",
	LogLevel:   unitcfg.LogSilent,
	UnitName:   "test-unit",
}

func newTestManager(t *testing.T) (*Manager, *flash.MemStore, *unitcfg.Store) {
	t.Helper()
	blobs := flash.NewMemStore()
	store := unitcfg.NewStore()
	m, err := New(store, blobs, testFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m, blobs, store
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func makeReady(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) error = %v", err)
	}
	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) error = %v", err)
	}
}

func TestFirstBootProvisionsDefaults(t *testing.T) {
	m, blobs, store := newTestManager(t)

	if got := m.State(); !got.Has(StateNone) {
		t.Fatalf("initial state = %s, want none", StateName(got))
	}

	makeReady(t, m)

	want := unitcfg.DefaultConfig(testFactory)
	if got := store.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("store after first boot = %+v, want defaults %+v", got, want)
	}

	// The defaults were written to flash, not just installed in memory.
	blob, err := blobs.Read(Namespace, BlobKey)
	if err != nil {
		t.Fatalf("flash read error = %v", err)
	}
	stored, err := unitcfg.Decode(blob)
	if err != nil {
		t.Fatalf("stored blob does not decode: %v", err)
	}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored blob = %+v, want defaults", stored)
	}
}

func TestSecondBootLoadsStoredConfiguration(t *testing.T) {
	provisioned := unitcfg.DefaultConfig(testFactory)
	provisioned.User.UnitName = "renamed-in-the-field"
	provisioned.Connectivity.Networks = append(provisioned.Connectivity.Networks,
		unitcfg.Network{SSID: "yard", Password: "gate-code-77"})
	blob, err := unitcfg.Encode(provisioned)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	blobs := flash.NewMemStore()
	blobs.Seed(Namespace, BlobKey, blob)
	store := unitcfg.NewStore()
	m, err := New(store, blobs, testFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Close()

	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) error = %v", err)
	}
	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) error = %v", err)
	}

	if got := store.Snapshot(); !reflect.DeepEqual(got, provisioned) {
		t.Errorf("store = %+v, want stored configuration %+v", got, provisioned)
	}
	// Nothing was re-provisioned.
	_, writes := blobs.Counts()
	if writes != 0 {
		t.Errorf("flash writes during load = %d, want 0", writes)
	}
}

func TestUnusableBlobFallsBackToDefaults(t *testing.T) {
	goodBlob, err := unitcfg.Encode(unitcfg.DefaultConfig(testFactory))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	staleBlob := append([]byte{}, goodBlob...)
	staleBlob[0] = unitcfg.FormatVersion + 1

	tests := []struct {
		name string
		blob []byte
	}{
		{"version mismatch", staleBlob},
		{"corrupt", []byte{unitcfg.FormatVersion, 9, 9}},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := flash.NewMemStore()
			blobs.Seed(Namespace, BlobKey, tt.blob)
			store := unitcfg.NewStore()
			m, err := New(store, blobs, testFactory)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer m.Close()

			if err := m.RequestState(RequestReady); err != nil {
				t.Fatalf("RequestState(ready) error = %v", err)
			}
			if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
				t.Fatalf("WaitUntilState(ready) error = %v", err)
			}

			want := unitcfg.DefaultConfig(testFactory)
			if got := store.Snapshot(); !reflect.DeepEqual(got, want) {
				t.Errorf("store = %+v, want defaults", got)
			}

			// The unusable blob was replaced on flash.
			raw, err := blobs.Read(Namespace, BlobKey)
			if err != nil {
				t.Fatalf("flash read error = %v", err)
			}
			if _, err := unitcfg.Decode(raw); err != nil {
				t.Errorf("flash still holds an unusable blob: %v", err)
			}
		})
	}
}

func TestReadWriteRejectedBeforeReady(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.RequestState(RequestRead); !errors.Is(err, ErrNotReady) {
		t.Errorf("RequestState(read) error = %v, want ErrNotReady", err)
	}
	if err := m.RequestState(RequestWrite); !errors.Is(err, ErrNotReady) {
		t.Errorf("RequestState(write) error = %v, want ErrNotReady", err)
	}
}

func TestRequestValidation(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.RequestState(0); !errors.Is(err, ErrBadRequest) {
		t.Errorf("RequestState(0) error = %v, want ErrBadRequest", err)
	}
	if err := m.RequestState(1 << 30); !errors.Is(err, ErrBadRequest) {
		t.Errorf("RequestState(unknown) error = %v, want ErrBadRequest", err)
	}
}

func TestWritePersistsStoreMutations(t *testing.T) {
	m, blobs, store := newTestManager(t)
	makeReady(t, m)

	cfg := store.Acquire()
	cfg.User.UnitName = "pump-house"
	cfg.Connectivity.Networks = append(cfg.Connectivity.Networks,
		unitcfg.Network{SSID: "yard", Password: "gate-code-77"})
	store.Release()

	if err := m.RequestState(RequestWrite); err != nil {
		t.Fatalf("RequestState(write) error = %v", err)
	}

	waitFor(t, "mutations to reach flash", func() bool {
		raw, err := blobs.Read(Namespace, BlobKey)
		if err != nil {
			return false
		}
		got, err := unitcfg.Decode(raw)
		return err == nil && got.User.UnitName == "pump-house" && len(got.Connectivity.Networks) == 2
	})
}

func TestReadReloadsFlashIntoStore(t *testing.T) {
	m, blobs, store := newTestManager(t)
	makeReady(t, m)

	// Another writer replaced the blob out from under the running unit.
	edited := unitcfg.DefaultConfig(testFactory)
	edited.User.UnitName = "edited-offline"
	blob, err := unitcfg.Encode(edited)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	blobs.Seed(Namespace, BlobKey, blob)

	if err := m.RequestState(RequestRead); err != nil {
		t.Fatalf("RequestState(read) error = %v", err)
	}

	waitFor(t, "store to pick up reloaded configuration", func() bool {
		return store.Snapshot().User.UnitName == "edited-offline"
	})
}

func TestBusyRejectsConcurrentWrite(t *testing.T) {
	m, blobs, store := newTestManager(t)
	makeReady(t, m)

	blobs.SetLatency(100 * time.Millisecond)
	store.SetConnected(true) // any mutation; contents do not matter here

	_, baseline := blobs.Counts()

	if err := m.RequestState(RequestWrite); err != nil {
		t.Fatalf("RequestState(write) error = %v", err)
	}
	waitFor(t, "busy window to open", func() bool {
		return m.State().Has(StateBusy)
	})

	err := m.RequestState(RequestWrite)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("RequestState(write) while busy error = %v, want ErrBusy", err)
	}

	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) error = %v", err)
	}
	waitFor(t, "in-flight write to finish", func() bool {
		_, writes := blobs.Counts()
		return writes == baseline+1
	})

	// The rejected request never reaches the worker, so the count stays put.
	time.Sleep(30 * time.Millisecond)
	if _, writes := blobs.Counts(); writes != baseline+1 {
		t.Errorf("flash writes = %d, want %d (rejected request must not write)", writes, baseline+1)
	}
}

func TestWriteFailureReturnsToReady(t *testing.T) {
	m, blobs, store := newTestManager(t)
	makeReady(t, m)

	before, err := blobs.Read(Namespace, BlobKey)
	if err != nil {
		t.Fatalf("flash read error = %v", err)
	}

	_, baseline := blobs.Counts()
	blobs.FailNextWrites(1, errors.New("worn out cell"))
	cfg := store.Acquire()
	cfg.User.UnitName = "will-not-stick"
	store.Release()

	if err := m.RequestState(RequestWrite); err != nil {
		t.Fatalf("RequestState(write) error = %v", err)
	}
	waitFor(t, "failed write attempt", func() bool {
		_, writes := blobs.Counts()
		return writes >= baseline+1
	})

	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) after failure error = %v", err)
	}

	after, err := blobs.Read(Namespace, BlobKey)
	if err != nil {
		t.Fatalf("flash read error = %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("failed write clobbered the stored blob")
	}

	// The manager recovered: a subsequent write goes through.
	if err := m.RequestState(RequestWrite); err != nil {
		t.Fatalf("RequestState(write) after failure error = %v", err)
	}
	waitFor(t, "recovery write to land", func() bool {
		raw, err := blobs.Read(Namespace, BlobKey)
		if err != nil {
			return false
		}
		got, err := unitcfg.Decode(raw)
		return err == nil && got.User.UnitName == "will-not-stick"
	})
}

func TestReadyFromReadyIsRejected(t *testing.T) {
	m, blobs, _ := newTestManager(t)
	makeReady(t, m)

	readsBefore, writesBefore := blobs.Counts()

	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) error = %v", err)
	}
	// The worker rejects it without touching flash or leaving READY.
	time.Sleep(20 * time.Millisecond)

	if got := m.State(); !got.Has(StateReady) {
		t.Errorf("state = %s, want ready", StateName(got))
	}
	reads, writes := blobs.Counts()
	if reads != readsBefore || writes != writesBefore {
		t.Errorf("flash touched by rejected request: reads %d→%d writes %d→%d",
			readsBefore, reads, writesBefore, writes)
	}
}

func TestNoneUnmountsFlash(t *testing.T) {
	m, blobs, _ := newTestManager(t)
	makeReady(t, m)

	if err := m.RequestState(RequestNone); err != nil {
		t.Fatalf("RequestState(none) error = %v", err)
	}
	if _, err := m.WaitUntilState(testContext(t), StateNone); err != nil {
		t.Fatalf("WaitUntilState(none) error = %v", err)
	}

	if _, err := blobs.Read(Namespace, BlobKey); !errors.Is(err, flash.ErrNotMounted) {
		t.Errorf("flash read after NONE error = %v, want ErrNotMounted", err)
	}
	// READ/WRITE are rejected again, as before first READY.
	if err := m.RequestState(RequestWrite); !errors.Is(err, ErrNotReady) {
		t.Errorf("RequestState(write) after NONE error = %v, want ErrNotReady", err)
	}
}

func TestMountFailureStaysNone(t *testing.T) {
	blobs := flash.NewMemStore()
	blobs.FailNextMounts(1, errors.New("partition missing"))
	store := unitcfg.NewStore()
	m, err := New(store, blobs, testFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Close()

	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := m.State(); !got.Has(StateNone) {
		t.Fatalf("state after failed mount = %s, want none", StateName(got))
	}

	// A later READY succeeds once the fault clears.
	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) retry error = %v", err)
	}
	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) after retry error = %v", err)
	}
}

func TestUnmountFailureStaysReady(t *testing.T) {
	m, blobs, store := newTestManager(t)
	makeReady(t, m)

	blobs.FailNextUnmounts(1, errors.New("controller wedged"))

	if err := m.RequestState(RequestNone); err != nil {
		t.Fatalf("RequestState(none) error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := m.State(); !got.Has(StateReady) {
		t.Fatalf("state after failed unmount = %s, want ready", StateName(got))
	}
	// Flash stayed mounted, so the manager keeps serving requests.
	if _, err := blobs.Read(Namespace, BlobKey); err != nil {
		t.Fatalf("flash read after failed unmount error = %v", err)
	}

	cfg := store.Acquire()
	cfg.User.UnitName = "still-in-service"
	store.Release()
	if err := m.RequestState(RequestWrite); err != nil {
		t.Fatalf("RequestState(write) after failed unmount error = %v", err)
	}
	waitFor(t, "write after failed unmount to land", func() bool {
		raw, err := blobs.Read(Namespace, BlobKey)
		if err != nil {
			return false
		}
		got, err := unitcfg.Decode(raw)
		return err == nil && got.User.UnitName == "still-in-service"
	})
}

func TestCloseSetsRebootingAndUnmounts(t *testing.T) {
	blobs := flash.NewMemStore()
	store := unitcfg.NewStore()
	m, err := New(store, blobs, testFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.RequestState(RequestReady); err != nil {
		t.Fatalf("RequestState(ready) error = %v", err)
	}
	if _, err := m.WaitUntilState(testContext(t), StateReady); err != nil {
		t.Fatalf("WaitUntilState(ready) error = %v", err)
	}

	m.Close()

	if got := m.State(); !got.Has(StateRebooting) {
		t.Errorf("state after Close = %s, want rebooting set", StateName(got))
	}
	if _, err := blobs.Read(Namespace, BlobKey); !errors.Is(err, flash.ErrNotMounted) {
		t.Errorf("flash read after Close error = %v, want ErrNotMounted", err)
	}
}
