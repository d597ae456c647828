package signal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	flagA Flags = 1 << iota
	flagB
	flagC
	flagD
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFlagsHas(t *testing.T) {
	tests := []struct {
		name    string
		flags   Flags
		mask    Flags
		any     bool
		all     bool
	}{
		{"empty flags", 0, flagA, false, false},
		{"single hit", flagA, flagA, true, true},
		{"partial overlap", flagA | flagB, flagB | flagC, true, false},
		{"full overlap", flagA | flagB | flagC, flagA | flagC, true, true},
		{"disjoint", flagA, flagB | flagC, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.Has(tt.mask); got != tt.any {
				t.Errorf("Has() = %v, want %v", got, tt.any)
			}
			if got := tt.flags.HasAll(tt.mask); got != tt.all {
				t.Errorf("HasAll() = %v, want %v", got, tt.all)
			}
		})
	}
}

func TestFlagsFormat(t *testing.T) {
	names := map[Flags]string{
		flagA: "alpha",
		flagB: "beta",
	}

	tests := []struct {
		name  string
		flags Flags
		want  string
	}{
		{"zero", 0, "none"},
		{"single", flagA, "alpha"},
		{"multiple in bit order", flagB | flagA, "alpha|beta"},
		{"unnamed only", flagC, "unknown"},
		{"named and unnamed", flagA | flagC, "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.Format(names); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupSetMerges(t *testing.T) {
	g := NewGroup()

	g.Set(flagA)
	g.Set(flagA)
	g.Set(flagB)

	if got := g.Snapshot(); got != flagA|flagB {
		t.Errorf("Snapshot() = %v, want %v", got, flagA|flagB)
	}

	// The repeated Set must not have queued anything: one claim drains it.
	got, ok := g.TryConsumeAny(flagA | flagB)
	if !ok || got != flagA|flagB {
		t.Fatalf("TryConsumeAny() = %v, %v, want %v, true", got, ok, flagA|flagB)
	}
	if _, ok := g.TryConsumeAny(flagA | flagB); ok {
		t.Error("TryConsumeAny() succeeded on drained group")
	}
}

func TestGroupTryConsumeAnyClaimsOnlyMasked(t *testing.T) {
	g := NewGroup()
	g.Set(flagA | flagB | flagC)

	got, ok := g.TryConsumeAny(flagB)
	if !ok || got != flagB {
		t.Fatalf("TryConsumeAny(flagB) = %v, %v, want %v, true", got, ok, flagB)
	}
	if rest := g.Snapshot(); rest != flagA|flagC {
		t.Errorf("Snapshot() after claim = %v, want %v", rest, flagA|flagC)
	}
}

func TestGroupConsumeAnyReturnsImmediatelyWhenSet(t *testing.T) {
	g := NewGroup()
	g.Set(flagA)

	got, err := g.ConsumeAny(testContext(t), flagA|flagB)
	if err != nil {
		t.Fatalf("ConsumeAny() error = %v", err)
	}
	if got != flagA {
		t.Errorf("ConsumeAny() = %v, want %v", got, flagA)
	}
}

func TestGroupConsumeAnyBlocksUntilSet(t *testing.T) {
	g := NewGroup()
	ctx := testContext(t)

	done := make(chan Flags, 1)
	go func() {
		flags, err := g.ConsumeAny(ctx, flagC)
		if err != nil {
			return
		}
		done <- flags
	}()

	select {
	case flags := <-done:
		t.Fatalf("ConsumeAny() returned %v before flag was set", flags)
	case <-time.After(20 * time.Millisecond):
	}

	g.Set(flagC)

	select {
	case flags := <-done:
		if flags != flagC {
			t.Errorf("ConsumeAny() = %v, want %v", flags, flagC)
		}
	case <-ctx.Done():
		t.Fatal("ConsumeAny() never woke after Set")
	}
}

func TestGroupConsumeAnyCancelled(t *testing.T) {
	g := NewGroup()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := g.ConsumeAny(ctx, flagA)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ConsumeAny() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ConsumeAny() did not observe cancellation")
	}
}

func TestGroupEmptyMask(t *testing.T) {
	g := NewGroup()
	ctx := testContext(t)

	if _, err := g.ConsumeAny(ctx, 0); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("ConsumeAny(0) error = %v, want ErrEmptyMask", err)
	}
	if err := g.WaitAll(ctx, 0); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("WaitAll(0) error = %v, want ErrEmptyMask", err)
	}
	if _, err := g.WaitAny(ctx, 0); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("WaitAny(0) error = %v, want ErrEmptyMask", err)
	}
}

func TestGroupWaitAll(t *testing.T) {
	g := NewGroup()
	ctx := testContext(t)

	done := make(chan struct{})
	go func() {
		if err := g.WaitAll(ctx, flagA|flagB); err == nil {
			close(done)
		}
	}()

	g.Set(flagA)
	select {
	case <-done:
		t.Fatal("WaitAll() returned with only one of two flags set")
	case <-time.After(20 * time.Millisecond):
	}

	g.Set(flagB)
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("WaitAll() never returned after all flags were set")
	}

	// Waiting leaves the flags in place for other observers.
	if got := g.Snapshot(); got != flagA|flagB {
		t.Errorf("Snapshot() after WaitAll = %v, want %v", got, flagA|flagB)
	}
}

func TestGroupWaitAnyDoesNotClear(t *testing.T) {
	g := NewGroup()
	g.Set(flagB | flagD)

	got, err := g.WaitAny(testContext(t), flagA|flagB)
	if err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}
	if got != flagB {
		t.Errorf("WaitAny() = %v, want %v", got, flagB)
	}
	if snap := g.Snapshot(); snap != flagB|flagD {
		t.Errorf("Snapshot() after WaitAny = %v, want %v", snap, flagB|flagD)
	}
}

func TestGroupTransition(t *testing.T) {
	g := NewGroup()
	g.Set(flagA | flagD)

	g.Transition(flagA|flagB|flagC, flagB)

	if got := g.Snapshot(); got != flagB|flagD {
		t.Errorf("Snapshot() after Transition = %v, want %v", got, flagB|flagD)
	}
}

func TestGroupTransitionWakesWaiters(t *testing.T) {
	g := NewGroup()
	g.Set(flagA)
	ctx := testContext(t)

	done := make(chan struct{})
	go func() {
		if err := g.WaitAll(ctx, flagB); err == nil {
			close(done)
		}
	}()

	g.Transition(flagA, flagB)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("WaitAll() never woke after Transition set its flag")
	}
}

func TestGroupWaitChange(t *testing.T) {
	g := NewGroup()
	g.Set(flagA)
	ctx := testContext(t)

	// A stale view returns immediately.
	cur, err := g.WaitChange(ctx, 0)
	if err != nil || cur != flagA {
		t.Fatalf("WaitChange(0) = %v, %v, want %v, nil", cur, err, flagA)
	}

	done := make(chan Flags, 1)
	go func() {
		next, err := g.WaitChange(ctx, cur)
		if err != nil {
			return
		}
		done <- next
	}()

	select {
	case next := <-done:
		t.Fatalf("WaitChange() returned %v without a change", next)
	case <-time.After(20 * time.Millisecond):
	}

	g.Transition(flagA, flagC)

	select {
	case next := <-done:
		if next != flagC {
			t.Errorf("WaitChange() = %v, want %v", next, flagC)
		}
	case <-ctx.Done():
		t.Fatal("WaitChange() never observed the transition")
	}
}

func TestGroupConcurrentProducersMerge(t *testing.T) {
	g := NewGroup()
	ctx := testContext(t)

	producers := []Flags{flagA, flagB, flagC, flagD}
	var wg sync.WaitGroup
	for _, f := range producers {
		wg.Add(1)
		go func(f Flags) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				g.Set(f)
			}
		}(f)
	}

	var seen Flags
	all := flagA | flagB | flagC | flagD
	for seen != all {
		flags, err := g.ConsumeAny(ctx, all)
		if err != nil {
			t.Fatalf("ConsumeAny() error = %v", err)
		}
		seen |= flags
	}
	wg.Wait()

	if seen != all {
		t.Errorf("consumed flags = %v, want %v", seen, all)
	}
}

func TestGroupChangedSelectLoop(t *testing.T) {
	g := NewGroup()
	ctx := testContext(t)

	events := make(chan string, 1)
	got := make(chan string, 2)

	// A worker multiplexing a request group with an event channel, the
	// shape every manager loop uses.
	go func() {
		for {
			wake := g.Changed()
			if _, ok := g.TryConsumeAny(flagA); ok {
				got <- "request"
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case ev := <-events:
				got <- ev
			}
		}
	}()

	events <- "event"
	if v := <-got; v != "event" {
		t.Fatalf("worker saw %q, want %q", v, "event")
	}

	g.Set(flagA)
	select {
	case v := <-got:
		if v != "request" {
			t.Fatalf("worker saw %q, want %q", v, "request")
		}
	case <-ctx.Done():
		t.Fatal("worker never woke for the request flag")
	}
}
