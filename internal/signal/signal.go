package signal

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrEmptyMask is returned by blocking calls that were handed a zero mask,
// which could otherwise never be satisfied.
var ErrEmptyMask = errors.New("signal: empty flag mask")

// Flags is a bit set of up to 32 sticky flags.
type Flags uint32

// Has reports whether any flag in mask is set in f.
func (f Flags) Has(mask Flags) bool {
	return f&mask != 0
}

// HasAll reports whether every flag in mask is set in f.
func (f Flags) HasAll(mask Flags) bool {
	return f&mask == mask
}

// Format renders the set flags using the given names, keyed by flag value.
// Unnamed flags are skipped. A zero value renders as "none".
func (f Flags) Format(names map[Flags]string) string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for bit := Flags(1); bit != 0; bit <<= 1 {
		if f&bit != 0 {
			if name, ok := names[bit]; ok {
				parts = append(parts, name)
			}
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// Group is a set of sticky flags shared between one or more producers and
// consumers. The zero value is not usable; call NewGroup.
type Group struct {
	mu      sync.Mutex
	flags   Flags
	changed chan struct{}
}

// NewGroup returns an empty flag group.
func NewGroup() *Group {
	return &Group{changed: make(chan struct{})}
}

// Set merges flags into the group and wakes all waiters. Setting flags
// that are already set is a no-op.
func (g *Group) Set(flags Flags) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flags|flags == g.flags {
		return
	}
	g.flags |= flags
	g.wakeLocked()
}

// Clear removes flags from the group.
func (g *Group) Clear(flags Flags) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flags&flags == 0 {
		return
	}
	g.flags &^= flags
	g.wakeLocked()
}

// Transition clears and sets flags in one atomic step. No observer can
// see the cleared flags gone without the new flags present.
func (g *Group) Transition(clear, set Flags) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := (g.flags &^ clear) | set
	if next == g.flags {
		return
	}
	g.flags = next
	g.wakeLocked()
}

// Snapshot returns the currently set flags.
func (g *Group) Snapshot() Flags {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flags
}

// TryConsumeAny atomically claims the flags in mask that are currently
// set. It reports false without claiming anything when none are set.
func (g *Group) TryConsumeAny(mask Flags) (Flags, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hit := g.flags & mask
	if hit == 0 {
		return 0, false
	}
	g.flags &^= hit
	g.wakeLocked()
	return hit, true
}

// ConsumeAny blocks until at least one flag in mask is set, then
// atomically clears and returns exactly the set flags it found. Distinct
// flags raised between wake-ups are claimed together in one call.
func (g *Group) ConsumeAny(ctx context.Context, mask Flags) (Flags, error) {
	if mask == 0 {
		return 0, ErrEmptyMask
	}
	for {
		g.mu.Lock()
		if hit := g.flags & mask; hit != 0 {
			g.flags &^= hit
			g.wakeLocked()
			g.mu.Unlock()
			return hit, nil
		}
		wake := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-wake:
		}
	}
}

// WaitAll blocks until every flag in mask is set at the same time. The
// flags are left untouched.
func (g *Group) WaitAll(ctx context.Context, mask Flags) error {
	if mask == 0 {
		return ErrEmptyMask
	}
	for {
		g.mu.Lock()
		if g.flags&mask == mask {
			g.mu.Unlock()
			return nil
		}
		wake := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// WaitAny blocks until at least one flag in mask is set, then returns the
// set flags without clearing them.
func (g *Group) WaitAny(ctx context.Context, mask Flags) (Flags, error) {
	if mask == 0 {
		return 0, ErrEmptyMask
	}
	for {
		g.mu.Lock()
		if hit := g.flags & mask; hit != 0 {
			g.mu.Unlock()
			return hit, nil
		}
		wake := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-wake:
		}
	}
}

// WaitChange blocks until the group's flags differ from seen, then
// returns the new value. Pass the result back in to watch for the next
// change.
func (g *Group) WaitChange(ctx context.Context, seen Flags) (Flags, error) {
	for {
		g.mu.Lock()
		if g.flags != seen {
			cur := g.flags
			g.mu.Unlock()
			return cur, nil
		}
		wake := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-wake:
		}
	}
}

// Changed returns a channel that is closed on the next flag change. It
// lets a worker select over a group alongside other channels:
//
//	for {
//		wake := g.Changed()
//		if flags, ok := g.TryConsumeAny(mask); ok {
//			handle(flags)
//			continue
//		}
//		select {
//		case <-wake:
//		case ev := <-events:
//			...
//		}
//	}
//
// Capture the channel before the claim attempt: a flag set after the
// failed claim closes the captured channel, so the select cannot miss it.
func (g *Group) Changed() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.changed
}

// wakeLocked closes the current change channel and installs a fresh one.
// Callers must hold g.mu.
func (g *Group) wakeLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}
