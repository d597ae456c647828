package persist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/okkerse/fieldlink/internal/flash"
	"github.com/okkerse/fieldlink/internal/logging"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
)

// Published states. Exactly one of NONE, READY, or BUSY is set at a time;
// REBOOTING joins it once the worker has exited.
const (
	StateNone signal.Flags = 1 << iota
	StateReady
	StateBusy
	StateRebooting
)

// Acceptable state requests.
const (
	RequestNone signal.Flags = 1 << iota
	RequestReady
	RequestRead
	RequestWrite
)

// Flash coordinates of the configuration blob.
const (
	Namespace = "config"
	BlobKey   = "unit"
)

var (
	// ErrBadRequest reports a request value outside the defined flags.
	ErrBadRequest = errors.New("persist: unknown request flag")

	// ErrBusy reports a READ or WRITE request made while a flash
	// operation is already in flight.
	ErrBusy = errors.New("persist: busy")

	// ErrNotReady reports a READ or WRITE request made before the
	// manager reached READY.
	ErrNotReady = errors.New("persist: not ready")

	errUnhandled = errors.New("persist: unhandled state/request combination")
)

const (
	requestMask = RequestNone | RequestReady | RequestRead | RequestWrite
	primaryMask = StateNone | StateReady | StateBusy
)

var stateNames = map[signal.Flags]string{
	StateNone:      "none",
	StateReady:     "ready",
	StateBusy:      "busy",
	StateRebooting: "rebooting",
}

var requestNames = map[signal.Flags]string{
	RequestNone:  "none",
	RequestReady: "ready",
	RequestRead:  "read",
	RequestWrite: "write",
}

// StateName renders a set of state flags for logs and UIs.
func StateName(f signal.Flags) string {
	return f.Format(stateNames)
}

// RequestName renders a set of request flags for logs and UIs.
func RequestName(f signal.Flags) string {
	return f.Format(requestNames)
}

// Manager owns the persisted configuration. All flash access and all
// store replacement happens on its single worker goroutine.
type Manager struct {
	store   *unitcfg.Store
	blobs   flash.Store
	factory unitcfg.Factory

	requests *signal.Group
	states   *signal.Group

	cancel context.CancelFunc
	done   chan struct{}

	// Worker-owned; read by Close only after the worker has exited.
	current signal.Flags
	mounted bool
}

// New starts a manager and its worker. The manager begins in NONE; request
// READY to mount flash and load (or provision) the configuration.
func New(store *unitcfg.Store, blobs flash.Store, factory unitcfg.Factory) (*Manager, error) {
	if store == nil {
		return nil, errors.New("persist: nil configuration store")
	}
	if blobs == nil {
		return nil, errors.New("persist: nil flash store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		blobs:    blobs,
		factory:  factory,
		requests: signal.NewGroup(),
		states:   signal.NewGroup(),
		cancel:   cancel,
		done:     make(chan struct{}),
		current:  StateNone,
	}
	m.states.Set(StateNone)
	go m.run(ctx)
	return m, nil
}

// RequestState asks the worker to move to the requested state. The
// request itself is asynchronous; callers observe the outcome through
// WaitUntilState. READ and WRITE are validated against the published
// state here so an impossible request fails fast instead of queueing.
func (m *Manager) RequestState(req signal.Flags) error {
	if req == 0 || req&^requestMask != 0 {
		return fmt.Errorf("%w: %#x", ErrBadRequest, uint32(req))
	}
	if req.Has(RequestRead | RequestWrite) {
		published := m.states.Snapshot()
		if published.Has(StateBusy) {
			return fmt.Errorf("%w: rejected %s request", ErrBusy, RequestName(req))
		}
		if published.Has(StateNone) {
			return fmt.Errorf("%w: rejected %s request", ErrNotReady, RequestName(req))
		}
	}
	m.requests.Set(req)
	return nil
}

// State returns the currently published state flags.
func (m *Manager) State() signal.Flags {
	return m.states.Snapshot()
}

// WaitUntilState blocks until any of the given state flags is published.
func (m *Manager) WaitUntilState(ctx context.Context, mask signal.Flags) (signal.Flags, error) {
	return m.states.WaitAny(ctx, mask)
}

// Close stops the worker, waits for it to finish its current transition,
// and unmounts flash. The published state gains REBOOTING.
func (m *Manager) Close() {
	m.cancel()
	<-m.done
	if m.mounted {
		if err := m.blobs.Unmount(); err != nil {
			logging.Error("Unmounting flash on close", zap.Error(err))
		}
		m.mounted = false
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		claimed, err := m.requests.ConsumeAny(ctx, requestMask)
		if err != nil {
			m.states.Set(StateRebooting)
			return
		}
		m.dispatch(claimed)
	}
}

// dispatch services every claimed request flag in fixed priority order.
// Requests that are invalid from the state reached by their predecessors
// are rejected individually.
func (m *Manager) dispatch(claimed signal.Flags) {
	for _, req := range []signal.Flags{RequestNone, RequestReady, RequestRead, RequestWrite} {
		if !claimed.Has(req) {
			continue
		}
		logging.LogRequest("persist", requestNames[req])
		if err := m.transition(req); err != nil {
			logging.Error("Persistence transition rejected",
				zap.String("request", requestNames[req]),
				zap.String("state", StateName(m.current)),
				zap.Error(err),
			)
		}
	}
}

func (m *Manager) transition(req signal.Flags) error {
	switch req {
	case RequestNone:
		return m.toNone()
	case RequestReady:
		return m.toReady()
	case RequestRead:
		return m.reload()
	case RequestWrite:
		return m.save()
	default:
		return fmt.Errorf("%w: request %s", errUnhandled, RequestName(req))
	}
}

// toNone unmounts flash and regresses to NONE. Requesting NONE while
// already there is a no-op. A failed unmount leaves the manager READY:
// flash is still initialized, so claiming NONE would misreport it.
func (m *Manager) toNone() error {
	if m.current == StateNone {
		return nil
	}
	m.publish(StateBusy)
	if m.mounted {
		if err := m.blobs.Unmount(); err != nil {
			m.publish(StateReady)
			return fmt.Errorf("unmounting flash: %w", err)
		}
		m.mounted = false
	}
	m.publish(StateNone)
	return nil
}

// toReady mounts flash, provisions defaults on first boot, and loads the
// stored configuration. Only valid from NONE.
func (m *Manager) toReady() error {
	if m.current != StateNone {
		return fmt.Errorf("%w: ready requested from %s", errUnhandled, StateName(m.current))
	}
	if err := m.blobs.Mount(); err != nil {
		return fmt.Errorf("mounting flash: %w", err)
	}
	m.mounted = true

	exists, err := m.blobs.Exists(Namespace, BlobKey)
	if err != nil {
		return fmt.Errorf("probing configuration blob: %w", err)
	}
	if !exists {
		logging.Info("No stored configuration, provisioning defaults")
		if err := m.writeDefaults(); err != nil {
			return err
		}
	}
	if err := m.load(); err != nil {
		return err
	}
	m.publish(StateReady)
	return nil
}

// reload re-reads flash into the shared store under a BUSY window.
func (m *Manager) reload() error {
	if m.current != StateReady {
		return fmt.Errorf("%w: read requested from %s", ErrNotReady, StateName(m.current))
	}
	m.publish(StateBusy)
	err := m.load()
	m.publish(StateReady)
	if err != nil {
		return fmt.Errorf("reloading configuration: %w", err)
	}
	return nil
}

// save snapshots the shared store and replaces the flash blob under a
// BUSY window. The store is never locked across flash access.
func (m *Manager) save() error {
	if m.current != StateReady {
		return fmt.Errorf("%w: write requested from %s", ErrNotReady, StateName(m.current))
	}
	m.publish(StateBusy)
	err := m.writeSnapshot()
	m.publish(StateReady)
	return err
}

func (m *Manager) writeSnapshot() error {
	snapshot := m.store.Snapshot()
	blob, err := unitcfg.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	logging.LogBlob("Encoded configuration blob", blob)

	if err := m.blobs.Write(Namespace, BlobKey, blob); err != nil {
		return fmt.Errorf("writing configuration blob: %w", err)
	}
	logging.Info("Configuration written to flash",
		zap.Int("bytes", len(blob)),
		zap.Int("networks", len(snapshot.Connectivity.Networks)),
	)
	return nil
}

// load decodes the stored blob into the shared store. A blob from another
// layout version or with corrupt contents is replaced by freshly
// provisioned defaults rather than surfaced as an error: the unit must
// come up configured.
func (m *Manager) load() error {
	blob, err := m.blobs.Read(Namespace, BlobKey)
	if err != nil {
		return fmt.Errorf("reading configuration blob: %w", err)
	}

	cfg, err := unitcfg.Decode(blob)
	switch {
	case errors.Is(err, unitcfg.ErrVersionMismatch), errors.Is(err, unitcfg.ErrCorrupt):
		logging.Warn("Stored configuration unusable, provisioning defaults", zap.Error(err))
		if err := m.writeDefaults(); err != nil {
			return err
		}
		cfg = unitcfg.DefaultConfig(m.factory)
	case err != nil:
		return fmt.Errorf("decoding configuration blob: %w", err)
	}

	m.store.Replace(cfg)

	// The stored log level governs the running unit.
	if err := logging.SetLevel(cfg.System.LogLevel.String()); err != nil {
		logging.Warn("Could not apply stored log level", zap.Error(err))
	}
	logging.Info("Configuration loaded",
		zap.String("unit_name", cfg.User.UnitName),
		zap.Int("networks", len(cfg.Connectivity.Networks)),
		zap.String("log_level", cfg.System.LogLevel.String()),
	)
	return nil
}

func (m *Manager) writeDefaults() error {
	cfg := unitcfg.DefaultConfig(m.factory)
	blob, err := unitcfg.Encode(cfg)
	if err != nil {
		return fmt.Errorf("encoding default configuration: %w", err)
	}
	if err := m.blobs.Write(Namespace, BlobKey, blob); err != nil {
		return fmt.Errorf("writing default configuration: %w", err)
	}
	logging.Info("Default configuration provisioned",
		zap.String("ssid", m.factory.SSID),
		zap.String("unit_name", m.factory.UnitName),
	)
	return nil
}

func (m *Manager) publish(next signal.Flags) {
	if next == m.current {
		return
	}
	logging.LogTransition("persist", StateName(m.current), StateName(next))
	m.current = next
	m.states.Transition(primaryMask, next)
}
