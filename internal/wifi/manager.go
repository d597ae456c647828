package wifi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/okkerse/fieldlink/internal/logging"
	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
)

// Published states. Exactly one primary state is set at a time; STA+IP
// joins the primary while the station holds an address.
const (
	StateNone signal.Flags = 1 << iota
	StateSTA
	StateSTAGotIP
	StateAP
	StateAPSTA
)

// Acceptable state requests.
const (
	RequestNone signal.Flags = 1 << iota
	RequestSTA
	RequestAP
	RequestAPSTA
)

// ErrBadRequest reports a request value outside the defined flags.
var ErrBadRequest = errors.New("wifi: unknown request flag")

var (
	errNoNetworks = errors.New("wifi: no networks configured")
	errNoAPConfig = errors.New("wifi: unusable access point settings")
	errNoMatch    = errors.New("wifi: no configured network in scan results")
)

const (
	requestMask = RequestNone | RequestSTA | RequestAP | RequestAPSTA
	primaryMask = StateNone | StateSTA | StateAP | StateAPSTA

	// DefaultMaxRetries and DefaultRetryDelay govern the station retry
	// budget when Settings leaves them zero.
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
)

// requestPriority orders coalesced requests; the highest wins and the
// rest are dropped, since executing superseded mode changes would flap
// the radio. Access point modes outrank station mode so a failover
// claimed together with a station request still rescues the unit.
var requestPriority = [...]signal.Flags{RequestNone, RequestAP, RequestAPSTA, RequestSTA}

var stateNames = map[signal.Flags]string{
	StateNone:     "none",
	StateSTA:      "sta",
	StateSTAGotIP: "sta+ip",
	StateAP:       "ap",
	StateAPSTA:    "ap+sta",
}

var requestNames = map[signal.Flags]string{
	RequestNone:  "none",
	RequestSTA:   "sta",
	RequestAP:    "ap",
	RequestAPSTA: "ap+sta",
}

// StateName renders a set of state flags for logs and UIs.
func StateName(f signal.Flags) string {
	return f.Format(stateNames)
}

// RequestName renders a set of request flags for logs and UIs.
func RequestName(f signal.Flags) string {
	return f.Format(requestNames)
}

// Settings configures the manager. Zero retry fields take the defaults;
// the access point configuration must be provided for AP modes to be
// reachable.
type Settings struct {
	// AP is the access point the unit offers in AP and AP+STA modes.
	AP radio.AccessPointConfig

	// MaxRetries is the number of delayed retries after station failures
	// before the worker fails over to AP.
	MaxRetries int

	// RetryDelay is the fixed pause before each retry.
	RetryDelay time.Duration
}

// DefaultSettings returns the settings a unit runs with out of the box.
func DefaultSettings() Settings {
	return Settings{
		AP: radio.AccessPointConfig{
			SSID:       "fieldlink-setup",
			Channel:    1,
			MaxClients: 1,
		},
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

func (s *Settings) normalize() {
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = DefaultRetryDelay
	}
	if s.AP.MaxClients <= 0 {
		s.AP.MaxClients = 1
	}
	if s.AP.Channel <= 0 {
		s.AP.Channel = 1
	}
}

// Manager owns the unit's connectivity. All radio access happens on its
// single worker goroutine.
type Manager struct {
	store    *unitcfg.Store
	radio    radio.Radio
	settings Settings

	requests *signal.Group
	states   *signal.Group

	cancel context.CancelFunc
	done   chan struct{}

	// Worker-owned from here down; Close reads mode only after the
	// worker has exited.
	current    signal.Flags
	mode       radio.Mode
	retries    int
	policy     backoff.BackOff
	retryTimer *time.Timer
	retryC     <-chan time.Time
	lastCred   radio.Credentials
	linkSSID   string
}

// New starts a manager and its worker. The manager begins in NONE with
// the radio untouched.
func New(store *unitcfg.Store, r radio.Radio, settings Settings) (*Manager, error) {
	if store == nil {
		return nil, errors.New("wifi: nil configuration store")
	}
	if r == nil {
		return nil, errors.New("wifi: nil radio")
	}
	settings.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		radio:    r,
		settings: settings,
		requests: signal.NewGroup(),
		states:   signal.NewGroup(),
		cancel:   cancel,
		done:     make(chan struct{}),
		current:  StateNone,
		mode:     radio.ModeOff,
		policy:   backoff.NewConstantBackOff(settings.RetryDelay),
	}
	m.states.Set(StateNone)
	go m.run(ctx)
	return m, nil
}

// RequestState asks the worker to move to the requested state and
// returns immediately. Validation happens on the worker against the
// configuration current at transition time; outcomes are observed
// through WaitUntilState or State.
func (m *Manager) RequestState(req signal.Flags) error {
	if req == 0 || req&^requestMask != 0 {
		return fmt.Errorf("%w: %#x", ErrBadRequest, uint32(req))
	}
	m.requests.Set(req)
	return nil
}

// State returns the currently published state flags.
func (m *Manager) State() signal.Flags {
	return m.states.Snapshot()
}

// WaitUntilState blocks until every flag in mask is published at once.
// Waiting on StateSTA|StateSTAGotIP therefore means "attached with an
// address".
func (m *Manager) WaitUntilState(ctx context.Context, mask signal.Flags) error {
	return m.states.WaitAll(ctx, mask)
}

// AwaitAny blocks until any flag in mask is published and returns the
// published flags. Collaborators like the announcer use it to watch for
// any of several reachable states.
func (m *Manager) AwaitAny(ctx context.Context, mask signal.Flags) (signal.Flags, error) {
	return m.states.WaitAny(ctx, mask)
}

// WaitStateChange blocks until the published flags differ from seen and
// returns the new value.
func (m *Manager) WaitStateChange(ctx context.Context, seen signal.Flags) (signal.Flags, error) {
	return m.states.WaitChange(ctx, seen)
}

// Close stops the worker, waits for it to finish its current transition,
// and stops the radio if it is running. The radio itself is not closed;
// its owner decides that.
func (m *Manager) Close() {
	m.cancel()
	<-m.done
	if m.mode != radio.ModeOff {
		if err := m.radio.Stop(); err != nil {
			logging.Error("Stopping radio on close", zap.Error(err))
		}
		m.mode = radio.ModeOff
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer m.stopRetryTimer()
	for {
		// Capture the wake channel before the claim attempt so a request
		// set in between still wakes the select.
		wake := m.requests.Changed()
		if claimed, ok := m.requests.TryConsumeAny(requestMask); ok {
			m.service(claimed)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case ev, ok := <-m.radio.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		case <-m.retryC:
			m.retryC = nil
			m.retryTimer = nil
			m.retry()
		}
	}
}

// service runs the highest-priority claimed request. Lower-priority
// requests claimed in the same wake-up are superseded and dropped.
func (m *Manager) service(claimed signal.Flags) {
	var req signal.Flags
	for _, candidate := range requestPriority {
		if claimed.Has(candidate) {
			req = candidate
			break
		}
	}
	if req != claimed {
		logging.Warn("Coalesced connectivity requests, servicing highest priority",
			zap.String("claimed", RequestName(claimed)),
			zap.String("servicing", requestNames[req]),
		)
	}
	logging.LogRequest("wifi", requestNames[req])

	if err := m.transition(req); err != nil {
		logging.Error("Connectivity transition failed",
			zap.String("request", requestNames[req]),
			zap.String("state", StateName(m.current)),
			zap.Error(err),
		)
	}
}

// transition moves the radio to the requested state: validate, tear
// down, bring up, publish. A failed bring-up leaves NONE published,
// which is where the radio actually is after teardown.
func (m *Manager) transition(req signal.Flags) error {
	target := targetState(req)
	if m.current == target {
		logging.Debug("Already in requested state", zap.String("state", StateName(target)))
		return nil
	}

	mode := modeFor(target)

	// Validate against the live configuration before touching the radio,
	// so a rejected request leaves the running mode alone.
	if mode.HasStation() {
		cfg := m.store.Acquire()
		networks := len(cfg.Connectivity.Networks)
		m.store.Release()
		if networks == 0 {
			return errNoNetworks
		}
	}
	if mode.HasAccessPoint() {
		if err := validateAP(m.settings.AP); err != nil {
			return err
		}
	}

	// Transitions funnel through radio-off. Stale timers, credentials
	// and pending radio outcomes die with the old mode.
	if m.current != StateNone {
		if err := m.radio.Stop(); err != nil {
			return fmt.Errorf("stopping radio: %w", err)
		}
		m.stopRetryTimer()
		m.lastCred = radio.Credentials{}
		m.linkSSID = ""
		m.store.SetConnected(false)
		m.publish(StateNone, radio.ModeOff)
	}
	if target == StateNone {
		return nil
	}
	m.retries = 0
	m.policy.Reset()

	var ap radio.AccessPointConfig
	if mode.HasAccessPoint() {
		ap = m.settings.AP
		logging.Info("Offering access point",
			zap.String("ssid", ap.SSID),
			zap.Bool("open", ap.Open()),
			zap.Int("max_clients", ap.MaxClients),
		)
	}
	if err := m.radio.Start(mode, ap); err != nil {
		return fmt.Errorf("starting radio in %s: %w", mode, err)
	}
	m.publish(target, mode)

	if mode.HasStation() {
		if err := m.radio.Scan(); err != nil {
			m.stationFailed("Initial scan could not start", err)
		}
	}
	return nil
}

func (m *Manager) handleEvent(ev radio.Event) {
	switch ev := ev.(type) {
	case radio.ScanDone:
		m.onScanDone(ev)
	case radio.Associated:
		m.onAssociated(ev)
	case radio.Disassociated:
		m.onDisassociated(ev)
	case radio.GotIP:
		m.onGotIP(ev)
	}
}

func (m *Manager) onScanDone(ev radio.ScanDone) {
	if !m.mode.HasStation() {
		logging.Debug("Ignoring scan results outside station mode")
		return
	}
	if ev.Err != nil {
		m.stationFailed("Scan failed", ev.Err)
		return
	}

	cred, record, err := m.selectNetwork(ev.Records)
	if err != nil {
		m.stationFailed("No usable network in scan results", err)
		return
	}
	logging.Info("Network selected",
		zap.String("ssid", record.SSID),
		zap.String("bssid", record.BSSID),
		zap.Int("rssi", record.RSSI),
		zap.Int("candidates", len(ev.Records)),
	)

	m.lastCred = cred
	if err := m.radio.Associate(cred); err != nil {
		m.stationFailed("Association could not start", err)
	}
}

func (m *Manager) onAssociated(ev radio.Associated) {
	if !m.mode.HasStation() {
		return
	}
	logging.Info("Associated",
		zap.String("ssid", ev.SSID),
		zap.String("bssid", ev.BSSID),
	)
	m.linkSSID = ev.SSID
	m.retries = 0
	m.policy.Reset()
}

func (m *Manager) onGotIP(ev radio.GotIP) {
	if !m.mode.HasStation() {
		return
	}
	logging.Info("Station address acquired",
		zap.String("addr", ev.Addr.String()),
		zap.String("ssid", m.linkSSID),
	)
	m.retries = 0
	m.policy.Reset()
	m.store.SetConnected(true)
	m.states.Set(StateSTAGotIP)
}

func (m *Manager) onDisassociated(ev radio.Disassociated) {
	if !m.mode.HasStation() {
		logging.Debug("Ignoring stale disassociation", zap.String("ssid", ev.SSID))
		return
	}
	logging.Warn("Station link lost",
		zap.String("ssid", ev.SSID),
		zap.String("reason", ev.Reason.String()),
	)
	m.linkSSID = ""
	m.store.SetConnected(false)
	m.states.Clear(StateSTAGotIP)
	m.retryOrFailOver()
}

// stationFailed handles every station-side failure the same way the
// original link loss is handled: log, then spend a retry or fail over.
func (m *Manager) stationFailed(msg string, err error) {
	logging.Warn(msg, zap.Error(err))
	m.retryOrFailOver()
}

func (m *Manager) retryOrFailOver() {
	if m.retries < m.settings.MaxRetries {
		m.retries++
		delay := m.policy.NextBackOff()
		m.armRetry(delay)
		logging.Info("Scheduling station retry",
			zap.Int("attempt", m.retries),
			zap.Int("max", m.settings.MaxRetries),
			zap.Duration("delay", delay),
		)
		return
	}

	logging.Warn("Station retries exhausted, failing over to access point",
		zap.Int("retries", m.retries),
	)
	// The worker requests AP on itself; the loop claims it like any
	// caller request. Repeated exhaustions before the claim merge into
	// one sticky flag, so the failover happens exactly once.
	m.requests.Set(RequestAP)
}

// retry re-attempts the last association, or rescans when no network had
// been selected yet.
func (m *Manager) retry() {
	if !m.mode.HasStation() {
		return
	}
	if m.lastCred.SSID != "" {
		logging.Info("Retrying association", zap.String("ssid", m.lastCred.SSID))
		if err := m.radio.Associate(m.lastCred); err != nil {
			m.stationFailed("Association retry could not start", err)
		}
		return
	}
	logging.Info("Rescanning for configured networks")
	if err := m.radio.Scan(); err != nil {
		m.stationFailed("Rescan could not start", err)
	}
}

// selectNetwork picks the strongest-signal scan record whose SSID is
// configured. Ties keep the earliest record, and hidden preferences like
// network order never override signal strength.
func (m *Manager) selectNetwork(records []radio.ScanRecord) (radio.Credentials, radio.ScanRecord, error) {
	cfg := m.store.Acquire()
	networks := make([]unitcfg.Network, len(cfg.Connectivity.Networks))
	copy(networks, cfg.Connectivity.Networks)
	m.store.Release()

	if len(networks) == 0 {
		return radio.Credentials{}, radio.ScanRecord{}, errNoNetworks
	}

	best := -1
	bestRSSI := math.MinInt
	var cred radio.Credentials
	for i, rec := range records {
		for _, n := range networks {
			if n.SSID != rec.SSID {
				continue
			}
			if rec.RSSI > bestRSSI {
				bestRSSI = rec.RSSI
				best = i
				cred = radio.Credentials{SSID: n.SSID, Password: n.Password}
			}
		}
	}
	if best < 0 {
		return radio.Credentials{}, radio.ScanRecord{}, fmt.Errorf("%w: %d records, %d networks configured",
			errNoMatch, len(records), len(networks))
	}
	return cred, records[best], nil
}

func (m *Manager) publish(next signal.Flags, mode radio.Mode) {
	logging.LogTransition("wifi", StateName(m.current), StateName(next))
	m.current = next
	m.mode = mode
	// STA+IP never survives a transition; GotIP re-raises it.
	m.states.Transition(primaryMask|StateSTAGotIP, next)
}

func (m *Manager) armRetry(d time.Duration) {
	m.stopRetryTimer()
	m.retryTimer = time.NewTimer(d)
	m.retryC = m.retryTimer.C
}

func (m *Manager) stopRetryTimer() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
		m.retryC = nil
	}
}

func validateAP(ap radio.AccessPointConfig) error {
	if ap.SSID == "" {
		return fmt.Errorf("%w: no ssid", errNoAPConfig)
	}
	if err := unitcfg.ValidateSSID(ap.SSID); err != nil {
		return fmt.Errorf("%w: %v", errNoAPConfig, err)
	}
	// An empty password is an open network; anything else must be a
	// usable WPA2 passphrase.
	if err := unitcfg.ValidatePassword(ap.Password); err != nil {
		return fmt.Errorf("%w: %v", errNoAPConfig, err)
	}
	return nil
}

func targetState(req signal.Flags) signal.Flags {
	switch req {
	case RequestNone:
		return StateNone
	case RequestSTA:
		return StateSTA
	case RequestAP:
		return StateAP
	case RequestAPSTA:
		return StateAPSTA
	default:
		return StateNone
	}
}

func modeFor(state signal.Flags) radio.Mode {
	switch state {
	case StateSTA:
		return radio.ModeSTA
	case StateAP:
		return radio.ModeAP
	case StateAPSTA:
		return radio.ModeAPSTA
	default:
		return radio.ModeOff
	}
}
