package radio

import (
	"fmt"
	"hash/fnv"
	"net/netip"
	"sync"
	"time"
)

// simEventBuffer bounds the event channel; a consumer that falls this far
// behind starts losing events rather than blocking the radio.
const simEventBuffer = 32

// Station is one network in a Sim's simulated neighborhood.
type Station struct {
	SSID     string
	Password string
	RSSI     int // dBm
	Channel  int
	Hidden   bool
}

// Sim is a scriptable in-memory radio. Scans see the configured
// neighborhood, associations check station passwords, and helpers inject
// the failures and link drops a real radio produces.
//
// Asynchronous outcomes are delivered after a configurable latency.
// Stopping the radio abandons pending outcomes, mirroring hardware that
// kills in-flight work on power-down.
type Sim struct {
	mu     sync.Mutex
	events chan Event
	closed bool

	started    bool
	mode       Mode
	ap         AccessPointConfig
	associated string

	// gen invalidates scheduled outcomes from before the latest
	// start/stop edge.
	gen int

	stations []Station
	latency  time.Duration

	failScans  int
	scanErr    error
	failAssocs int

	addrSeq int
	starts  map[Mode]int
	scans   int
	dropped int
}

// NewSim returns a stopped radio with an empty neighborhood and no
// latency.
func NewSim() *Sim {
	return &Sim{
		events: make(chan Event, simEventBuffer),
		starts: make(map[Mode]int),
	}
}

// Start brings the radio up in the given mode.
func (s *Sim) Start(mode Mode, ap AccessPointConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if mode == ModeOff {
		return fmt.Errorf("%w: cannot start in mode off", ErrWrongMode)
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.mode = mode
	s.ap = ap
	s.gen++
	s.starts[mode]++
	return nil
}

// Stop tears the radio down and abandons pending outcomes.
func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.started {
		return ErrNotStarted
	}
	s.started = false
	s.mode = ModeOff
	s.associated = ""
	s.gen++
	return nil
}

// Scan starts an asynchronous scan of the neighborhood.
func (s *Sim) Scan() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if !s.mode.HasStation() {
		s.mu.Unlock()
		return fmt.Errorf("%w: scan needs a station interface", ErrWrongMode)
	}
	s.scans++
	gen := s.gen

	if s.failScans > 0 {
		s.failScans--
		err := s.scanErr
		s.mu.Unlock()
		s.schedule(gen, func() { s.emit(ScanDone{Err: err}) })
		return nil
	}

	records := make([]ScanRecord, 0, len(s.stations))
	for _, st := range s.stations {
		if st.Hidden {
			continue
		}
		records = append(records, ScanRecord{
			SSID:    st.SSID,
			BSSID:   bssidFor(st.SSID),
			RSSI:    st.RSSI,
			Channel: st.Channel,
		})
	}
	s.mu.Unlock()

	s.schedule(gen, func() { s.emit(ScanDone{Records: records}) })
	return nil
}

// Associate starts an asynchronous association attempt against the
// neighborhood.
func (s *Sim) Associate(cred Credentials) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if !s.mode.HasStation() {
		s.mu.Unlock()
		return fmt.Errorf("%w: association needs a station interface", ErrWrongMode)
	}
	gen := s.gen

	if s.failAssocs > 0 {
		s.failAssocs--
		s.mu.Unlock()
		s.schedule(gen, func() {
			s.emit(Disassociated{SSID: cred.SSID, Reason: ReasonAssocFailed})
		})
		return nil
	}

	station, found := s.stationLocked(cred.SSID)
	s.mu.Unlock()

	switch {
	case !found:
		s.schedule(gen, func() {
			s.emit(Disassociated{SSID: cred.SSID, Reason: ReasonNoAPFound})
		})
	case station.Password != cred.Password:
		s.schedule(gen, func() {
			s.emit(Disassociated{SSID: cred.SSID, Reason: ReasonAuthFailed})
		})
	default:
		s.schedule(gen, func() {
			s.mu.Lock()
			s.associated = cred.SSID
			s.addrSeq++
			addr := netip.AddrFrom4([4]byte{192, 168, 1, byte(99 + s.addrSeq)})
			s.mu.Unlock()

			s.emit(Associated{SSID: cred.SSID, BSSID: bssidFor(cred.SSID)})
			s.schedule(gen, func() { s.emit(GotIP{Addr: addr}) })
		})
	}
	return nil
}

// Events returns the radio's event stream.
func (s *Sim) Events() <-chan Event {
	return s.events
}

// Close releases the radio and ends the event stream.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++
	close(s.events)
	return nil
}

// AddStation places a station in the neighborhood, replacing any station
// with the same SSID.
func (s *Sim) AddStation(st Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stations {
		if s.stations[i].SSID == st.SSID {
			s.stations[i] = st
			return
		}
	}
	s.stations = append(s.stations, st)
}

// RemoveStation takes a station out of the neighborhood. If the radio is
// associated with it, the link drops with a beacon timeout.
func (s *Sim) RemoveStation(ssid string) {
	s.mu.Lock()
	for i := range s.stations {
		if s.stations[i].SSID == ssid {
			s.stations = append(s.stations[:i], s.stations[i+1:]...)
			break
		}
	}
	wasLinked := s.associated == ssid
	if wasLinked {
		s.associated = ""
	}
	s.mu.Unlock()

	if wasLinked {
		s.emit(Disassociated{SSID: ssid, Reason: ReasonBeaconTimeout})
	}
}

// SetSignal adjusts a station's signal strength.
func (s *Sim) SetSignal(ssid string, rssi int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stations {
		if s.stations[i].SSID == ssid {
			s.stations[i].RSSI = rssi
			return
		}
	}
}

// DropLink severs the current association with the given reason. It
// reports false when nothing was associated.
func (s *Sim) DropLink(reason DisconnectReason) bool {
	s.mu.Lock()
	if s.closed || s.associated == "" {
		s.mu.Unlock()
		return false
	}
	ssid := s.associated
	s.associated = ""
	s.mu.Unlock()

	s.emit(Disassociated{SSID: ssid, Reason: reason})
	return true
}

// FailNextScans makes the next n scans complete with err.
func (s *Sim) FailNextScans(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failScans = n
	s.scanErr = err
}

// FailNextAssociations makes the next n association attempts fail.
func (s *Sim) FailNextAssociations(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAssocs = n
}

// SetLatency delays each asynchronous outcome by d.
func (s *Sim) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Started reports whether the radio is up.
func (s *Sim) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// CurrentMode returns the running mode, or ModeOff.
func (s *Sim) CurrentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// APConfig returns the access point configuration from the latest start.
func (s *Sim) APConfig() AccessPointConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ap
}

// AssociatedSSID returns the SSID the radio is associated with, or "".
func (s *Sim) AssociatedSSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.associated
}

// StartCount reports how many times the radio was started in mode.
func (s *Sim) StartCount(mode Mode) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[mode]
}

// ScanCount reports how many scans were requested.
func (s *Sim) ScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Stations returns a copy of the neighborhood.
func (s *Sim) Stations() []Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Station, len(s.stations))
	copy(out, s.stations)
	return out
}

func (s *Sim) stationLocked(ssid string) (Station, bool) {
	for _, st := range s.stations {
		if st.SSID == ssid {
			return st, true
		}
	}
	return Station{}, false
}

// schedule runs fn after the configured latency unless the radio was
// stopped, restarted, or closed in the meantime.
func (s *Sim) schedule(gen int, fn func()) {
	s.mu.Lock()
	d := s.latency
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	time.AfterFunc(d, func() {
		s.mu.Lock()
		stale := s.closed || s.gen != gen
		s.mu.Unlock()
		if stale {
			return
		}
		fn()
	})
}

func (s *Sim) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// A consumer this far behind loses events, as on hardware.
		s.dropped++
	}
}

// bssidFor derives a stable locally-administered BSSID from an SSID.
func bssidFor(ssid string) string {
	h := fnv.New32a()
	h.Write([]byte(ssid))
	sum := h.Sum32()
	return fmt.Sprintf("02:f1:%02x:%02x:%02x:%02x",
		byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
