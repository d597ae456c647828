package radio

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrNotStarted reports an operation that needs a started radio.
	ErrNotStarted = errors.New("radio: not started")

	// ErrAlreadyStarted reports a Start on a radio that is already up.
	ErrAlreadyStarted = errors.New("radio: already started")

	// ErrWrongMode reports an operation the current mode cannot perform,
	// such as scanning without a station interface.
	ErrWrongMode = errors.New("radio: operation not valid in current mode")

	// ErrClosed reports use of a radio after Close.
	ErrClosed = errors.New("radio: closed")
)

// Mode selects which interfaces the radio runs.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeSTA
	ModeAP
	ModeAPSTA
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSTA:
		return "sta"
	case ModeAP:
		return "ap"
	case ModeAPSTA:
		return "ap+sta"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// HasStation reports whether the mode runs a station interface.
func (m Mode) HasStation() bool {
	return m == ModeSTA || m == ModeAPSTA
}

// HasAccessPoint reports whether the mode runs an access point interface.
func (m Mode) HasAccessPoint() bool {
	return m == ModeAP || m == ModeAPSTA
}

// Credentials identifies a network to associate with. An empty password
// means an open network.
type Credentials struct {
	SSID     string
	Password string
}

// AccessPointConfig describes the access point a unit offers when serving
// its own network. An empty password yields an open network; anything
// else is WPA2-protected.
type AccessPointConfig struct {
	SSID       string
	Password   string
	Channel    int
	MaxClients int
	Hidden     bool
}

// Open reports whether the access point runs without a password.
func (c AccessPointConfig) Open() bool {
	return c.Password == ""
}

// ScanRecord is one network sighted during a scan.
type ScanRecord struct {
	SSID    string
	BSSID   string
	RSSI    int // dBm, more positive is stronger
	Channel int
}

// DisconnectReason classifies an association failure or link loss.
type DisconnectReason uint8

const (
	ReasonUnknown DisconnectReason = iota
	ReasonAuthExpired
	ReasonAuthFailed
	ReasonNoAPFound
	ReasonAssocFailed
	ReasonHandshakeTimeout
	ReasonBeaconTimeout
	ReasonComebackTooLong
	ReasonConnectionFailed
	ReasonLeftNetwork
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonAuthExpired:
		return "auth expired"
	case ReasonAuthFailed:
		return "auth failed"
	case ReasonNoAPFound:
		return "no ap found"
	case ReasonAssocFailed:
		return "association failed"
	case ReasonHandshakeTimeout:
		return "handshake timeout"
	case ReasonBeaconTimeout:
		return "beacon timeout"
	case ReasonComebackTooLong:
		return "comeback too long"
	case ReasonConnectionFailed:
		return "connection failed"
	case ReasonLeftNetwork:
		return "left network"
	default:
		return "unknown"
	}
}

// Event is anything a radio reports asynchronously. The concrete types
// below are the complete set.
type Event interface {
	event()
}

// ScanDone reports a finished scan, successful or not.
type ScanDone struct {
	Records []ScanRecord
	Err     error
}

// Associated reports a successful association with a network. An address
// has not necessarily been acquired yet.
type Associated struct {
	SSID  string
	BSSID string
}

// Disassociated reports a failed association attempt or the loss of an
// established link.
type Disassociated struct {
	SSID   string
	Reason DisconnectReason
}

// GotIP reports address acquisition on the station interface.
type GotIP struct {
	Addr netip.Addr
}

func (ScanDone) event()      {}
func (Associated) event()    {}
func (Disassociated) event() {}
func (GotIP) event()         {}

// Radio is the hardware abstraction the connectivity manager drives.
//
// Start, Stop, Scan and Associate return quickly; slow outcomes arrive on
// Events. The events channel is closed by Close and never by Stop, so a
// manager can keep selecting on it across mode changes.
type Radio interface {
	// Start brings the radio up in the given mode. The access point
	// configuration is ignored by modes without an AP interface.
	Start(mode Mode, ap AccessPointConfig) error

	// Stop tears the radio down. Pending asynchronous work is abandoned
	// without events.
	Stop() error

	// Scan starts an asynchronous scan on the station interface. The
	// outcome arrives as a ScanDone event.
	Scan() error

	// Associate starts an asynchronous association attempt. Success
	// arrives as Associated followed by GotIP; failure as Disassociated.
	Associate(cred Credentials) error

	// Events returns the radio's event stream.
	Events() <-chan Event

	// Close releases the radio and closes the event stream.
	Close() error
}
