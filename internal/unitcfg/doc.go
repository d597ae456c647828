// Package unitcfg defines the unit configuration: the single document that
// describes how a fieldlink unit connects, reports, and identifies itself.
//
// The package has three layers:
//
//   - the model: Config and its Connectivity, System, and User blocks,
//     plus the validation rules for operator-supplied values
//   - the store: a lock-guarded singleton holding the live configuration
//     shared by the managers
//   - the codec: the versioned binary layout used to persist a Config as
//     a single flash blob
//
// # Binary layout
//
// An encoded configuration is a length-prefixed byte stream with no
// padding and no alignment. All lengths are single bytes:
//
//	version        1 byte, must equal FormatVersion
//	network count  1 byte
//	ota-url len    1 byte
//	version-url len 1 byte
//	ota-url        bytes
//	version-url    bytes
//	per network:
//	  ssid len     1 byte
//	  password len 1 byte
//	  ssid         bytes
//	  password     bytes
//	log level      1 byte
//	unit name len  1 byte
//	unit name      bytes
//
// Decode rejects a blob whose leading version byte differs from
// FormatVersion with ErrVersionMismatch; callers treat that the same as
// no blob at all and re-provision defaults. Any declared length that
// overruns the buffer, and any trailing bytes, fail with ErrCorrupt.
package unitcfg
