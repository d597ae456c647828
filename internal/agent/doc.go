// Package agent assembles and runs one fieldlink unit.
//
// An Agent owns the unit's moving parts: the configuration store, the
// persistence manager over a flash store, the connectivity manager over
// a radio, and the mDNS announcer. New wires them together; Run drives
// the boot sequence the firmware performs on power-up:
//
//  1. Bring flash up and load (or provision) the configuration.
//  2. Request the configured boot mode. A station boot with no stored
//     networks goes to AP instead, so a fresh unit is reachable for
//     provisioning rather than scanning for nothing.
//  3. Announce the unit and park.
//
// A parked agent reacts to two things: context cancellation (the host
// is stopping it) and RequestReboot (the unit wants a restart, for
// instance after a configuration write). Both shut the unit down in
// order, announcer first so the advertisement is withdrawn while the
// network is still up; a reboot additionally reports ErrRebootRequested
// so the supervisor knows to start the process again.
//
// # Settings
//
// The agent reads host-side settings from a YAML file (flash location,
// boot mode, access point shape, factory defaults). These describe how
// to run the unit on a host; the unit's own configuration lives in the
// flash blob and travels with it.
package agent
