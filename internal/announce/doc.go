// Package announce publishes a unit's presence over mDNS.
//
// Units advertise themselves as "_fieldlink._tcp" instances so that the
// companion tooling can find them without knowing addresses up front.
// The announcer follows the connectivity manager: it registers when the
// unit becomes reachable, refreshes its TXT records when the mode
// changes, and withdraws the advertisement when the unit drops off the
// air.
//
// # Reachability
//
// A unit is considered reachable while it either holds a station
// address or serves its own access point. Plain station mode without an
// address is not announced; nothing could resolve the record yet.
//
// # TXT records
//
// Each advertisement carries "key=value" TXT records:
//   - unit: the configured unit name
//   - mode: the connectivity state at announcement time
//   - ver: the firmware version
//   - id: a boot identifier, fresh per process, for telling apart units
//     that share a name
//
// The instance name is the unit name plus the short boot identifier and
// is captured at registration time; renaming a unit takes effect on the
// next registration.
package announce
