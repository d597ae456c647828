// Package wifi keeps a unit reachable over the air.
//
// A Manager runs one worker goroutine that owns the radio outright. The
// worker multiplexes three inputs: state requests from callers, events
// from the radio, and its own retry timer. Nothing else touches the
// radio, so there are no callback-context mutations and no locks around
// connectivity state.
//
// # States
//
//	NONE      radio off
//	STA       station mode, attempting or attached
//	STA+IP    station mode with an acquired address (joins STA)
//	AP        serving the unit's own access point
//	AP+STA    both interfaces at once
//
// A transition validates its prerequisites (configured networks for
// station modes, usable access point settings for AP modes), tears down
// the running mode, brings up the new one, and publishes it. Requesting
// the current state is a no-op: no teardown, no scan, no flap.
//
// # Station behavior
//
// Station modes scan first, then associate with the strongest-signal
// network whose SSID matches a configured one. Association failures and
// link losses schedule a retry after a fixed delay; once the retry
// budget is exhausted the worker requests AP on itself, so a unit that
// cannot join anything ends up hosting its own network instead of
// spinning. Any successful association resets the budget.
package wifi
