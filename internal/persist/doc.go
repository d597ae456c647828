// Package persist owns the unit configuration's life on flash.
//
// A Manager runs one worker goroutine that services state requests from
// its request group and publishes the state it reaches on its state
// group:
//
//	NONE  ──READY──▶  READY  ──READ/WRITE──▶  BUSY  ──▶  READY
//	  ▲                                                    │
//	  └────────────────────NONE────────────────────────────┘
//
// Reaching READY from NONE mounts the flash store, provisions factory
// defaults when no blob exists (first boot), and loads the stored
// configuration into the shared store, falling back to defaults when the
// blob's version does not match or its contents are corrupt. READ reloads
// flash into the store; WRITE snapshots the store, encodes it, and
// replaces the blob. Both wrap themselves in BUSY.
//
// Requests are asynchronous, but RequestState rejects READ and WRITE
// immediately with ErrBusy or ErrNotReady when the published state makes
// them impossible, so callers get a synchronous busy/rejected signal
// without waiting on the worker.
package persist
