// Package signal provides the flag groups that connect the fieldlink
// managers to their callers.
//
// A Group holds a small set of sticky boolean flags. Producers set flags
// and consumers either observe them (state groups) or atomically claim
// them (request groups). Every manager owns two groups:
//
//   - a request group, where callers set the state they want and the
//     manager's worker claims requests with ConsumeAny
//   - a state group, where the worker publishes the state it reached and
//     callers block with WaitAll or WaitAny
//
// Flags are sticky: once set they stay set until a consumer claims them
// or the owner clears them. Setting an already-set flag merges rather
// than queues, so a burst of identical requests collapses into one
// wake-up. Transition swaps one set of flags for another in a single
// step, which keeps state groups free of windows where no flag (or a
// stale flag) is visible.
//
// All methods are safe for concurrent use. Blocking calls take a
// context.Context and return its error when cancelled.
package signal
