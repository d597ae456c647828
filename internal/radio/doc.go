// Package radio abstracts the unit's wireless hardware behind a small
// event-driven interface.
//
// The connectivity manager drives a Radio imperatively (start, scan,
// associate) and reacts to the asynchronous Events the radio emits: scan
// completion, association, address acquisition, and unsolicited link
// loss. The manager never blocks inside radio calls; everything slow
// arrives as an event.
//
// Sim is the in-tree implementation: a scriptable radio with a simulated
// neighborhood of stations, adjustable latency, and injectable failures.
// It drives both the test suite and the interactive simulator.
package radio
