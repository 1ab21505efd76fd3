// Package orders implements component H: the two task handlers
// (on_arm_signal, on_disarm_signal) that turn a dispatched signal into
// entry + bracket order placements, tracked and recorded idempotently
// (spec §4.H).
package orders

// Outcome is the envelope every handler returns — never a panic across a
// task boundary (spec §7 "Propagation"). Only the fields relevant to the
// particular result are populated.
type Outcome struct {
	OK bool

	// Terminal/validation/business failure.
	Error       string
	Diagnostics []string

	// Duplicate delivery (spec §8 scenario 3).
	Skipped string

	// Success / partial-success fields.
	EntryID string
	SLID    string
	TPID    string
	Placed  []string // order ids successfully placed, for partial-failure reporting
}
