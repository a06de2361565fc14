// Package destqueue implements the per-destination worker pool: the
// copy-then-verify state machine, adaptive worker scaling under memory
// pressure, and retry/skip rules described in spec §4.6. A mismatched
// existing destination file is deleted before the copy, not quarantined.
// Each Queue owns its own state exclusively; the only way the rest of
// the system observes it is through Status snapshots and the three
// optional callbacks (progress, verify, stats) set before Start.
package destqueue

import "github.com/kmichels/imageintactcore/classify"

// OutcomeKind is the result of processing one task.
type OutcomeKind int

// The four outcomes a file processing attempt can produce.
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeCancelled
)

// Outcome is the sum type CopyOutcome from spec §3, flattened into a
// single struct since Go has no sum types: Reason is populated for
// OutcomeSkipped, Err for OutcomeFailed, and neither for the other kinds.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// FailedFile is one permanently-failed or unverifiable file, as
// recorded in a destination's failed[] list.
type FailedFile struct {
	RelativePath string
	Error        string
}

// State is the per-destination snapshot the coordinator consumes,
// matching spec §3's DestinationState exactly.
type State struct {
	Copied           int
	Total            int
	Failed           []FailedFile
	BytesTransferred int64
	BytesTotal       int64
	Verified         int
	IsVerifying      bool
	IsComplete       bool
	Speed            string
	ETA              string
	FileType         classify.FileType // zero value when not meaningful; reserved for future per-type breakdowns
}
