// Package backup implements the coordinator described in spec §4.8: it
// builds one manifest from a source root, fans it out into one
// destqueue.Queue per destination, and aggregates their progress into a
// single status the caller can poll or render.
package backup

import (
	"github.com/kmichels/imageintactcore/destqueue"
	"github.com/kmichels/imageintactcore/stats"
)

// Destination is one copy target: a human name (used in status output
// and event logs) and the filesystem root to copy into.
type Destination struct {
	Name string
	Root string
}

// CollectedFailure is one failure attributed to a destination, the
// shape finalize_backup assembles from each queue's failed[] list.
type CollectedFailure struct {
	Destination  string
	RelativePath string
	Error        string
}

// DestinationStatus is a destqueue.State tagged with the destination
// name it came from, for the coordinator's aggregated view.
type DestinationStatus struct {
	Destination string
	destqueue.State
}

// Status is the coordinator's aggregated view across every
// destination, rebuilt on each monitor tick while a backup runs.
type Status struct {
	IsRunning         bool
	OverallProgress   float64 // clamped to [0, 1]
	TotalBytesToCopy  int64
	TotalBytesCopied  int64
	CombinedSpeed     string
	ByDestination     map[string]DestinationStatus
	CollectedFailures []CollectedFailure
}

// Result is the final, immutable outcome of a finished run, captured by
// finalize_backup before the coordinator clears its working state.
type Result struct {
	FinalMessage      string
	CollectedFailures []CollectedFailure
	ByDestination     map[string]DestinationStatus
	Cancelled         bool
	Stats             *stats.Aggregator
}
