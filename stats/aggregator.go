// Package stats rolls up per-backup counters the coordinator feeds it
// single-threaded, deriving the summary numbers an operator actually
// wants (success rate, throughput) without ever conflating per-
// destination counts with source-side totals.
package stats

import (
	"time"

	"github.com/kmichels/imageintactcore/classify"
)

// TypeCounters tracks successes/failures/bytes for one detected file type.
type TypeCounters struct {
	SuccessCount int64
	FailureCount int64
	SuccessBytes int64
	FailureBytes int64
}

// DestinationStats tracks a single destination's contribution to a run.
type DestinationStats struct {
	Copied       int64
	Failed       int64
	BytesCopied  int64
	AverageSpeed float64 // bytes/second
}

// ExclusionCounts tallies why files were left out of a manifest, kept
// separate from failures since an exclusion is a filter decision, not
// an error.
type ExclusionCounts struct {
	CachePath       int64
	Hidden          int64
	UnsupportedType int64
}

// Aggregator accumulates statistics for a single backup run. It is not
// safe for concurrent use by design: the coordinator is the only
// writer, and it always writes from within its own serialized status
// section (see backup.Coordinator).
type Aggregator struct {
	StartedAt time.Time
	EndedAt   time.Time

	Processed int64
	Skipped   int64
	Failed    int64

	BytesProcessed int64

	ByType        map[classify.FileType]*TypeCounters
	ByDestination map[string]*DestinationStats
	Exclusions    ExclusionCounts
}

// New creates an empty Aggregator with StartedAt set to now.
func New() *Aggregator {
	return &Aggregator{
		StartedAt:     time.Now(),
		ByType:        make(map[classify.FileType]*TypeCounters),
		ByDestination: make(map[string]*DestinationStats),
	}
}

func (a *Aggregator) typeCounters(t classify.FileType) *TypeCounters {
	c, ok := a.ByType[t]
	if !ok {
		c = &TypeCounters{}
		a.ByType[t] = c
	}

	return c
}

func (a *Aggregator) destStats(name string) *DestinationStats {
	d, ok := a.ByDestination[name]
	if !ok {
		d = &DestinationStats{}
		a.ByDestination[name] = d
	}

	return d
}

// RecordSuccess records one successfully copied file. It is recorded
// when the copy finishes, before the destination's verification pass.
func (a *Aggregator) RecordSuccess(destination string, t classify.FileType, size int64, speedBps float64) {
	a.Processed++
	a.BytesProcessed += size

	tc := a.typeCounters(t)
	tc.SuccessCount++
	tc.SuccessBytes += size

	ds := a.destStats(destination)
	ds.Copied++
	ds.BytesCopied += size
	ds.AverageSpeed = speedBps
}

// RecordSkip records a file that needed no I/O because the destination
// already had a matching copy.
func (a *Aggregator) RecordSkip(destination string, t classify.FileType, size int64) {
	a.Skipped++

	ds := a.destStats(destination)
	ds.Copied++
}

// RecordFailure records a permanently failed file for one destination.
func (a *Aggregator) RecordFailure(destination string, t classify.FileType, size int64) {
	a.Failed++

	tc := a.typeCounters(t)
	tc.FailureCount++
	tc.FailureBytes += size

	ds := a.destStats(destination)
	ds.Failed++
}

// RecordExclusion tallies a file the manifest builder chose not to
// include, for one of the three reasons the core distinguishes.
func (a *Aggregator) RecordExclusion(reason ExclusionReason) {
	switch reason {
	case ExclusionCache:
		a.Exclusions.CachePath++
	case ExclusionHidden:
		a.Exclusions.Hidden++
	case ExclusionUnsupported:
		a.Exclusions.UnsupportedType++
	}
}

// ExclusionReason names why the manifest builder dropped a candidate.
type ExclusionReason int

// The three exclusion reasons the aggregator distinguishes.
const (
	ExclusionCache ExclusionReason = iota
	ExclusionHidden
	ExclusionUnsupported
)

// Finish stamps EndedAt; call it once the backup reaches Complete.
func (a *Aggregator) Finish() {
	a.EndedAt = time.Now()
}

// Duration returns EndedAt-StartedAt, or elapsed-so-far if Finish
// hasn't been called yet.
func (a *Aggregator) Duration() time.Duration {
	if a.EndedAt.IsZero() {
		return time.Since(a.StartedAt)
	}

	return a.EndedAt.Sub(a.StartedAt)
}

// SuccessRate is processed/(processed+failed) as a percentage,
// defaulting to 100 when nothing was attempted.
func (a *Aggregator) SuccessRate() float64 {
	denom := a.Processed + a.Failed
	if denom == 0 {
		return 100
	}

	return float64(a.Processed) / float64(denom) * 100
}

// AverageThroughputMBps is total bytes processed divided by wall-clock
// duration, in MB/s.
func (a *Aggregator) AverageThroughputMBps() float64 {
	seconds := a.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}

	return float64(a.BytesProcessed) / (1024 * 1024) / seconds
}
