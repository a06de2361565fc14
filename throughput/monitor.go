// Package throughput estimates transfer speed from a rolling window of
// byte samples and recommends widening or narrowing a destination
// queue's worker pool in response.
package throughput

import (
	"fmt"
	"sync"
	"time"
)

// maxSamples bounds the ring buffer of (timestamp, bytes) samples.
const maxSamples = 30

// currentWindow is the lookback used for the "current speed" estimate.
const currentWindow = 5 * time.Second

// Recommendation is the worker-count delta the monitor suggests.
type Recommendation int

// The three possible recommendations.
const (
	Hold Recommendation = iota
	Increase
	Decrease
)

type sample struct {
	at    time.Time
	bytes int64
}

// Monitor tracks bytes transferred over time for one destination queue.
type Monitor struct {
	mu         sync.Mutex
	startedAt  time.Time
	started    bool
	totalBytes int64
	samples    []sample
}

// New creates a Monitor; call Start before recording samples.
func New() *Monitor {
	return &Monitor{}
}

// Start marks the beginning of the measurement window. Calling it
// again resets accumulated totals, which the destination queue does
// not do mid-run — it is here for callers (tests, reruns) that want a
// clean Monitor without allocating a new one.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startedAt = time.Now()
	m.started = true
	m.totalBytes = 0
	m.samples = nil
}

// RecordSample appends a (now, n) sample, dropping the oldest sample
// once the ring exceeds maxSamples.
func (m *Monitor) RecordSample(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBytes += n
	m.samples = append(m.samples, sample{at: time.Now(), bytes: n})

	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
}

// CurrentSpeedBps returns bytes/second summed over the last 5 seconds
// of samples.
func (m *Monitor) CurrentSpeedBps() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-currentWindow)

	var sum int64
	for _, s := range m.samples {
		if s.at.After(cutoff) {
			sum += s.bytes
		}
	}

	return float64(sum) / currentWindow.Seconds()
}

// AverageSpeedBps returns total bytes transferred since Start divided
// by elapsed time, or 0 if Start was never called or no time has
// elapsed.
func (m *Monitor) AverageSpeedBps() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return 0
	}

	elapsed := time.Since(m.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return float64(m.totalBytes) / elapsed
}

// ETA returns a human string estimate of time remaining to transfer
// bytesRemaining at the current average speed, or "unknown" if the
// average speed is not yet positive.
func (m *Monitor) ETA(bytesRemaining int64) string {
	avg := m.AverageSpeedBps()
	if avg <= 0 {
		return "unknown"
	}

	seconds := float64(bytesRemaining) / avg

	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

// Recommend compares current to average speed and suggests widening or
// narrowing the worker pool: more than 20% faster than average
// recommends +1, more than 20% slower recommends -1, otherwise hold.
func (m *Monitor) Recommend() Recommendation {
	avg := m.AverageSpeedBps()
	if avg <= 0 {
		return Hold
	}

	ratio := m.CurrentSpeedBps() / avg

	switch {
	case ratio > 1.2:
		return Increase
	case ratio < 0.8:
		return Decrease
	default:
		return Hold
	}
}

// FormatSpeed renders bytesPerSecond as "%.1f MB/s".
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1024*1024))
}
