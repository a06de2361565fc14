package throughput_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/throughput"
)

func TestMonitor_AverageAndETA(t *testing.T) {
	m := throughput.New()
	m.Start()

	time.Sleep(20 * time.Millisecond)
	m.RecordSample(1024 * 1024)

	avg := m.AverageSpeedBps()
	require.Greater(t, avg, 0.0)

	eta := m.ETA(1024 * 1024)
	require.NotEqual(t, "unknown", eta)
}

func TestMonitor_ETAUnknownBeforeAnySample(t *testing.T) {
	m := throughput.New()
	m.Start()

	require.Equal(t, "unknown", m.ETA(1024))
}

func TestMonitor_FormatSpeed(t *testing.T) {
	require.Equal(t, "1.0 MB/s", throughput.FormatSpeed(1024*1024))
	require.Equal(t, "0.0 MB/s", throughput.FormatSpeed(0))
}

func TestMonitor_RecommendHoldWithoutHistory(t *testing.T) {
	m := throughput.New()
	m.Start()

	require.Equal(t, throughput.Hold, m.Recommend())
}
