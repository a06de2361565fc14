package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/stats"
)

func TestAggregator_SuccessRateDefaultsTo100(t *testing.T) {
	a := stats.New()
	require.Equal(t, 100.0, a.SuccessRate())
}

func TestAggregator_SuccessRateComputed(t *testing.T) {
	a := stats.New()

	a.RecordSuccess("nas", classify.RAW, 1000, 1000)
	a.RecordSuccess("nas", classify.RAW, 1000, 1000)
	a.RecordFailure("nas", classify.RAW, 1000)

	require.InDelta(t, 66.666, a.SuccessRate(), 0.01)
}

func TestAggregator_PerDestinationCountsAreIndependent(t *testing.T) {
	a := stats.New()

	// Same logical source file, two destinations, two different outcomes.
	// Neither destination's tally may be derived from the other's by
	// scaling with the destination count.
	a.RecordSuccess("nas", classify.RAW, 1000, 1000)
	a.RecordFailure("backup-drive", classify.RAW, 1000)

	require.Equal(t, int64(1), a.ByDestination["nas"].Copied)
	require.Equal(t, int64(0), a.ByDestination["nas"].Failed)
	require.Equal(t, int64(0), a.ByDestination["backup-drive"].Copied)
	require.Equal(t, int64(1), a.ByDestination["backup-drive"].Failed)
}

func TestAggregator_ExclusionCounts(t *testing.T) {
	a := stats.New()

	a.RecordExclusion(stats.ExclusionCache)
	a.RecordExclusion(stats.ExclusionCache)
	a.RecordExclusion(stats.ExclusionHidden)

	require.Equal(t, int64(2), a.Exclusions.CachePath)
	require.Equal(t, int64(1), a.Exclusions.Hidden)
	require.Equal(t, int64(0), a.Exclusions.UnsupportedType)
}
