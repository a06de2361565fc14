package eventlog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/eventlog"
)

func TestMemorySink_CapturesAndCounts(t *testing.T) {
	sink := eventlog.NewMemorySink()

	sink.Emit(eventlog.Event{SessionID: "s1", Type: eventlog.TypeCopy, Severity: eventlog.SeverityDebug, Timestamp: time.Now()})
	sink.Emit(eventlog.Event{SessionID: "s1", Type: eventlog.TypeSkip, Severity: eventlog.SeverityDebug, Timestamp: time.Now()})
	sink.Emit(eventlog.Event{SessionID: "s1", Type: eventlog.TypeCopy, Severity: eventlog.SeverityDebug, Timestamp: time.Now()})

	require.Len(t, sink.Events(), 3)
	require.Equal(t, 2, sink.CountByType(eventlog.TypeCopy))
	require.Equal(t, 1, sink.CountByType(eventlog.TypeSkip))
}

func TestDiscardSink_NeverPanics(t *testing.T) {
	require.NotPanics(t, func() {
		eventlog.Discard.Emit(eventlog.Event{})
	})
}
