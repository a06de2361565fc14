package destqueue

import (
	"os"
	"time"

	"github.com/kmichels/imageintactcore/checksum"
	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/eventlog"
	"github.com/kmichels/imageintactcore/internal/ierrors"
	"github.com/kmichels/imageintactcore/queue"
)

// maxAttempts is the number of copy attempts a task gets before it's
// moved to the failed list, per spec §4.6's worker loop outcome table.
const maxAttempts = 3

// workerLoop repeatedly dequeues and processes tasks until the queue is
// drained (and no task is in flight elsewhere that might still produce
// a retry), the destination is told to drain toward a lower worker
// target, or the run is cancelled.
func (q *Queue) workerLoop() {
	defer q.wg.Done()
	defer q.activeWorkers.Add(-1)

	for {
		if q.ctx.Err() != nil {
			return
		}

		if q.activeWorkers.Load() > q.targetWorkers.Load() {
			return
		}

		task := q.pq.Dequeue()
		if task == nil {
			if q.inFlight.Load() == 0 {
				return
			}
			// Another worker is mid-task and may re-enqueue a retry;
			// wait briefly rather than exiting and stranding it.
			time.Sleep(drainPollInterval)
			continue
		}

		q.inFlight.Add(1)
		outcome := q.processTask(task)
		q.inFlight.Add(-1)

		q.applyOutcome(task, outcome)

		if outcome.Kind == OutcomeCancelled {
			return
		}
	}
}

// processTask implements the three-step copy procedure from spec §4.6:
// resolve the destination path, skip if an identical file is already
// there, otherwise copy and let the caller verify later.
func (q *Queue) processTask(task *queue.Task) Outcome {
	destPath := q.resolveDestPath(task.RelativePath)

	if info, err := os.Stat(destPath); err == nil {
		if info.Size() == task.Size {
			digest, err := checksum.File(q.ctx, destPath)
			if err == nil && digest == task.Checksum {
				return Outcome{Kind: OutcomeSkipped, Reason: "already exists with matching checksum"}
			}
			if ierrors.IsCancelled(err) {
				return Outcome{Kind: OutcomeCancelled}
			}
		}
		os.Remove(destPath) //nolint:errcheck
	}

	if err := q.processor.Copy(q.ctx, task.SourcePath, destPath); err != nil {
		if ierrors.IsCancelled(err) {
			return Outcome{Kind: OutcomeCancelled}
		}
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	return Outcome{Kind: OutcomeSuccess}
}

// applyOutcome is the single point where a destination's counters,
// failed list, and queue re-enqueues are mutated, keeping every worker
// goroutine's writes serialized behind q.mu.
func (q *Queue) applyOutcome(task *queue.Task, outcome Outcome) {
	q.mu.Lock()

	var statsKind OutcomeKind
	var speedBps float64
	reportStats := false

	switch outcome.Kind {
	case OutcomeSuccess:
		q.completed++
		q.bytesTransferred += task.Size
		q.monitor.RecordSample(task.Size)
		q.emit(eventlog.TypeCopy, eventlog.SeverityInfo, task, "")
		statsKind, speedBps, reportStats = OutcomeSuccess, q.monitor.CurrentSpeedBps(), true

	case OutcomeSkipped:
		q.completed++
		q.emit(eventlog.TypeSkip, eventlog.SeverityInfo, task, outcome.Reason)
		statsKind, reportStats = OutcomeSkipped, true

	case OutcomeFailed:
		task.LastError = outcome.Err
		if task.Attempts+1 < maxAttempts {
			task.Attempts++
			q.pq.Enqueue(task)
			q.emit(eventlog.TypeError, eventlog.SeverityDebug, task, errString(outcome.Err))
		} else {
			q.completed++
			q.failed = append(q.failed, FailedFile{RelativePath: task.RelativePath, Error: errString(outcome.Err)})
			q.copyFailed[task.RelativePath] = struct{}{}
			q.emit(eventlog.TypeError, eventlog.SeverityError, task, errString(outcome.Err))
			statsKind, reportStats = OutcomeFailed, true
		}

	case OutcomeCancelled:
		q.pq.Enqueue(task)
		q.emit(eventlog.TypeCancel, eventlog.SeverityDebug, task, "")
	}

	snapshot := q.snapshotLocked()
	force := outcome.Kind != OutcomeCancelled && q.completed >= q.total
	due := time.Since(q.lastCallbackAt) >= time.Second/progressCallbackRate
	if force || due {
		q.lastCallbackAt = time.Now()
	}

	q.mu.Unlock()

	if reportStats {
		q.fireStats(statsKind, task.Type, task.Size, speedBps)
	}

	if force || due {
		q.fireProgress(snapshot)
	}
}

func (q *Queue) emit(t eventlog.Type, sev eventlog.Severity, task *queue.Task, errText string) {
	q.sink.Emit(eventlog.Event{
		SessionID:       q.sessionID,
		Timestamp:       time.Now(),
		Type:            t,
		Severity:        sev,
		SourcePath:      task.SourcePath,
		DestinationPath: q.resolveDestPath(task.RelativePath),
		FileSize:        task.Size,
		Checksum:        task.Checksum,
		Error:           errText,
	})
}

func (q *Queue) fireProgress(s State) {
	q.cbMu.Lock()
	cb := q.progressCB
	q.cbMu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (q *Queue) fireStats(kind OutcomeKind, t classify.FileType, size int64, speedBps float64) {
	q.cbMu.Lock()
	cb := q.statsCB
	q.cbMu.Unlock()
	if cb != nil {
		cb(kind, t, size, speedBps)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
