package destqueue

import (
	"os"
	"time"

	"github.com/kmichels/imageintactcore/checksum"
	"github.com/kmichels/imageintactcore/eventlog"
	"github.com/kmichels/imageintactcore/queue"
)

// verifyLoop waits for every task to reach a terminal copy outcome,
// then re-checksums each destination file in the manifest's original
// order, exactly as spec §4.6 describes: a short delay before
// announcing is_verifying so a fast, fully-cached run doesn't flicker
// the UI into a verification state it exits immediately, followed by a
// single ordered pass producing the verified count and any newly
// discovered failures (missing file, checksum mismatch).
func (q *Queue) verifyLoop() {
	defer q.wg.Done()

	if !q.waitForCopyPhase() {
		return
	}

	if !q.sleepOrCancel(verifyStartDelay) {
		return
	}

	q.mu.Lock()
	q.isVerifying = true
	q.mu.Unlock()

	lastCallback := time.Time{}

	for _, task := range q.orderedTasks {
		if q.ctx.Err() != nil {
			break
		}

		q.mu.Lock()
		_, alreadyFailed := q.copyFailed[task.RelativePath]
		q.mu.Unlock()
		if alreadyFailed {
			continue
		}

		destPath := q.resolveDestPath(task.RelativePath)
		start := time.Now()

		var failure, actualDigest string
		if _, err := os.Stat(destPath); err != nil {
			failure = "File missing after copy"
		} else {
			digest, err := checksum.File(q.ctx, destPath)
			actualDigest = digest
			switch {
			case err != nil:
				failure = err.Error()
			case digest != task.Checksum:
				failure = "Checksum mismatch"
			}
		}
		elapsed := time.Since(start)

		q.emitVerify(task, elapsed, failure, actualDigest)

		q.mu.Lock()
		if failure == "" {
			q.verified++
		} else {
			q.failed = append(q.failed, FailedFile{RelativePath: task.RelativePath, Error: failure})
		}
		verified := q.verified
		due := time.Since(lastCallback) >= time.Second/progressCallbackRate
		if due {
			lastCallback = time.Now()
		}
		q.mu.Unlock()

		if due {
			q.fireVerify(verified)
		}
	}

	q.mu.Lock()
	q.isVerifying = false
	verified := q.verified
	q.mu.Unlock()

	// Mandatory final flush, regardless of throttling.
	q.fireVerify(verified)
}

// waitForCopyPhase polls until every task has reached a terminal copy
// outcome (success, skip, or permanent failure) or the run is
// cancelled. It returns false if cancelled before that point.
func (q *Queue) waitForCopyPhase() bool {
	ticker := time.NewTicker(verifyPollInterval)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		done := q.completed >= q.total
		q.mu.Unlock()

		if done {
			return true
		}

		select {
		case <-q.ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// sleepOrCancel sleeps for d, returning false early if the context is
// cancelled first.
func (q *Queue) sleepOrCancel(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-q.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// emitVerify records a per-file verification outcome: success carries the
// time spent re-checksumming, mismatch and missing-file failures carry the
// actual digest found (when one could be computed) alongside the expected
// one in Checksum.
func (q *Queue) emitVerify(task *queue.Task, elapsed time.Duration, failure, actualDigest string) {
	sev := eventlog.SeverityInfo
	if failure != "" {
		sev = eventlog.SeverityError
	}

	var metadata map[string]string
	if actualDigest != "" && actualDigest != task.Checksum {
		metadata = map[string]string{"actual_checksum": actualDigest}
	}

	q.sink.Emit(eventlog.Event{
		SessionID:       q.sessionID,
		Timestamp:       time.Now(),
		Type:            eventlog.TypeVerify,
		Severity:        sev,
		SourcePath:      task.SourcePath,
		DestinationPath: q.resolveDestPath(task.RelativePath),
		FileSize:        task.Size,
		Checksum:        task.Checksum,
		Duration:        elapsed,
		Error:           failure,
		Metadata:        metadata,
	})
}

func (q *Queue) fireVerify(verified int) {
	q.cbMu.Lock()
	cb := q.verifyCB
	q.cbMu.Unlock()
	if cb != nil {
		cb(verified)
	}
}
