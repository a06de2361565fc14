package backup

import "github.com/kmichels/imageintactcore/queue"

const (
	highPriorityMaxBytes   = 10 * 1024 * 1024
	normalPriorityMaxBytes = 100 * 1024 * 1024
)

// priorityFor assigns a task priority from file size, per spec §4.8: small
// files stay high priority so interactive feedback (visible progress on
// a run with many small files) survives alongside a handful of huge
// ones queued at low priority.
func priorityFor(size int64) queue.Priority {
	switch {
	case size < highPriorityMaxBytes:
		return queue.High
	case size < normalPriorityMaxBytes:
		return queue.Normal
	default:
		return queue.Low
	}
}
