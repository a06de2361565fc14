// Package queue implements the per-destination priority queue: an
// ordered task container scored so interactive feedback (small files
// finishing quickly) survives alongside large transfers, and so a
// repeatedly failing task is deprioritized without ever starving.
package queue

import (
	"sync"
	"time"

	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/manifest"
)

// Priority is the ordered enum {Low < Normal < High < Critical} spec'd
// for task scheduling.
type Priority int

// The four priority levels, in increasing order.
const (
	Low Priority = iota + 1
	Normal
	High
	Critical
)

// Task is one unit of backup work derived from a manifest entry plus a
// priority. Only the owning queue mutates Attempts and LastError.
type Task struct {
	// ID is a stable identity for this task, unique within one backup run.
	ID string

	SourcePath   string
	RelativePath string
	Size         int64
	Checksum     string
	Type         classify.FileType
	Priority     Priority

	// InsertedAt is used both for age scoring and as the tie-breaker
	// between equally scored tasks.
	InsertedAt time.Time

	// Attempts is the number of copy attempts made so far; it never
	// decreases.
	Attempts int

	// LastError holds the most recent failure, if any.
	LastError error
}

// NewTask builds a Task from a manifest entry, priority, and a stable
// id (the coordinator assigns ids so they stay stable across retries
// and re-enqueues).
func NewTask(id string, e manifest.Entry, pri Priority) *Task {
	return &Task{
		ID:           id,
		SourcePath:   e.SourcePath,
		RelativePath: e.RelativePath,
		Size:         e.Size,
		Checksum:     e.Checksum,
		Type:         e.Type,
		Priority:     pri,
		InsertedAt:   time.Now(),
	}
}

// score implements spec §4.4's formula:
//
//	priority_rank*10000 + 1000/max(1,size_MB) + age_seconds - 500*attempt_count
func score(t *Task, now time.Time) float64 {
	sizeMB := float64(t.Size) / (1024 * 1024)
	if sizeMB < 1 {
		sizeMB = 1
	}

	ageSeconds := now.Sub(t.InsertedAt).Seconds()

	return float64(t.Priority)*10000 + 1000/sizeMB + ageSeconds - 500*float64(t.Attempts)
}

// Queue is a concurrency-safe, score-ordered container of *Task.
type Queue struct {
	mu    sync.Mutex
	tasks []*Task
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue adds a single task.
func (q *Queue) Enqueue(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = append(q.tasks, t)
}

// EnqueueMultiple adds every task in ts, preserving their relative
// insertion order for tie-breaking purposes.
func (q *Queue) EnqueueMultiple(ts []*Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = append(q.tasks, ts...)
}

// Dequeue removes and returns the highest-scoring task, or nil if the
// queue is empty. Ties are broken by earliest InsertedAt.
func (q *Queue) Dequeue() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}

	now := time.Now()

	bestIdx := 0
	bestScore := score(q.tasks[0], now)

	for i := 1; i < len(q.tasks); i++ {
		s := score(q.tasks[i], now)

		switch {
		case s > bestScore:
			bestIdx, bestScore = i, s
		case s == bestScore && q.tasks[i].InsertedAt.Before(q.tasks[bestIdx].InsertedAt):
			bestIdx = i
		}
	}

	t := q.tasks[bestIdx]
	q.tasks = append(q.tasks[:bestIdx], q.tasks[bestIdx+1:]...)

	return t
}

// Count returns the number of tasks currently queued.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Snapshot returns a copy of every task currently queued, for
// verification or inspection. Mutating the returned slice's Task
// pointers still mutates the queue's own tasks; callers that need
// isolation should treat these as read-only.
func (q *Queue) Snapshot() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Task, len(q.tasks))
	copy(out, q.tasks)

	return out
}
