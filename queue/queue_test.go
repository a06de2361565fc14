package queue_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/manifest"
	"github.com/kmichels/imageintactcore/queue"
)

func newTask(id string, size int64, pri queue.Priority, insertedAt time.Time) *queue.Task {
	t := queue.NewTask(id, manifest.Entry{SourcePath: id, RelativePath: id, Size: size}, pri)
	t.InsertedAt = insertedAt

	return t
}

func TestQueue_HigherPriorityDequeuedFirst(t *testing.T) {
	q := queue.New()
	now := time.Now()

	low := newTask("low", 1024, queue.Low, now)
	critical := newTask("critical", 1024, queue.Critical, now)

	q.EnqueueMultiple([]*queue.Task{low, critical})

	require.Equal(t, "critical", q.Dequeue().ID)
	require.Equal(t, "low", q.Dequeue().ID)
}

func TestQueue_TiesBrokenByInsertionOrder(t *testing.T) {
	q := queue.New()
	now := time.Now()

	first := newTask("first", 1024, queue.Normal, now)
	second := newTask("second", 1024, queue.Normal, now.Add(time.Second))

	// Insert in reverse order; the earlier InsertedAt should still win.
	q.Enqueue(second)
	q.Enqueue(first)

	require.Equal(t, "first", q.Dequeue().ID)
	require.Equal(t, "second", q.Dequeue().ID)
}

func TestQueue_FailingTaskDeprioritizedButNotStarved(t *testing.T) {
	q := queue.New()
	now := time.Now()

	fresh := newTask("fresh", 1024, queue.Normal, now)
	retried := newTask("retried", 1024, queue.Normal, now)
	retried.Attempts = 1

	q.EnqueueMultiple([]*queue.Task{fresh, retried})

	// A single failed attempt (-500) should not be enough to starve a
	// task forever: it must still be present and eventually dequeued.
	require.Equal(t, "fresh", q.Dequeue().ID)
	require.Equal(t, "retried", q.Dequeue().ID)
}

func TestQueue_RandomInsertionOrderIsScoreConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		q := queue.New()
		now := time.Now().Add(-time.Hour)

		var tasks []*queue.Task

		for i := 0; i < 30; i++ {
			pri := queue.Priority(rng.Intn(4) + 1)
			size := int64(rng.Intn(200) + 1) * 1024 * 1024
			insertedAt := now.Add(time.Duration(rng.Intn(3600)) * time.Second)

			tasks = append(tasks, newTask(randID(rng, i), size, pri, insertedAt))
		}

		shuffled := make([]*queue.Task, len(tasks))
		copy(shuffled, tasks)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		q.EnqueueMultiple(shuffled)

		require.Equal(t, len(tasks), q.Count())

		var dequeued []*queue.Task
		for q.Count() > 0 {
			dequeued = append(dequeued, q.Dequeue())
		}

		require.Len(t, dequeued, len(tasks))
		require.True(t, sortedByPriorityDescending(dequeued), "dequeue order should be non-increasing in priority")
	}
}

func sortedByPriorityDescending(tasks []*queue.Task) bool {
	for i := 1; i < len(tasks); i++ {
		if tasks[i].Priority > tasks[i-1].Priority {
			return false
		}
	}

	return true
}

func randID(rng *rand.Rand, i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(letters[rng.Intn(len(letters))])
}
