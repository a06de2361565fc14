package destqueue

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kmichels/imageintactcore/batch"
	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/destlock"
	"github.com/kmichels/imageintactcore/eventlog"
	"github.com/kmichels/imageintactcore/internal/logging"
	"github.com/kmichels/imageintactcore/internal/memguard"
	"github.com/kmichels/imageintactcore/queue"
	"github.com/kmichels/imageintactcore/throughput"
)

// Worker-count bounds and the verification delay, fixed per spec §4.6.
const (
	minWorkers           = 1
	maxWorkers           = 4
	initialWorkers       = 2
	maxResidentMemoryMB  = 750
	managerInterval      = 5 * time.Second
	verifyStartDelay     = 200 * time.Millisecond
	progressCallbackRate = 10 // per second
	drainPollInterval    = 10 * time.Millisecond
	verifyPollInterval   = 50 * time.Millisecond
)

// Queue is the per-destination actor described in spec §4.6: it owns
// the priority queue, the throughput monitor, the worker pool, and the
// counters and failed-file list that make up a destination's progress.
//
// All mutable state lives behind mu. Worker goroutines never touch it
// directly; they report outcomes through applyOutcome, which is the
// single serialization point for counters, the failed list, and queue
// re-enqueueing alike. This mirrors the teacher's block manager, which
// also serializes concurrent writers behind one mutex rather than a
// channel mailbox.
type Queue struct {
	name      string
	destRoot  string
	cfg       config.Config
	sessionID string
	sink      eventlog.Sink
	log       *logging.Logger

	pq        *queue.Queue
	processor *batch.Processor
	monitor   *throughput.Monitor
	sampler   *memguard.Sampler

	orderedTasks []*queue.Task

	ctx    context.Context
	cancel context.CancelFunc
	lock   *destlock.Lock

	activeWorkers atomic.Int32
	targetWorkers atomic.Int32
	inFlight      atomic.Int32

	wg sync.WaitGroup

	mu               sync.Mutex
	total            int
	completed        int
	verified         int
	bytesTransferred int64
	bytesTotal       int64
	isVerifying      bool
	failed           []FailedFile
	copyFailed       map[string]struct{}
	lastCallbackAt   time.Time

	cbMu       sync.Mutex
	progressCB func(State)
	verifyCB   func(verified int)
	statsCB    func(kind OutcomeKind, t classify.FileType, size int64, speedBps float64)
}

// New builds a destination queue for destRoot, ready to process tasks.
// Tasks should already carry priorities assigned by the coordinator.
func New(name, destRoot, sessionID string, tasks []*queue.Task, cfg config.Config, sink eventlog.Sink, log *logging.Logger) *Queue {
	if sink == nil {
		sink = eventlog.Discard
	}
	q := &Queue{
		name:         name,
		destRoot:     destRoot,
		cfg:          cfg,
		sessionID:    sessionID,
		sink:         sink,
		log:          log.WithDestination(name),
		pq:           queue.New(),
		processor:    batch.NewProcessor(),
		monitor:      throughput.New(),
		sampler:      &memguard.Sampler{},
		orderedTasks: append([]*queue.Task(nil), tasks...),
	}
	q.copyFailed = make(map[string]struct{})
	q.pq.EnqueueMultiple(tasks)
	q.total = len(tasks)
	for _, t := range tasks {
		q.bytesTotal += t.Size
	}
	return q
}

// SetProgressCallback registers the progress callback. It must be
// called before Start; the callback fires at most 10 times per second,
// with a mandatory final flush when the last file completes.
func (q *Queue) SetProgressCallback(f func(State)) {
	q.cbMu.Lock()
	q.progressCB = f
	q.cbMu.Unlock()
}

// SetVerifyCallback registers the verification-progress callback.
func (q *Queue) SetVerifyCallback(f func(verified int)) {
	q.cbMu.Lock()
	q.verifyCB = f
	q.cbMu.Unlock()
}

// SetStatsCallback registers a callback fired once per resolved file
// outcome (success, skip, or permanent failure), letting a caller feed
// a stats.Aggregator without this package needing to know it exists.
func (q *Queue) SetStatsCallback(f func(kind OutcomeKind, t classify.FileType, size int64, speedBps float64)) {
	q.cbMu.Lock()
	q.statsCB = f
	q.cbMu.Unlock()
}

// Start refuses a tagged-source destination, acquires the destination
// lock, seeds the worker pool, and launches the worker-count manager
// and verification driver. The parent context bounds the whole run;
// cancelling it or calling Stop has the same effect.
func (q *Queue) Start(parent context.Context) error {
	if err := destlock.RefuseTaggedSource(q.destRoot); err != nil {
		return err
	}

	lock, err := destlock.Acquire(q.destRoot)
	if err != nil {
		return err
	}
	q.lock = lock

	q.ctx, q.cancel = context.WithCancel(parent)
	q.monitor.Start()
	q.targetWorkers.Store(initialWorkers)

	for i := 0; i < initialWorkers; i++ {
		q.spawnWorker()
	}

	q.wg.Add(2)
	go q.workerCountManagerLoop()
	go q.verifyLoop()

	return nil
}

// Stop raises the cancel flag, detaches callbacks, and releases the
// destination lock. It returns promptly; in-flight workers observe the
// cancellation at their next iteration boundary rather than being
// force-killed.
func (q *Queue) Stop() error {
	if q.cancel != nil {
		q.cancel()
	}
	q.cbMu.Lock()
	q.progressCB = nil
	q.verifyCB = nil
	q.statsCB = nil
	q.cbMu.Unlock()
	if q.lock != nil {
		return q.lock.Release()
	}
	return nil
}

// Status returns a snapshot of the destination's current progress.
func (q *Queue) Status() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() State {
	failed := append([]FailedFile(nil), q.failed...)
	s := State{
		Copied:           q.completed,
		Total:            q.total,
		Failed:           failed,
		BytesTransferred: q.bytesTransferred,
		BytesTotal:       q.bytesTotal,
		Verified:         q.verified,
		IsVerifying:      q.isVerifying,
		Speed:            throughput.FormatSpeed(q.monitor.CurrentSpeedBps()),
		ETA:              q.monitor.ETA(q.bytesTotal - q.bytesTransferred),
	}
	s.IsComplete = q.verified+len(q.failed) >= q.total && !q.isVerifying
	return s
}

// IsComplete reports whether verification has finished covering every
// task, per the completion predicate in spec §3.
func (q *Queue) IsComplete() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.verified+len(q.failed) >= q.total && !q.isVerifying
}

func (q *Queue) spawnWorker() {
	q.activeWorkers.Add(1)
	q.wg.Add(1)
	go q.workerLoop()
}

func (q *Queue) resolveDestPath(relativePath string) string {
	if cached, ok := q.processor.Paths().Get(relativePath); ok {
		return cached
	}
	joined := relativePath
	if q.cfg.OrganizationFolder != "" {
		joined = filepath.Join(q.cfg.OrganizationFolder, relativePath)
	}
	full := filepath.Join(q.destRoot, filepath.FromSlash(joined))
	q.processor.Paths().Put(relativePath, full)
	return full
}

// Wait blocks until every spawned goroutine (workers, the worker-count
// manager, the verification driver) has exited. Intended for tests and
// for the coordinator's teardown path after Stop has been called.
func (q *Queue) Wait() {
	q.wg.Wait()
}
