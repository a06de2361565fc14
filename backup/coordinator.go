package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/destqueue"
	"github.com/kmichels/imageintactcore/eventlog"
	"github.com/kmichels/imageintactcore/internal/logging"
	"github.com/kmichels/imageintactcore/internal/runname"
	"github.com/kmichels/imageintactcore/manifest"
	"github.com/kmichels/imageintactcore/queue"
	"github.com/kmichels/imageintactcore/sleepguard"
	"github.com/kmichels/imageintactcore/stats"
)

const (
	monitorInterval = 250 * time.Millisecond
	pollInterval    = 100 * time.Millisecond
)

// Coordinator is the single cross-queue write target described in
// spec §5: every destination queue reports progress through callbacks
// that funnel into the coordinator's status map under mu, which is the
// "single serialized section" the spec requires instead of letting N
// queues race on shared state.
type Coordinator struct {
	cfg       config.Config
	sink      eventlog.Sink
	log       *logging.Logger
	inhibitor sleepguard.Inhibitor

	mu          sync.Mutex
	isRunning   bool
	status      map[string]DestinationStatus
	failures    []CollectedFailure
	lastResult  Result
	cancelFn    context.CancelFunc
	releaseFn   func()
	destBytes   int64
	statsAgg    *stats.Aggregator
	doneCh      chan struct{}
}

// New builds a Coordinator. sink and log may be nil/zero; a nil sink
// discards events and a nil log gets an unscoped default logger.
func New(cfg config.Config, sink eventlog.Sink, log *logging.Logger) *Coordinator {
	if sink == nil {
		sink = eventlog.Discard
	}
	if log == nil {
		log = logging.Module("backup")
	}

	var inh sleepguard.Inhibitor = sleepguard.Noop{}
	if cfg.PreventSleepDuringBackup {
		inh = sleepguard.Default()
	}

	return &Coordinator{
		cfg:       cfg,
		sink:      sink,
		log:       log,
		inhibitor: inh,
		status:    make(map[string]DestinationStatus),
	}
}

// IsRunning reports whether a backup is currently in progress.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// Done returns a channel that's closed once finalize_backup has run for
// the current (or most recently started) backup.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doneCh
}

// Status returns the coordinator's current aggregated view. Once a
// backup finishes, its working state is cleared and this returns an
// empty view; the final snapshot is available from Result.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	byDest := make(map[string]DestinationStatus, len(c.status))
	var bytesCopied, progress float64
	var destinationCount int
	failures := append([]CollectedFailure(nil), c.failures...)

	for name, s := range c.status {
		byDest[name] = s
		for _, f := range s.Failed {
			failures = append(failures, CollectedFailure{Destination: name, RelativePath: f.RelativePath, Error: f.Error})
		}
		bytesCopied += float64(s.BytesTransferred)
		if s.Total > 0 {
			progress += float64(s.Copied+s.Verified) / float64(s.Total*2)
		}
		destinationCount++
	}

	overall := 0.0
	if destinationCount > 0 {
		overall = progress / float64(destinationCount)
	}
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}

	return Status{
		IsRunning:         c.isRunning,
		OverallProgress:   overall,
		TotalBytesToCopy:  c.destBytes,
		TotalBytesCopied:  int64(bytesCopied),
		ByDestination:     byDest,
		CollectedFailures: failures,
	}
}

// Result returns the outcome of the most recently finished backup. Its
// zero value means no backup has finished yet.
func (c *Coordinator) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// StartBackup builds a manifest from sourceRoot and copies it to every
// destination concurrently. Re-entry while a backup is already running
// is a no-op, per spec §4.8's precondition. It returns once every queue
// has been started; callers wanting to block until the run finishes
// should wait on Done().
func (c *Coordinator) StartBackup(ctx context.Context, sourceRoot string, destinations []Destination) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.status = make(map[string]DestinationStatus, len(destinations))
	c.failures = nil
	c.lastResult = Result{}
	c.doneCh = make(chan struct{})
	c.statsAgg = stats.New()
	agg := c.statsAgg
	c.mu.Unlock()

	sessionID, runName := runname.New()
	log := c.log.WithSession(sessionID, runName)

	m, err := manifest.Build(ctx, sourceRoot, c.cfg, func(path string, err error) {
		log.Warnw("checksum failed during manifest build", "path", path, "error", err)
	}, func(reason stats.ExclusionReason) {
		c.mu.Lock()
		agg.RecordExclusion(reason)
		c.mu.Unlock()
	})
	if err != nil {
		c.abortStart()
		return err
	}

	c.sink.Emit(eventlog.Event{
		SessionID: sessionID,
		Timestamp: time.Now(),
		Type:      eventlog.TypeManifest,
		Severity:  eventlog.SeverityInfo,
		Metadata:  map[string]string{"file_count": fmt.Sprint(len(m)), "total_bytes": fmt.Sprint(m.TotalBytes())},
	})

	c.sink.Emit(eventlog.Event{
		SessionID:  sessionID,
		Timestamp:  time.Now(),
		Type:       eventlog.TypeSession,
		Severity:   eventlog.SeverityInfo,
		SourcePath: sourceRoot,
		Metadata:   map[string]string{"event": "session_start", "file_count": fmt.Sprint(len(m)), "total_bytes": fmt.Sprint(m.TotalBytes())},
	})

	var release func()
	if c.cfg.PreventSleepDuringBackup {
		release, err = c.inhibitor.Inhibit(ctx, "backup running")
		if err != nil {
			log.Warnw("sleep inhibition failed, continuing without it", "error", err)
			release = func() {}
		}
	} else {
		release = func() {}
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancelFn = cancel
	c.releaseFn = release
	c.destBytes = m.TotalBytes() * int64(len(destinations))
	c.mu.Unlock()

	queues := make(map[string]*destqueue.Queue, len(destinations))

	for _, dest := range destinations {
		tasks := make([]*queue.Task, 0, len(m))
		for i, entry := range m {
			tasks = append(tasks, queue.NewTask(fmt.Sprintf("%s#%d", dest.Name, i), entry, priorityFor(entry.Size)))
		}

		q := destqueue.New(dest.Name, dest.Root, sessionID, tasks, c.cfg, c.sink, log)

		name := dest.Name
		q.SetProgressCallback(func(s destqueue.State) {
			c.applyDestinationState(name, s)
		})
		q.SetVerifyCallback(func(verified int) {
			c.applyVerifiedCount(name, verified)
		})
		q.SetStatsCallback(func(kind destqueue.OutcomeKind, t classify.FileType, size int64, speedBps float64) {
			c.recordStat(name, kind, t, size, speedBps)
		})

		c.mu.Lock()
		c.status[dest.Name] = DestinationStatus{Destination: dest.Name, State: destqueue.State{Total: len(tasks)}}
		c.mu.Unlock()

		queues[dest.Name] = q
	}

	var wg sync.WaitGroup
	for name, q := range queues {
		if err := q.Start(runCtx); err != nil {
			log.Errorw("destination queue failed to start", "destination", name, "error", err)
			continue
		}

		wg.Add(1)
		go c.runQueue(runCtx, &wg, q)
	}

	go c.monitorLoop(runCtx, queues, &wg, sessionID)

	return nil
}

func (c *Coordinator) abortStart() {
	c.mu.Lock()
	c.isRunning = false
	close(c.doneCh)
	c.mu.Unlock()
}

// runQueue polls one destination queue to completion, calling stop()
// if cancellation is observed first, per spec §4.8's per-queue task.
func (c *Coordinator) runQueue(ctx context.Context, wg *sync.WaitGroup, q *destqueue.Queue) {
	defer wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if q.IsComplete() {
			return
		}

		select {
		case <-ctx.Done():
			q.Stop()
			return
		case <-ticker.C:
		}
	}
}

// monitorLoop rebuilds the aggregated status every 250ms until every
// queue has finished (or been cancelled), then runs finalize.
func (c *Coordinator) monitorLoop(ctx context.Context, queues map[string]*destqueue.Queue, wg *sync.WaitGroup, sessionID string) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	for {
		select {
		case <-allDone:
			c.finalize(queues, ctx.Err() != nil, sessionID)
			return
		case <-ticker.C:
			for name, q := range queues {
				c.applyDestinationState(name, q.Status())
			}
		}
	}
}

func (c *Coordinator) applyDestinationState(name string, s destqueue.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[name] = DestinationStatus{Destination: name, State: s}
}

func (c *Coordinator) applyVerifiedCount(name string, verified int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.status[name]
	cur.Verified = verified
	c.status[name] = cur
}

// recordStat feeds one resolved file outcome into the run's Aggregator.
// Every destqueue worker across every destination funnels through here,
// serialized behind mu just like the status map itself.
func (c *Coordinator) recordStat(destination string, kind destqueue.OutcomeKind, t classify.FileType, size int64, speedBps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.statsAgg == nil {
		return
	}

	switch kind {
	case destqueue.OutcomeSuccess:
		c.statsAgg.RecordSuccess(destination, t, size, speedBps)
	case destqueue.OutcomeSkipped:
		c.statsAgg.RecordSkip(destination, t, size)
	case destqueue.OutcomeFailed:
		c.statsAgg.RecordFailure(destination, t, size)
	}
}

// finalize implements finalize_backup: collect failures, compose the
// final status string, tear down every queue in parallel, and clear
// working state so a finished run doesn't pin memory for a manifest
// that's no longer needed.
func (c *Coordinator) finalize(queues map[string]*destqueue.Queue, cancelled bool, sessionID string) {
	c.mu.Lock()
	byDest := make(map[string]DestinationStatus, len(queues))
	for name, s := range c.status {
		byDest[name] = s
	}
	c.mu.Unlock()

	var collected []CollectedFailure
	for name, q := range queues {
		s := q.Status()
		byDest[name] = DestinationStatus{Destination: name, State: s}
		for _, f := range s.Failed {
			collected = append(collected, CollectedFailure{Destination: name, RelativePath: f.RelativePath, Error: f.Error})
		}
	}

	var stopGroup errgroup.Group
	for _, q := range queues {
		q := q
		stopGroup.Go(func() error {
			return q.Stop()
		})
	}
	if err := stopGroup.Wait(); err != nil {
		c.log.Warnw("destination queue stop returned an error", "error", err)
	}

	c.mu.Lock()
	if c.releaseFn != nil {
		c.releaseFn()
	}
	message := composeFinalMessage(byDest, collected, cancelled)

	if c.statsAgg != nil {
		c.statsAgg.Finish()
	}

	c.sink.Emit(eventlog.Event{
		SessionID: sessionID,
		Timestamp: time.Now(),
		Type:      eventlog.TypeSession,
		Severity:  eventlog.SeverityInfo,
		Metadata:  map[string]string{"event": "session_complete", "status": message},
	})

	c.lastResult = Result{
		FinalMessage:      message,
		CollectedFailures: collected,
		ByDestination:     byDest,
		Cancelled:         cancelled,
		Stats:             c.statsAgg,
	}

	c.isRunning = false
	c.status = make(map[string]DestinationStatus)
	c.failures = nil
	c.destBytes = 0
	c.statsAgg = nil
	close(c.doneCh)
	c.mu.Unlock()
}

func composeFinalMessage(byDest map[string]DestinationStatus, failures []CollectedFailure, cancelled bool) string {
	if cancelled {
		return fmt.Sprintf("backup cancelled: %d failure(s) across %d destination(s)", len(failures), len(byDest))
	}
	if len(failures) == 0 {
		return fmt.Sprintf("backup complete: %d destination(s), no failures", len(byDest))
	}
	return fmt.Sprintf("backup complete with %d failure(s) across %d destination(s)", len(failures), len(byDest))
}

// CancelBackup raises the coordinator's cancel flag. It is idempotent:
// calling it again before cleanup finishes, or when no backup is
// running, is a no-op.
func (c *Coordinator) CancelBackup() {
	c.mu.Lock()
	cancel := c.cancelFn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
