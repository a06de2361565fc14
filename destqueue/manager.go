package destqueue

import (
	"time"

	"github.com/kmichels/imageintactcore/throughput"
)

// workerCountManagerLoop adjusts the worker target every 5 seconds,
// per spec §4.6: refuse to grow under memory pressure, otherwise follow
// the throughput monitor's recommendation within [minWorkers,
// maxWorkers]. Workers above target drain themselves naturally at
// their next loop iteration; workers below target are spawned here.
func (q *Queue) workerCountManagerLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(managerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if q.sampler.OverLimit(maxResidentMemoryMB) {
				continue
			}

			target := int(q.targetWorkers.Load())

			switch q.monitor.Recommend() {
			case throughput.Increase:
				target++
			case throughput.Decrease:
				target--
			}

			if target < minWorkers {
				target = minWorkers
			}
			if target > maxWorkers {
				target = maxWorkers
			}

			q.targetWorkers.Store(int32(target))

			for int(q.activeWorkers.Load()) < target {
				q.spawnWorker()
			}
		}
	}
}
