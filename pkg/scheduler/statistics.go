package scheduler

import (
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"
)

//Statistics aggregates scheduler counters and timing distributions.
//Counters are independently atomic; a snapshot is therefore coherent
//per field but not transactional across fields.
type Statistics struct {
	submitted *atomic.Uint64
	completed *atomic.Uint64
	failed    *atomic.Uint64
	cancelled *atomic.Uint64
	timedOut  *atomic.Uint64
	retried   *atomic.Uint64

	//instrumentsLock guards the replaceable timing instruments below
	instrumentsLock sync.RWMutex
	execution       metrics.Timer
	waiting         metrics.Timer
	throughput      metrics.Meter
}

func NewStatistics() *Statistics {
	return &Statistics{
		submitted:  atomic.NewUint64(0),
		completed:  atomic.NewUint64(0),
		failed:     atomic.NewUint64(0),
		cancelled:  atomic.NewUint64(0),
		timedOut:   atomic.NewUint64(0),
		retried:    atomic.NewUint64(0),
		execution:  metrics.NewTimer(),
		waiting:    metrics.NewTimer(),
		throughput: metrics.NewMeter(),
	}
}

func (s *Statistics) taskSubmitted() {
	s.submitted.Inc()
}

func (s *Statistics) taskCompleted(execution, waiting time.Duration) {
	s.completed.Inc()
	s.instrumentsLock.RLock()
	defer s.instrumentsLock.RUnlock()
	s.execution.Update(execution)
	s.waiting.Update(waiting)
	s.throughput.Mark(1)
}

func (s *Statistics) taskFailed() {
	s.failed.Inc()
}

func (s *Statistics) taskCancelled() {
	s.cancelled.Inc()
}

func (s *Statistics) taskTimedOut() {
	s.timedOut.Inc()
}

func (s *Statistics) taskRetried() {
	s.retried.Inc()
}

//Reset zeroes the counters and replaces the timing instruments.
func (s *Statistics) Reset() {
	s.submitted.Store(0)
	s.completed.Store(0)
	s.failed.Store(0)
	s.cancelled.Store(0)
	s.timedOut.Store(0)
	s.retried.Store(0)
	s.instrumentsLock.Lock()
	defer s.instrumentsLock.Unlock()
	s.execution.Stop()
	s.waiting.Stop()
	s.throughput.Stop()
	s.execution = metrics.NewTimer()
	s.waiting = metrics.NewTimer()
	s.throughput = metrics.NewMeter()
}

//Snapshot is a point-in-time copy of the scheduler statistics.
type Snapshot struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Cancelled uint64
	TimedOut  uint64
	Retried   uint64

	AvgExecution     time.Duration
	AvgWaiting       time.Duration
	ThroughputPerSec float64
}

func (s *Statistics) Snapshot() Snapshot {
	s.instrumentsLock.RLock()
	defer s.instrumentsLock.RUnlock()
	return Snapshot{
		Submitted:        s.submitted.Load(),
		Completed:        s.completed.Load(),
		Failed:           s.failed.Load(),
		Cancelled:        s.cancelled.Load(),
		TimedOut:         s.timedOut.Load(),
		Retried:          s.retried.Load(),
		AvgExecution:     time.Duration(s.execution.Mean()),
		AvgWaiting:       time.Duration(s.waiting.Mean()),
		ThroughputPerSec: s.throughput.Rate1(),
	}
}
