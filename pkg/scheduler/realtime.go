package scheduler

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

//dispatch latency histogram bounds, microseconds
const (
	latencyMinMicros = 1
	latencyMaxMicros = 60 * 1000 * 1000
	latencySigFigs   = 3
)

//RealTimeScheduler is a TaskScheduler tuned for latency-sensitive work.
//Preemption here means head-of-queue reordering only: an urgent task
//overtakes everything still queued but a task that already started is
//never interrupted. Queue-to-worker dispatch latency is recorded per
//task and checked against the configured budget.
type RealTimeScheduler struct {
	*TaskScheduler

	maxLatency time.Duration
	preemption bool

	histLock sync.Mutex
	hist     *hdrhistogram.Histogram
}

//NewRealTimeScheduler creates a scheduler with a dispatch latency budget.
//preemption selects priority ordering; without it the queue stays FIFO
//and urgency only shows up in the recorded latencies.
func NewRealTimeScheduler(maxLatency time.Duration, preemption bool, log logger.Logger) *RealTimeScheduler {
	conf := radar.NewDefaultSchedulerConfig()
	if preemption {
		conf.SchedulingPolicy = radar.SchedulingPriority
	}

	rt := &RealTimeScheduler{
		TaskScheduler: NewTaskScheduler(conf, log),
		maxLatency:    maxLatency,
		preemption:    preemption,
		hist:          hdrhistogram.New(latencyMinMicros, latencyMaxMicros, latencySigFigs),
	}
	rt.TaskScheduler.onDispatch = rt.recordDispatch
	return rt
}

func (rt *RealTimeScheduler) recordDispatch(latency time.Duration) {
	rt.histLock.Lock()
	if err := rt.hist.RecordValue(latency.Microseconds()); err != nil {
		//out of histogram range, clamp to the maximum trackable value
		_ = rt.hist.RecordValue(latencyMaxMicros)
	}
	rt.histLock.Unlock()

	if rt.maxLatency > 0 && latency > rt.maxLatency {
		rt.log.Warnf("dispatch latency %s exceeded budget %s", latency, rt.maxLatency)
	}
}

//MaxLatency returns the configured dispatch budget.
func (rt *RealTimeScheduler) MaxLatency() time.Duration {
	return rt.maxLatency
}

//PreemptionEnabled reports whether queued tasks are priority ordered.
func (rt *RealTimeScheduler) PreemptionEnabled() bool {
	return rt.preemption
}

//LatencyReport summarizes the observed dispatch latencies.
type LatencyReport struct {
	Samples int64
	Mean    time.Duration
	P50     time.Duration
	P99     time.Duration
	Max     time.Duration
}

//LatencyStats snapshots the dispatch latency histogram.
func (rt *RealTimeScheduler) LatencyStats() LatencyReport {
	rt.histLock.Lock()
	defer rt.histLock.Unlock()

	return LatencyReport{
		Samples: rt.hist.TotalCount(),
		Mean:    time.Duration(rt.hist.Mean()) * time.Microsecond,
		P50:     time.Duration(rt.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:     time.Duration(rt.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:     time.Duration(rt.hist.Max()) * time.Microsecond,
	}
}

//ResetLatencyStats clears the histogram.
func (rt *RealTimeScheduler) ResetLatencyStats() {
	rt.histLock.Lock()
	defer rt.histLock.Unlock()
	rt.hist.Reset()
}
