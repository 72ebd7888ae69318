package scheduler

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//TaskState tracks a task through its lifetime.
//Pending is the only state tasks can be stolen from: execution,
//cancellation and timeout all race for it with a single CAS, so a task
//never runs after losing that race.
type TaskState int32

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
	TaskCancelled
	TaskTimedOut
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "PENDING"
	case TaskRunning:
		return "RUNNING"
	case TaskCompleted:
		return "COMPLETED"
	case TaskFailed:
		return "FAILED"
	case TaskCancelled:
		return "CANCELLED"
	case TaskTimedOut:
		return "TIMEOUT"
	}
	return "UNKNOWN"
}

//Terminal reports whether no further state change is possible.
func (s TaskState) Terminal() bool {
	return s != TaskPending && s != TaskRunning
}

//taskID is the process-wide task id source.
var taskID = atomic.NewUint64(0)

//TaskFunc is the unit of work a task wraps.
type TaskFunc func() error

//ScheduledTask is one queued unit of work with its execution metadata.
//The wrapped function runs at most once regardless of how many workers,
//cancellers and reapers race for the task.
type ScheduledTask struct {
	id       uint64
	name     string
	priority radar.PacketPriority
	timeout  time.Duration

	fn      TaskFunc
	resolve func(err error)

	state         *atomic.Int32
	retries       *atomic.Int32
	submittedAt   time.Time
	startedNanos  *atomic.Int64
	finishedNanos *atomic.Int64
}

func newScheduledTask(name string, priority radar.PacketPriority, timeout time.Duration, fn TaskFunc, resolve func(error)) *ScheduledTask {
	id := taskID.Inc()
	if name == "" {
		name = fmt.Sprintf("task-%d", id)
	}
	if resolve == nil {
		resolve = func(error) {}
	}
	return &ScheduledTask{
		id:            id,
		name:          name,
		priority:      priority,
		timeout:       timeout,
		fn:            fn,
		resolve:       resolve,
		state:         atomic.NewInt32(int32(TaskPending)),
		retries:       atomic.NewInt32(0),
		submittedAt:   time.Now(),
		startedNanos:  atomic.NewInt64(0),
		finishedNanos: atomic.NewInt64(0),
	}
}

func (t *ScheduledTask) ID() uint64 {
	return t.id
}

func (t *ScheduledTask) Name() string {
	return t.name
}

func (t *ScheduledTask) Priority() radar.PacketPriority {
	return t.priority
}

func (t *ScheduledTask) State() TaskState {
	return TaskState(t.state.Load())
}

//Execute claims the task and runs its function.
//Returns (nil, false) without running when the claim is lost. A non-nil
//error leaves the task in Running so the scheduler can decide between a
//retry and the Failed terminal.
func (t *ScheduledTask) Execute() (err error, ran bool) {
	if !t.state.CAS(int32(TaskPending), int32(TaskRunning)) {
		return nil, false
	}
	t.startedNanos.Store(time.Now().UnixNano())
	err = t.runConfined()
	t.finishedNanos.Store(time.Now().UnixNano())
	if err != nil {
		return err, true
	}
	t.state.Store(int32(TaskCompleted))
	t.resolve(nil)
	return nil, true
}

//runConfined converts a panic in the task function into an error so a
//broken task cannot take a worker down.
func (t *ScheduledTask) runConfined() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v: %w", t.name, rec, radar.ErrTaskFailed)
		}
	}()
	return t.fn()
}

//Cancel moves a still-pending task to Cancelled.
//Running and terminal tasks are left alone.
func (t *ScheduledTask) Cancel() bool {
	if !t.state.CAS(int32(TaskPending), int32(TaskCancelled)) {
		return false
	}
	t.resolve(radar.ErrCancelled)
	return true
}

//markTimedOut moves a still-pending task to TimedOut.
func (t *ScheduledTask) markTimedOut() bool {
	if !t.state.CAS(int32(TaskPending), int32(TaskTimedOut)) {
		return false
	}
	t.resolve(fmt.Errorf("task %s: %w", t.name, radar.ErrTimeout))
	return true
}

//fail moves a task that exhausted its retries to Failed.
func (t *ScheduledTask) fail(cause error) {
	t.state.Store(int32(TaskFailed))
	t.resolve(fmt.Errorf("task %s: %v: %w", t.name, cause, radar.ErrTaskFailed))
}

//reschedule puts a failed attempt back into Pending for a retry.
func (t *ScheduledTask) reschedule() {
	t.retries.Inc()
	t.state.Store(int32(TaskPending))
}

//expired reports whether the task overstayed its pending timeout.
func (t *ScheduledTask) expired(now time.Time) bool {
	if t.timeout <= 0 {
		return false
	}
	return t.State() == TaskPending && now.Sub(t.submittedAt) > t.timeout
}

//WaitingDuration is the time between submission and execution start.
func (t *ScheduledTask) WaitingDuration() time.Duration {
	started := t.startedNanos.Load()
	if started == 0 {
		return time.Since(t.submittedAt)
	}
	return time.Unix(0, started).Sub(t.submittedAt)
}

//ExecutionDuration is the wall time the task function ran for.
func (t *ScheduledTask) ExecutionDuration() time.Duration {
	started := t.startedNanos.Load()
	finished := t.finishedNanos.Load()
	if started == 0 || finished == 0 {
		return 0
	}
	return time.Duration(finished - started)
}
