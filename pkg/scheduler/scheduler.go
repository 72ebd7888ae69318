package scheduler

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/queue"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

const (
	//dequeueInterval bounds how long a worker sleeps on an empty queue
	//so it notices shouldStop promptly
	dequeueInterval = 100 * time.Millisecond
	//throttleBackoff is slept after a re-enqueue under the concurrency cap
	throttleBackoff = time.Millisecond
	//reaperInterval is the pending-timeout sweep period
	reaperInterval = 50 * time.Millisecond
	//terminalRetention is how long finished tasks stay queryable by id
	terminalRetention = 30 * time.Second
)

//TaskCompleteCallback fires after a task reaches a terminal state.
type TaskCompleteCallback func(task *ScheduledTask)

//SubmitOptions tune a single submission.
type SubmitOptions struct {
	Name     string
	Priority radar.PacketPriority
	Timeout  time.Duration
}

//SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	State        radar.ModuleState
	QueueLen     int
	QueueCap     int
	Workers      int
	RunningTasks int32
}

//TaskScheduler runs submitted tasks on a pool of worker goroutines over
//one bounded task queue. Ordering follows the configured policy; a
//worker never abandons a claimed task, so shutdown waits for running
//work to finish while pending work is resolved with a shutdown fault.
type TaskScheduler struct {
	*lifecycle.StateMachine
	log logger.Logger

	confLock sync.Mutex
	conf     radar.SchedulerConfig

	tasksQueue *queue.Bounded[*ScheduledTask]
	tasks      sync.Map // task id -> *ScheduledTask
	stats      *Statistics

	shouldStop *atomic.Bool
	running    *atomic.Int32
	workersWg  sync.WaitGroup

	onComplete atomic.Value // TaskCompleteCallback
	//onDispatch observes queue-to-worker latency, set by the realtime variant
	onDispatch func(latency time.Duration)
}

//NewTaskScheduler creates a scheduler with the supplied configuration.
func NewTaskScheduler(conf radar.SchedulerConfig, log logger.Logger) *TaskScheduler {
	s := &TaskScheduler{
		StateMachine: lifecycle.NewStateMachine("scheduler", log),
		log:          log,
		conf:         conf,
		stats:        NewStatistics(),
		shouldStop:   atomic.NewBool(false),
		running:      atomic.NewInt32(0),
	}
	return s
}

//NewThreadPoolScheduler creates a FIFO scheduler with the given worker
//count. 0 workers means one per CPU.
func NewThreadPoolScheduler(workers int, log logger.Logger) *TaskScheduler {
	conf := radar.NewDefaultSchedulerConfig()
	conf.WorkerThreads = workers
	conf.SchedulingPolicy = radar.SchedulingFIFO
	return NewTaskScheduler(conf, log)
}

//Configure replaces the scheduler configuration.
//Rejected while the scheduler is Running; stop it first.
func (s *TaskScheduler) Configure(conf radar.SchedulerConfig) error {
	if state := s.State(); state == radar.StateRunning || state == radar.StatePaused {
		return fmt.Errorf("scheduler: configure in state %s: %w", state, radar.ErrInvalidState)
	}
	if conf.WorkerThreads < 0 || conf.QueueCapacity <= 0 {
		return fmt.Errorf("scheduler: bad worker/queue configuration: %w", radar.ErrInvalidParameter)
	}
	if _, err := radar.ParseSchedulingPolicy(string(conf.SchedulingPolicy)); err != nil {
		return err
	}

	s.confLock.Lock()
	defer s.confLock.Unlock()
	s.conf = conf
	//a queue built from the old configuration is stale
	if s.tasksQueue != nil && s.State() == radar.StateReady {
		s.tasksQueue.Close()
		s.tasksQueue = s.newTaskQueue()
	}
	return nil
}

func (s *TaskScheduler) newTaskQueue() *queue.Bounded[*ScheduledTask] {
	if s.conf.SchedulingPolicy == radar.SchedulingPriority {
		return queue.NewPriority[*ScheduledTask](s.conf.QueueCapacity, radar.DropNewest, func(t *ScheduledTask) radar.PacketPriority {
			return t.priority
		})
	}
	return queue.NewFIFO[*ScheduledTask](s.conf.QueueCapacity, radar.DropNewest)
}

func defaultWorkerCount() int {
	return runtime.NumCPU()
}

func (s *TaskScheduler) workerCount() int {
	workers := s.conf.WorkerThreads
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	return workers
}

func (s *TaskScheduler) maxConcurrent() int32 {
	if s.conf.MaxConcurrent > 0 {
		return int32(s.conf.MaxConcurrent)
	}
	return int32(s.workerCount())
}

//Initialize validates the configuration and builds the task queue.
func (s *TaskScheduler) Initialize() error {
	if err := s.Transition(radar.StateInitializing); err != nil {
		return err
	}

	s.confLock.Lock()
	if s.conf.QueueCapacity <= 0 {
		s.confLock.Unlock()
		s.Force(radar.StateError)
		return fmt.Errorf("scheduler: queue capacity %d: %w", s.conf.QueueCapacity, radar.ErrInvalidParameter)
	}
	s.tasksQueue = s.newTaskQueue()
	s.confLock.Unlock()

	s.log.Infof("scheduler initialized: %d workers, queue %d, policy %s",
		s.workerCount(), s.conf.QueueCapacity, s.conf.SchedulingPolicy)
	return s.Transition(radar.StateReady)
}

//Start spawns the worker pool and the timeout reaper.
func (s *TaskScheduler) Start() error {
	if err := s.Transition(radar.StateRunning); err != nil {
		return err
	}

	s.confLock.Lock()
	if s.tasksQueue.Closed() {
		//restart after a Stop: the previous queue is gone
		s.tasksQueue = s.newTaskQueue()
	}
	taskQueue := s.tasksQueue
	s.confLock.Unlock()

	s.shouldStop.Store(false)
	workers := s.workerCount()
	for i := 0; i < workers; i++ {
		s.workersWg.Add(1)
		go s.workerLoop(i, taskQueue)
	}
	s.workersWg.Add(1)
	go s.reaperLoop()

	s.log.Infof("scheduler started with %d workers", workers)
	return nil
}

//Stop halts intake, joins the workers and resolves everything still
//pending with a shutdown fault. Running tasks finish undisturbed.
func (s *TaskScheduler) Stop() error {
	if err := s.Transition(radar.StateReady); err != nil {
		return err
	}

	s.shouldStop.Store(true)
	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()
	taskQueue.Close()
	s.workersWg.Wait()

	//drain: whatever the workers left behind gets a shutdown resolution
	if drained := s.drainPending(taskQueue); drained > 0 {
		s.log.Warnf("scheduler stop drained %d pending tasks", drained)
	}

	s.log.Infof("scheduler stopped")
	return nil
}

//drainPending resolves every still-pending task in the queue with a
//shutdown fault so no submitted future is ever left unresolved.
func (s *TaskScheduler) drainPending(taskQueue *queue.Bounded[*ScheduledTask]) int {
	drained := 0
	for _, task := range taskQueue.Clear() {
		if task.state.CAS(int32(TaskPending), int32(TaskCancelled)) {
			task.resolve(fmt.Errorf("task %s: %w", task.name, radar.ErrShutdown))
			s.stats.taskCancelled()
			s.finishTask(task)
			drained++
		}
	}
	return drained
}

//Pause suspends task execution; queued tasks stay queued.
func (s *TaskScheduler) Pause() error {
	return s.Transition(radar.StatePaused)
}

//Resume continues execution after a Pause.
func (s *TaskScheduler) Resume() error {
	return s.Transition(radar.StateRunning)
}

//Cleanup releases everything. Idempotent.
func (s *TaskScheduler) Cleanup() error {
	if s.State() == radar.StateShutdown {
		return nil
	}
	if s.State() == radar.StatePaused {
		if err := s.Resume(); err != nil {
			s.log.Errorf("scheduler cleanup: resume failed: %s", err)
		}
	}
	if s.State() == radar.StateRunning {
		if err := s.Stop(); err != nil {
			s.log.Errorf("scheduler cleanup: stop failed: %s", err)
		}
	}
	//a never-started scheduler may still hold queued tasks
	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()
	if taskQueue != nil {
		taskQueue.Close()
		if drained := s.drainPending(taskQueue); drained > 0 {
			s.log.Warnf("scheduler cleanup drained %d pending tasks", drained)
		}
	}
	s.tasks.Range(func(key, _ interface{}) bool {
		s.tasks.Delete(key)
		return true
	})
	s.Force(radar.StateShutdown)
	return nil
}

//SubmitTask queues a fire-and-forget task and returns its id together
//with a future resolving on the task's terminal state.
func (s *TaskScheduler) SubmitTask(fn TaskFunc, opts SubmitOptions) (uint64, *Future[struct{}], error) {
	if fn == nil {
		return 0, nil, fmt.Errorf("scheduler: nil task: %w", radar.ErrInvalidParameter)
	}
	future := NewFuture[struct{}]()
	task := newScheduledTask(opts.Name, opts.Priority, opts.Timeout, fn, func(err error) {
		if err != nil {
			future.Fail(err)
			return
		}
		future.Resolve(struct{}{})
	})
	if err := s.enqueue(task); err != nil {
		return 0, nil, err
	}
	return task.id, future, nil
}

//SubmitWithResult queues a task producing a typed value.
//The future resolves only once the task reaches a terminal state, with
//the value, the task error, or the scheduler's cancellation/timeout/
//shutdown fault, whichever terminated the task.
func SubmitWithResult[T any](s *TaskScheduler, fn func() (T, error), opts SubmitOptions) (uint64, *Future[T], error) {
	if fn == nil {
		return 0, nil, fmt.Errorf("scheduler: nil task: %w", radar.ErrInvalidParameter)
	}
	future := NewFuture[T]()
	var value T
	task := newScheduledTask(opts.Name, opts.Priority, opts.Timeout, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		value = v
		return nil
	}, func(err error) {
		if err != nil {
			future.Fail(err)
			return
		}
		future.Resolve(value)
	})
	if err := s.enqueue(task); err != nil {
		return 0, nil, err
	}
	return task.id, future, nil
}

//SubmitProcessingTask bridges a raw packet and a processing function
//into the scheduler, priority taken from the packet.
func (s *TaskScheduler) SubmitProcessingTask(packet *radar.RawDataPacket, process func(*radar.RawDataPacket) (*radar.ProcessingResult, error)) (*Future[*radar.ProcessingResult], error) {
	if !packet.Valid() {
		return nil, fmt.Errorf("scheduler: malformed packet: %w", radar.ErrInvalidInput)
	}
	if process == nil {
		return nil, fmt.Errorf("scheduler: nil processing function: %w", radar.ErrInvalidParameter)
	}
	_, future, err := SubmitWithResult(s, func() (*radar.ProcessingResult, error) {
		return process(packet)
	}, SubmitOptions{
		Name:     fmt.Sprintf("process-%d", packet.SequenceID),
		Priority: packet.Priority,
	})
	return future, err
}

func (s *TaskScheduler) enqueue(task *ScheduledTask) error {
	state := s.State()
	if state != radar.StateRunning && state != radar.StateReady && state != radar.StatePaused {
		return fmt.Errorf("scheduler: submit in state %s: %w", state, radar.ErrNotReady)
	}
	if s.shouldStop.Load() {
		return fmt.Errorf("scheduler: %w", radar.ErrShutdown)
	}

	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()
	if taskQueue == nil {
		return fmt.Errorf("scheduler: %w", radar.ErrNotReady)
	}

	s.tasks.Store(task.id, task)
	if err := taskQueue.Enqueue(task); err != nil {
		s.tasks.Delete(task.id)
		if errors.Is(err, radar.ErrQueueFull) {
			return fmt.Errorf("scheduler: task queue saturated: %w", radar.ErrQueueFull)
		}
		return err
	}
	s.stats.taskSubmitted()
	return nil
}

func (s *TaskScheduler) workerLoop(id int, taskQueue *queue.Bounded[*ScheduledTask]) {
	defer s.workersWg.Done()

	for !s.shouldStop.Load() {
		if s.State() == radar.StatePaused {
			time.Sleep(dequeueInterval)
			continue
		}

		task, err := taskQueue.Dequeue(dequeueInterval)
		if err != nil {
			if errors.Is(err, radar.ErrShutdown) {
				return
			}
			continue //empty interval, re-check stop flag
		}

		//concurrency throttle: hand the task back and yield
		if s.running.Load() >= s.maxConcurrent() {
			if requeueErr := taskQueue.Enqueue(task); requeueErr != nil {
				s.resolveUnrunnable(task, requeueErr)
				continue
			}
			time.Sleep(throttleBackoff)
			continue
		}

		s.running.Inc()
		s.executeTask(task, taskQueue)
		s.running.Dec()
	}
}

func (s *TaskScheduler) executeTask(task *ScheduledTask, taskQueue *queue.Bounded[*ScheduledTask]) {
	if s.onDispatch != nil {
		s.onDispatch(time.Since(task.submittedAt))
	}

	err, ran := task.Execute()
	if !ran {
		//lost the claim to a cancel or the reaper
		return
	}
	if err == nil {
		s.stats.taskCompleted(task.ExecutionDuration(), task.WaitingDuration())
		s.finishTask(task)
		return
	}

	if int(task.retries.Load()) < s.conf.MaxRetryCount {
		task.reschedule()
		s.stats.taskRetried()
		s.log.Warnf("task %s failed (attempt %d), retrying: %s", task.name, task.retries.Load(), err)
		if requeueErr := taskQueue.Enqueue(task); requeueErr != nil {
			s.resolveUnrunnable(task, requeueErr)
		}
		return
	}

	task.fail(err)
	s.stats.taskFailed()
	s.log.Errorf("task %s failed permanently: %s", task.name, err)
	s.finishTask(task)
}

//resolveUnrunnable terminates a task that can no longer reach a worker.
func (s *TaskScheduler) resolveUnrunnable(task *ScheduledTask, cause error) {
	if task.state.CAS(int32(TaskPending), int32(TaskCancelled)) {
		task.resolve(fmt.Errorf("task %s: %v: %w", task.name, cause, radar.ErrCancelled))
		s.stats.taskCancelled()
		s.finishTask(task)
	}
}

//finishTask runs the completion callback after a terminal transition.
func (s *TaskScheduler) finishTask(task *ScheduledTask) {
	cb, ok := s.onComplete.Load().(TaskCompleteCallback)
	if !ok || cb == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Warnf("task complete callback panicked: %v", rec)
		}
	}()
	cb(task)
}

func (s *TaskScheduler) reaperLoop() {
	defer s.workersWg.Done()

	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for !s.shouldStop.Load() {
		<-ticker.C
		now := time.Now()
		s.tasks.Range(func(key, value interface{}) bool {
			task := value.(*ScheduledTask)
			if task.expired(now) && task.markTimedOut() {
				s.stats.taskTimedOut()
				s.log.Warnf("task %s timed out after %s in queue", task.name, task.timeout)
				s.finishTask(task)
			}
			//evict terminal tasks once they have aged out
			if task.State().Terminal() {
				finished := task.finishedNanos.Load()
				if finished != 0 && now.Sub(time.Unix(0, finished)) > terminalRetention {
					s.tasks.Delete(key)
				}
			}
			return true
		})
	}
}

//SetTaskCompleteCallback registers the terminal-state hook.
func (s *TaskScheduler) SetTaskCompleteCallback(cb TaskCompleteCallback) {
	s.onComplete.Store(cb)
}

//TaskState reports the state of a task by id.
func (s *TaskScheduler) TaskState(id uint64) (TaskState, error) {
	value, ok := s.tasks.Load(id)
	if !ok {
		return 0, fmt.Errorf("scheduler: task %d not found: %w", id, radar.ErrInvalidParameter)
	}
	return value.(*ScheduledTask).State(), nil
}

//CancelTask cancels a pending task by id.
//Returns false when the task is already running or terminal.
func (s *TaskScheduler) CancelTask(id uint64) (bool, error) {
	value, ok := s.tasks.Load(id)
	if !ok {
		return false, fmt.Errorf("scheduler: task %d not found: %w", id, radar.ErrInvalidParameter)
	}
	task := value.(*ScheduledTask)
	if !task.Cancel() {
		return false, nil
	}
	s.stats.taskCancelled()
	s.finishTask(task)
	return true, nil
}

//CancelPendingTasks cancels every task still waiting in the queue and
//returns how many were cancelled.
func (s *TaskScheduler) CancelPendingTasks() int {
	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()
	if taskQueue == nil {
		return 0
	}

	cancelled := 0
	for _, task := range taskQueue.Clear() {
		if task.Cancel() {
			s.stats.taskCancelled()
			s.finishTask(task)
			cancelled++
		}
	}
	return cancelled
}

//WaitForAllTasks blocks until the queue is empty and no task is
//executing, or the timeout elapses. timeout 0 waits up to a day.
func (s *TaskScheduler) WaitForAllTasks(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()
	if taskQueue == nil {
		return nil
	}

	err := wait.PollImmediate(5*time.Millisecond, timeout, func() (bool, error) {
		if taskQueue.Len() != 0 || s.running.Load() != 0 {
			return false, nil
		}
		//a task a worker has claimed but not yet marked running sits in
		//neither count; the terminal tally covers it
		snap := s.stats.Snapshot()
		terminal := snap.Completed + snap.Failed + snap.Cancelled + snap.TimedOut
		return terminal >= snap.Submitted, nil
	})
	if err != nil {
		return fmt.Errorf("scheduler: tasks still in flight: %w", radar.ErrTimeout)
	}
	return nil
}

//Status snapshots the scheduler.
func (s *TaskScheduler) Status() SchedulerStatus {
	s.confLock.Lock()
	taskQueue := s.tasksQueue
	s.confLock.Unlock()

	status := SchedulerStatus{
		State:        s.State(),
		Workers:      s.workerCount(),
		RunningTasks: s.running.Load(),
	}
	if taskQueue != nil {
		status.QueueLen = taskQueue.Len()
		status.QueueCap = taskQueue.Cap()
	}
	return status
}

//Statistics returns the live statistics aggregate.
func (s *TaskScheduler) Statistics() *Statistics {
	return s.stats
}

//ResetStatistics zeroes all counters and timing instruments.
func (s *TaskScheduler) ResetStatistics() {
	s.stats.Reset()
}
