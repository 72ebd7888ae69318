package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
	"github.com/wendizhou99-cell/Radar/pkg/scheduler"
)

//Engine is the processing strategy a Processor runs packets through.
type Engine interface {
	//Name identifies the strategy in configuration and logs
	Name() string
	//Process turns one raw packet into a processing result
	Process(packet *radar.RawDataPacket) (*radar.ProcessingResult, error)
}

//ResultCallback observes results after a successful processing pass.
type ResultCallback func(result *radar.ProcessingResult)

//Processor is the processing stage.
//It delegates the numerical work to the active Engine; asynchronous
//submissions ride an attached TaskScheduler when one is present.
type Processor struct {
	*lifecycle.StateMachine
	log logger.Logger

	conf radar.ProcessorConfig

	engineLock sync.RWMutex
	engines    map[string]Engine
	active     Engine

	sched *scheduler.TaskScheduler

	onResult atomic.Value // ResultCallback
	onError  atomic.Value // radar.ErrorCallback

	processingTimer metrics.Timer
	processed       *atomic.Uint64
	failed          *atomic.Uint64
}

//NewProcessor creates a processor with the CPU reference engine
//registered and selected per the configured strategy.
func NewProcessor(conf radar.ProcessorConfig, log logger.Logger) *Processor {
	p := &Processor{
		StateMachine:    lifecycle.NewStateMachine("processor", log),
		log:             log,
		conf:            conf,
		engines:         make(map[string]Engine),
		processingTimer: metrics.NewTimer(),
		processed:       atomic.NewUint64(0),
		failed:          atomic.NewUint64(0),
	}
	p.RegisterEngine(NewCPUEngine())
	return p
}

//AttachScheduler routes asynchronous submissions through the scheduler.
//Call before Start.
func (p *Processor) AttachScheduler(sched *scheduler.TaskScheduler) {
	p.sched = sched
}

//RegisterEngine adds a strategy. A same-named engine is replaced.
func (p *Processor) RegisterEngine(engine Engine) {
	p.engineLock.Lock()
	defer p.engineLock.Unlock()
	p.engines[engine.Name()] = engine
}

//SetStrategy switches the active engine by name.
func (p *Processor) SetStrategy(name string) error {
	p.engineLock.Lock()
	defer p.engineLock.Unlock()
	engine, ok := p.engines[name]
	if !ok {
		return fmt.Errorf("processor: unknown strategy %q: %w", name, radar.ErrInvalidParameter)
	}
	p.active = engine
	p.log.Infof("processing strategy switched to %s", name)
	return nil
}

//Capabilities lists the registered strategy names, sorted.
func (p *Processor) Capabilities() []string {
	p.engineLock.RLock()
	defer p.engineLock.RUnlock()
	names := make([]string, 0, len(p.engines))
	for name := range p.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//Initialize validates configuration and selects the configured strategy.
func (p *Processor) Initialize() error {
	if err := p.Transition(radar.StateInitializing); err != nil {
		return err
	}

	if p.conf.WorkerThreads < 0 || p.conf.BatchSize <= 0 {
		p.Force(radar.StateError)
		return fmt.Errorf("processor: bad worker/batch configuration: %w", radar.ErrInvalidParameter)
	}
	if err := p.SetStrategy(p.conf.Strategy); err != nil {
		p.Force(radar.StateError)
		return err
	}

	p.log.Infof("processor initialized: strategy %s, batch %d", p.conf.Strategy, p.conf.BatchSize)
	return p.Transition(radar.StateReady)
}

func (p *Processor) Start() error {
	return p.Transition(radar.StateRunning)
}

func (p *Processor) Stop() error {
	return p.Transition(radar.StateReady)
}

func (p *Processor) Pause() error {
	return p.Transition(radar.StatePaused)
}

func (p *Processor) Resume() error {
	return p.Transition(radar.StateRunning)
}

//Cleanup releases the engines. Idempotent.
func (p *Processor) Cleanup() error {
	if p.State() == radar.StateShutdown {
		return nil
	}
	p.Force(radar.StateShutdown)
	return nil
}

//ProcessPacket runs one packet through the active engine synchronously.
func (p *Processor) ProcessPacket(packet *radar.RawDataPacket) (*radar.ProcessingResult, error) {
	if err := p.Require(radar.StateRunning); err != nil {
		return nil, err
	}
	if !packet.Valid() {
		p.failed.Inc()
		p.reportError(radar.CodeInvalidInputData, fmt.Sprintf("malformed packet %d", packetSequence(packet)))
		return nil, fmt.Errorf("processor: malformed packet: %w", radar.ErrInvalidInput)
	}

	p.engineLock.RLock()
	engine := p.active
	p.engineLock.RUnlock()
	if engine == nil {
		return nil, fmt.Errorf("processor: no active strategy: %w", radar.ErrNotReady)
	}

	start := time.Now()
	result, err := engine.Process(packet)
	elapsed := time.Since(start)
	if err != nil {
		p.failed.Inc()
		p.reportError(radar.CodeProcessingFailed, err.Error())
		return nil, fmt.Errorf("processor: %v: %w", err, radar.ErrTaskFailed)
	}

	p.processingTimer.Update(elapsed)
	p.processed.Inc()
	result.Statistics.ProcessingDuration = elapsed

	if cb, ok := p.onResult.Load().(ResultCallback); ok && cb != nil {
		cb(result)
	}
	return result, nil
}

//ProcessPacketAsync schedules one packet for processing.
//With an attached scheduler the packet rides the task queue at its own
//priority; without one a transient goroutine does the work.
func (p *Processor) ProcessPacketAsync(packet *radar.RawDataPacket) (*scheduler.Future[*radar.ProcessingResult], error) {
	if err := p.Require(radar.StateRunning); err != nil {
		return nil, err
	}
	if !packet.Valid() {
		p.failed.Inc()
		return nil, fmt.Errorf("processor: malformed packet: %w", radar.ErrInvalidInput)
	}

	if p.sched != nil {
		return p.sched.SubmitProcessingTask(packet, p.ProcessPacket)
	}

	future := scheduler.NewFuture[*radar.ProcessingResult]()
	go func() {
		result, err := p.ProcessPacket(packet)
		if err != nil {
			future.Fail(err)
			return
		}
		future.Resolve(result)
	}()
	return future, nil
}

//HandlePacket adapts the processor to push-style wiring.
//The packet is processed asynchronously and the outcome reaches the
//result callback; the future is discarded.
func (p *Processor) HandlePacket(packet *radar.RawDataPacket) error {
	_, err := p.ProcessPacketAsync(packet)
	return err
}

//ProcessBatch runs a slice of packets synchronously.
//Bad packets fail their slot without aborting the rest; the first error
//is returned alongside the partial results.
func (p *Processor) ProcessBatch(packets []*radar.RawDataPacket) ([]*radar.ProcessingResult, error) {
	if len(packets) == 0 {
		return nil, nil
	}
	if len(packets) > p.conf.BatchSize {
		return nil, fmt.Errorf("processor: batch of %d exceeds limit %d: %w", len(packets), p.conf.BatchSize, radar.ErrInvalidParameter)
	}

	results := make([]*radar.ProcessingResult, len(packets))
	var firstErr error
	for i, packet := range packets {
		result, err := p.ProcessPacket(packet)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results[i] = result
	}
	return results, firstErr
}

//Processed returns the number of successful processing passes.
func (p *Processor) Processed() uint64 {
	return p.processed.Load()
}

//Failed returns the number of failed or rejected passes.
func (p *Processor) Failed() uint64 {
	return p.failed.Load()
}

//MeanProcessingTime returns the average engine latency.
func (p *Processor) MeanProcessingTime() time.Duration {
	return time.Duration(p.processingTimer.Mean())
}

//SetResultCallback registers the result hook.
func (p *Processor) SetResultCallback(cb ResultCallback) {
	p.onResult.Store(cb)
}

//SetErrorCallback registers the out-of-band error hook.
func (p *Processor) SetErrorCallback(cb radar.ErrorCallback) {
	p.onError.Store(cb)
}

func (p *Processor) reportError(code radar.ErrorCode, message string) {
	if cb, ok := p.onError.Load().(radar.ErrorCallback); ok && cb != nil {
		cb(code, message)
	}
}
