package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/queue"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
	"github.com/wendizhou99-cell/Radar/pkg/scheduler"
)

//PacketSource produces raw packets for a receiver to ingest.
//Next blocks until a packet is available; it returns ErrShutdown once
//the source is closed.
type PacketSource interface {
	Next() (*radar.RawDataPacket, error)
	Close() error
}

//PacketCallback observes packets after they were accepted into the buffer.
type PacketCallback func(packet *radar.RawDataPacket)

//Receiver is the acquisition stage.
//It owns a bounded packet buffer between the data source and the
//processing side; packets are validated before admission and the
//buffer's overflow policy absorbs producer/consumer rate mismatch.
type Receiver struct {
	*lifecycle.StateMachine
	log logger.Logger

	conf    radar.ReceiverConfig
	packets *queue.Bounded[*radar.RawDataPacket]
	source  PacketSource

	onPacket atomic.Value // PacketCallback
	onError  atomic.Value // radar.ErrorCallback

	receiveMeter   metrics.Meter
	invalidPackets *atomic.Uint64

	//the source drain outlives Start/Stop cycles; Next may block
	//arbitrarily long on a quiet source, so Stop never joins it
	incoming   chan *radar.RawDataPacket
	doneCh     chan struct{}
	sourceOnce sync.Once
	sourceWg   sync.WaitGroup

	stopCh chan struct{}
	wg     sync.WaitGroup
}

//NewReceiver creates a receiver over an optional packet source.
//A nil source leaves only the EnqueuePacket ingress.
func NewReceiver(conf radar.ReceiverConfig, source PacketSource, log logger.Logger) *Receiver {
	return &Receiver{
		StateMachine:   lifecycle.NewStateMachine("receiver", log),
		log:            log,
		conf:           conf,
		source:         source,
		receiveMeter:   metrics.NewMeter(),
		invalidPackets: atomic.NewUint64(0),
	}
}

//Initialize validates the configuration and allocates the packet buffer.
func (r *Receiver) Initialize() error {
	if err := r.Transition(radar.StateInitializing); err != nil {
		return err
	}

	if r.conf.MaxQueueSize <= 0 {
		r.Force(radar.StateError)
		return fmt.Errorf("receiver: queue size %d: %w", r.conf.MaxQueueSize, radar.ErrInvalidParameter)
	}
	if _, err := radar.ParseOverflowPolicy(string(r.conf.OverflowPolicy)); err != nil {
		r.Force(radar.StateError)
		return err
	}

	r.packets = queue.NewFIFO[*radar.RawDataPacket](r.conf.MaxQueueSize, r.conf.OverflowPolicy)
	if r.source != nil {
		r.incoming = make(chan *radar.RawDataPacket)
		r.doneCh = make(chan struct{})
	}
	r.log.Infof("receiver initialized: buffer %d, policy %s", r.conf.MaxQueueSize, r.conf.OverflowPolicy)
	return r.Transition(radar.StateReady)
}

//Start begins draining the packet source, when one is attached.
func (r *Receiver) Start() error {
	if err := r.Transition(radar.StateRunning); err != nil {
		return err
	}

	r.stopCh = make(chan struct{})
	if r.source != nil {
		r.sourceOnce.Do(func() {
			r.sourceWg.Add(1)
			go r.drainSource()
		})
		r.wg.Add(1)
		go r.receiveLoop()
	}
	return nil
}

//Stop halts reception. Buffered packets stay available for consumers.
func (r *Receiver) Stop() error {
	if err := r.Transition(radar.StateReady); err != nil {
		return err
	}
	close(r.stopCh)
	r.wg.Wait()
	return nil
}

//Pause suspends reception without dropping the buffer.
func (r *Receiver) Pause() error {
	return r.Transition(radar.StatePaused)
}

//Resume continues reception after a Pause.
func (r *Receiver) Resume() error {
	return r.Transition(radar.StateRunning)
}

//Cleanup closes the source and the buffer. Idempotent.
func (r *Receiver) Cleanup() error {
	if r.State() == radar.StateShutdown {
		return nil
	}
	if r.State() == radar.StatePaused {
		if err := r.Resume(); err != nil {
			r.log.Errorf("receiver cleanup: resume failed: %s", err)
		}
	}
	if r.State() == radar.StateRunning {
		if err := r.Stop(); err != nil {
			r.log.Errorf("receiver cleanup: stop failed: %s", err)
		}
	}
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			r.log.Errorf("receiver cleanup: source close failed: %s", err)
		}
		if r.doneCh != nil {
			close(r.doneCh)
		}
		r.sourceWg.Wait()
	}
	if r.packets != nil {
		r.packets.Close()
	}
	r.Force(radar.StateShutdown)
	return nil
}

func (r *Receiver) receiveLoop() {
	defer r.wg.Done()

	for {
		if r.State() == radar.StatePaused {
			select {
			case <-r.stopCh:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		select {
		case <-r.stopCh:
			return
		case packet, ok := <-r.incoming:
			if !ok {
				return
			}
			if err := r.EnqueuePacket(packet); err != nil && !errors.Is(err, radar.ErrQueueFull) {
				r.log.Warnf("packet %d not admitted: %s", packet.SequenceID, err)
			}
		}
	}
}

//drainSource pumps the packet source into the incoming channel for the
//receiver's whole lifetime. Cleanup closes the source and doneCh to
//release it from Next or from a pending hand-off.
func (r *Receiver) drainSource() {
	defer r.sourceWg.Done()
	defer close(r.incoming)

	for {
		packet, err := r.source.Next()
		if err != nil {
			if errors.Is(err, radar.ErrShutdown) {
				return
			}
			select {
			case <-r.doneCh:
				return
			default:
			}
			r.log.Warnf("packet source error: %s", err)
			r.reportError(radar.CodePacketCorruption, err.Error())
			continue
		}
		select {
		case r.incoming <- packet:
		case <-r.doneCh:
			return
		}
	}
}

//EnqueuePacket validates and admits one packet into the buffer.
//Invalid packets are counted and rejected before touching the queue.
//The packet-arrived callback fires after a successful admission, outside
//any lock.
func (r *Receiver) EnqueuePacket(packet *radar.RawDataPacket) error {
	if state := r.State(); state != radar.StateRunning && state != radar.StatePaused {
		return fmt.Errorf("receiver: enqueue in state %s: %w", state, radar.ErrNotReady)
	}
	if !packet.Valid() {
		r.invalidPackets.Inc()
		r.reportError(radar.CodePacketCorruption, fmt.Sprintf("malformed packet %d", packetSequence(packet)))
		return fmt.Errorf("receiver: malformed packet: %w", radar.ErrInvalidInput)
	}

	if err := r.packets.Enqueue(packet); err != nil {
		if errors.Is(err, radar.ErrQueueFull) {
			r.reportError(radar.CodeBufferOverflow, "packet buffer saturated")
		}
		return err
	}

	r.receiveMeter.Mark(1)
	if cb, ok := r.onPacket.Load().(PacketCallback); ok && cb != nil {
		cb(packet)
	}
	return nil
}

//HandlePacket adapts the receiver to push-style wiring; it is plain
//admission through EnqueuePacket.
func (r *Receiver) HandlePacket(packet *radar.RawDataPacket) error {
	return r.EnqueuePacket(packet)
}

func packetSequence(packet *radar.RawDataPacket) uint64 {
	if packet == nil {
		return 0
	}
	return packet.SequenceID
}

//ReceivePacket removes the oldest buffered packet.
//timeout 0 waits until a packet arrives or the receiver shuts down.
func (r *Receiver) ReceivePacket(timeout time.Duration) (*radar.RawDataPacket, error) {
	if r.packets == nil {
		return nil, fmt.Errorf("receiver: %w", radar.ErrNotReady)
	}
	return r.packets.Dequeue(timeout)
}

//ReceivePacketAsync resolves a future with the next buffered packet.
func (r *Receiver) ReceivePacketAsync() *scheduler.Future[*radar.RawDataPacket] {
	future := scheduler.NewFuture[*radar.RawDataPacket]()
	go func() {
		packet, err := r.ReceivePacket(0)
		if err != nil {
			future.Fail(err)
			return
		}
		future.Resolve(packet)
	}()
	return future
}

//FlushBuffer discards every buffered packet and returns the count.
func (r *Receiver) FlushBuffer() int {
	if r.packets == nil {
		return 0
	}
	return len(r.packets.Clear())
}

//BufferStatus snapshots the packet buffer counters.
func (r *Receiver) BufferStatus() radar.BufferStatus {
	if r.packets == nil {
		return radar.BufferStatus{}
	}
	return r.packets.Status()
}

//InvalidPackets returns how many packets failed admission validation.
func (r *Receiver) InvalidPackets() uint64 {
	return r.invalidPackets.Load()
}

//ReceiveRate returns the one minute packet admission rate.
func (r *Receiver) ReceiveRate() float64 {
	return r.receiveMeter.Rate1()
}

//SetPacketCallback registers the packet-arrived hook.
func (r *Receiver) SetPacketCallback(cb PacketCallback) {
	r.onPacket.Store(cb)
}

//SetErrorCallback registers the out-of-band error hook.
func (r *Receiver) SetErrorCallback(cb radar.ErrorCallback) {
	r.onError.Store(cb)
}

func (r *Receiver) reportError(code radar.ErrorCode, message string) {
	if cb, ok := r.onError.Load().(radar.ErrorCallback); ok && cb != nil {
		cb(code, message)
	}
}
