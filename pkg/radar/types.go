package radar

import (
	"time"
)

//ModuleState is the common state machine state shared by every pipeline module.
type ModuleState uint8

const (
	StateUninitialized ModuleState = iota
	StateInitializing
	StateReady
	StateRunning
	StatePaused
	StateError
	StateShutdown
)

func (s ModuleState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateError:
		return "ERROR"
	case StateShutdown:
		return "SHUTDOWN"
	}
	return "UNKNOWN"
}

//PacketPriority controls ordering inside priority queues and the scheduler.
type PacketPriority uint8

const (
	PriorityLow PacketPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p PacketPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

//PacketMetadata carries the acquisition parameters of a raw packet.
type PacketMetadata struct {
	SamplingFrequencyHz       float64
	CenterFrequencyHz         float64
	Gain                      float64
	PulseRepetitionIntervalUs uint32
}

//RawDataPacket is one unit of raw I/Q data handed from acquisition to processing.
//Ownership transfers to whoever dequeues it; the queues never touch the payload.
type RawDataPacket struct {
	Timestamp         time.Time
	SequenceID        uint64
	Priority          PacketPriority
	ChannelCount      uint32
	SamplesPerChannel uint32
	IQData            []complex64
	Metadata          PacketMetadata
}

//Valid reports whether the packet is structurally consistent and safe to process.
//Invalid packets are dropped and counted by the receiving stage, never queued.
func (p *RawDataPacket) Valid() bool {
	if p == nil {
		return false
	}
	return len(p.IQData) > 0 &&
		p.ChannelCount > 0 &&
		p.SamplesPerChannel > 0 &&
		uint32(len(p.IQData)) == p.ChannelCount*p.SamplesPerChannel
}

//DataSize returns the payload size in bytes.
func (p *RawDataPacket) DataSize() int {
	return len(p.IQData) * 8
}

//ResultStatistics holds per-result processing cost figures.
type ResultStatistics struct {
	ProcessingDuration time.Duration
	MemoryUsageBytes   int
}

//ProcessingResult is the output of one processing pass over one packet.
type ProcessingResult struct {
	ProcessingTime    time.Time
	SourcePacketID    uint64
	ProcessingSuccess bool

	RangeProfile    []float32
	DopplerSpectrum []float32
	BeamformedData  []float32

	Statistics ResultStatistics
}

//Complete reports whether the result carries the minimal set of products.
func (r *ProcessingResult) Complete() bool {
	if r == nil {
		return false
	}
	return r.ProcessingSuccess && len(r.RangeProfile) > 0 && len(r.DopplerSpectrum) > 0
}

//BufferStatus is a point-in-time snapshot of a stage's internal queue.
//CurrentSize <= TotalCapacity holds at every observation point and
//TotalDropped only ever grows.
type BufferStatus struct {
	TotalCapacity uint32
	CurrentSize   uint32
	PeakSize      uint32
	TotalReceived uint64
	TotalDropped  uint64
}
