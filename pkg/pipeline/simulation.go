package pipeline

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//every N-th simulated packet is promoted to high priority
const highPriorityEvery = 16

//SimulatedSource synthesizes raw IQ packets at a fixed interval.
//It stands in for the acquisition hardware during development and tests.
type SimulatedSource struct {
	packetSizeBytes uint32
	channelCount    uint32
	interval        time.Duration

	sequence  *atomic.Uint64
	closeOnce sync.Once
	closed    chan struct{}
	rng       *rand.Rand
}

//NewSimulatedSource builds a source from the receiver configuration.
func NewSimulatedSource(conf radar.ReceiverConfig) *SimulatedSource {
	channels := conf.ChannelCount
	if channels == 0 {
		channels = 1
	}
	return &SimulatedSource{
		packetSizeBytes: conf.PacketSizeBytes,
		channelCount:    channels,
		interval:        conf.GenerationInterval,
		sequence:        atomic.NewUint64(0),
		closed:          make(chan struct{}),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

//Next waits one generation interval and returns a fresh packet.
func (s *SimulatedSource) Next() (*radar.RawDataPacket, error) {
	select {
	case <-s.closed:
		return nil, radar.ErrShutdown
	case <-time.After(s.interval):
	}

	return s.generate(), nil
}

func (s *SimulatedSource) generate() *radar.RawDataPacket {
	samplesPerChannel := s.packetSizeBytes / 8 / s.channelCount
	if samplesPerChannel == 0 {
		samplesPerChannel = 1
	}

	total := int(s.channelCount * samplesPerChannel)
	iq := make([]complex64, total)
	//a noisy tone per channel keeps downstream spectra non-degenerate
	phaseStep := 2 * math.Pi * (0.05 + 0.2*s.rng.Float64())
	for i := range iq {
		phase := phaseStep * float64(i%int(samplesPerChannel))
		re := float32(math.Cos(phase)) + float32(s.rng.NormFloat64())*0.1
		im := float32(math.Sin(phase)) + float32(s.rng.NormFloat64())*0.1
		iq[i] = complex(re, im)
	}

	seq := s.sequence.Inc()
	priority := radar.PriorityNormal
	if seq%highPriorityEvery == 0 {
		priority = radar.PriorityHigh
	}

	return &radar.RawDataPacket{
		Timestamp:         time.Now(),
		SequenceID:        seq,
		Priority:          priority,
		ChannelCount:      s.channelCount,
		SamplesPerChannel: samplesPerChannel,
		IQData:            iq,
		Metadata: radar.PacketMetadata{
			SamplingFrequencyHz:       100e6,
			CenterFrequencyHz:         10e9,
			Gain:                      30,
			PulseRepetitionIntervalUs: 1000,
		},
	}
}

//Close stops the source; a blocked Next returns ErrShutdown.
func (s *SimulatedSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}
