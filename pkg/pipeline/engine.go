package pipeline

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//CPUEngineName is the strategy name of the reference engine.
const CPUEngineName = "cpu_basic"

//CPUEngine is the software reference strategy.
//The numerical content is intentionally simple: per-sample magnitude
//range profile, channel-averaged spectrum magnitudes and a coherent
//channel sum. It exists to exercise the pipeline, not to be a signal
//processor.
type CPUEngine struct{}

func NewCPUEngine() *CPUEngine {
	return &CPUEngine{}
}

func (e *CPUEngine) Name() string {
	return CPUEngineName
}

func (e *CPUEngine) Process(packet *radar.RawDataPacket) (*radar.ProcessingResult, error) {
	if !packet.Valid() {
		return nil, fmt.Errorf("cpu engine: packet %d fails validation", packet.SequenceID)
	}

	channels := int(packet.ChannelCount)
	samples := int(packet.SamplesPerChannel)

	rangeProfile := make([]float32, samples)
	doppler := make([]float32, samples)
	beamformed := make([]float32, samples)

	for s := 0; s < samples; s++ {
		var magnitudeSum float64
		var coherent complex128
		for c := 0; c < channels; c++ {
			sample := complex128(packet.IQData[c*samples+s])
			magnitudeSum += cmplx.Abs(sample)
			coherent += sample
		}
		rangeProfile[s] = float32(magnitudeSum)
		doppler[s] = float32(magnitudeSum / float64(channels))
		beamformed[s] = float32(cmplx.Abs(coherent) / math.Sqrt(float64(channels)))
	}

	return &radar.ProcessingResult{
		ProcessingTime:    time.Now(),
		SourcePacketID:    packet.SequenceID,
		ProcessingSuccess: true,
		RangeProfile:      rangeProfile,
		DopplerSpectrum:   doppler,
		BeamformedData:    beamformed,
		Statistics: radar.ResultStatistics{
			MemoryUsageBytes: samples * 3 * 4,
		},
	}, nil
}
