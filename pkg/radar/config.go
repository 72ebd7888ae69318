package radar

import (
	"fmt"
	"time"
)

//OverflowPolicy is the rule applied when an enqueue would exceed queue capacity.
type OverflowPolicy string

const (
	//DropOldest evicts the queue head to make room for the incoming item.
	DropOldest OverflowPolicy = "drop_oldest"
	//DropNewest discards the incoming item and reports saturation to the caller.
	DropNewest OverflowPolicy = "drop_newest"
	//BlockOnFull blocks the producer until space frees or the queue shuts down.
	BlockOnFull OverflowPolicy = "block"
)

//ParseOverflowPolicy validates a policy string from configuration.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case DropOldest, DropNewest, BlockOnFull:
		return OverflowPolicy(s), nil
	}
	return "", fmt.Errorf("unknown overflow policy %q: %w", s, ErrInvalidParameter)
}

//SchedulingPolicy selects the ordering discipline of the scheduler task queue.
type SchedulingPolicy string

const (
	SchedulingFIFO     SchedulingPolicy = "fifo"
	SchedulingPriority SchedulingPolicy = "priority"
)

//ParseSchedulingPolicy validates a scheduling policy string from configuration.
func ParseSchedulingPolicy(s string) (SchedulingPolicy, error) {
	switch SchedulingPolicy(s) {
	case SchedulingFIFO, SchedulingPriority:
		return SchedulingPolicy(s), nil
	}
	return "", fmt.Errorf("unknown scheduling policy %q: %w", s, ErrInvalidParameter)
}

//ReceiverConfig controls the acquisition stage.
type ReceiverConfig struct {
	SimulationEnabled  bool           `yaml:"simulationEnabled"`
	PacketSizeBytes    uint32         `yaml:"packetSizeBytes"`
	GenerationInterval time.Duration  `yaml:"generationInterval"`
	ChannelCount       uint32         `yaml:"channelCount"`
	MaxQueueSize       int            `yaml:"maxQueueSize"`
	OverflowPolicy     OverflowPolicy `yaml:"overflowPolicy"`
}

//NewDefaultReceiverConfig returns the defaults used when configuration omits values.
func NewDefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		SimulationEnabled:  true,
		PacketSizeBytes:    4096,
		GenerationInterval: 10 * time.Millisecond,
		ChannelCount:       4,
		MaxQueueSize:       1000,
		OverflowPolicy:     DropOldest,
	}
}

//ProcessorConfig controls the processing stage.
type ProcessorConfig struct {
	Strategy          string        `yaml:"strategy"`
	WorkerThreads     int           `yaml:"workerThreads"`
	BatchSize         int           `yaml:"batchSize"`
	ProcessingTimeout time.Duration `yaml:"processingTimeout"`
	MaxQueueSize      int           `yaml:"maxQueueSize"`
}

func NewDefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Strategy:          "cpu_basic",
		WorkerThreads:     4,
		BatchSize:         16,
		ProcessingTimeout: 100 * time.Millisecond,
		MaxQueueSize:      256,
	}
}

//SchedulerConfig controls the task scheduler thread pool and queueing.
type SchedulerConfig struct {
	WorkerThreads    int              `yaml:"workerThreads"`
	QueueCapacity    int              `yaml:"queueCapacity"`
	SchedulingPolicy SchedulingPolicy `yaml:"schedulingPolicy"`
	MaxRetryCount    int              `yaml:"maxRetryCount"`
	MaxConcurrent    int              `yaml:"maxConcurrent"`
}

func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WorkerThreads:    4,
		QueueCapacity:    500,
		SchedulingPolicy: SchedulingFIFO,
		MaxRetryCount:    3,
		MaxConcurrent:    0, //0 means same as WorkerThreads
	}
}

//DisplayConfig controls the display controller stage.
type DisplayConfig struct {
	OutputFormat   string        `yaml:"outputFormat"`
	OutputPath     string        `yaml:"outputPath"`
	UpdateInterval time.Duration `yaml:"updateInterval"`
	BufferSize     int           `yaml:"bufferSize"`
	AutoRefresh    bool          `yaml:"autoRefresh"`
}

func NewDefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		OutputFormat:   "text",
		OutputPath:     "./output",
		UpdateInterval: 33 * time.Millisecond,
		BufferSize:     100,
		AutoRefresh:    true,
	}
}
