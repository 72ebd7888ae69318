package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"go.uber.org/zap/zapcore"
	yaml "gopkg.in/yaml.v2"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/diagnostics"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

//Duration is a yaml-friendly wrapper accepting "10ms" style strings
//as well as plain nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %v", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

//The file schema sections. Unmarshalling happens over prefilled
//defaults so omitted keys keep their default values.
type receiverSection struct {
	SimulationEnabled  bool     `yaml:"simulationEnabled"`
	PacketSizeBytes    uint32   `yaml:"packetSizeBytes"`
	GenerationInterval Duration `yaml:"generationInterval"`
	ChannelCount       uint32   `yaml:"channelCount"`
	MaxQueueSize       int      `yaml:"maxQueueSize"`
	OverflowPolicy     string   `yaml:"overflowPolicy"`
}

type processorSection struct {
	Strategy          string   `yaml:"strategy"`
	WorkerThreads     int      `yaml:"workerThreads"`
	BatchSize         int      `yaml:"batchSize"`
	ProcessingTimeout Duration `yaml:"processingTimeout"`
	MaxQueueSize      int      `yaml:"maxQueueSize"`
}

type schedulerSection struct {
	WorkerThreads    int    `yaml:"workerThreads"`
	QueueCapacity    int    `yaml:"queueCapacity"`
	SchedulingPolicy string `yaml:"schedulingPolicy"`
	MaxRetryCount    int    `yaml:"maxRetryCount"`
	MaxConcurrent    int    `yaml:"maxConcurrent"`
}

type displaySection struct {
	OutputFormat   string   `yaml:"outputFormat"`
	OutputPath     string   `yaml:"outputPath"`
	UpdateInterval Duration `yaml:"updateInterval"`
	BufferSize     int      `yaml:"bufferSize"`
	AutoRefresh    bool     `yaml:"autoRefresh"`
}

type sentrySection struct {
	Enable   bool   `yaml:"enable"`
	Level    string `yaml:"level"`
	Dsn      string `yaml:"dsn"`
	SetDebug bool   `yaml:"setDebug"`
}

type loggingSection struct {
	Level            string             `yaml:"level"`
	EncodeLogsAsJson bool               `yaml:"encodeLogsAsJson"`
	EnableStdout     bool               `yaml:"enableStdout"`
	File             logger.FileLogging `yaml:"file"`
	Sentry           sentrySection      `yaml:"sentry"`
}

type fileSchema struct {
	Receiver    receiverSection                      `yaml:"receiver"`
	Processor   processorSection                     `yaml:"processor"`
	Scheduler   schedulerSection                     `yaml:"scheduler"`
	Display     displaySection                       `yaml:"display"`
	Logging     loggingSection                       `yaml:"logging"`
	Diagnostics diagnostics.RuntimeDiagnosticsConfig `yaml:"diagnostics"`
}

//AppConfig is the assembled runtime configuration of the radar binary.
type AppConfig struct {
	Receiver    radar.ReceiverConfig
	Processor   radar.ProcessorConfig
	Scheduler   radar.SchedulerConfig
	Display     radar.DisplayConfig
	Logging     logger.ManagerConfig
	Diagnostics diagnostics.RuntimeDiagnosticsConfig
}

func defaultSchema() fileSchema {
	receiver := radar.NewDefaultReceiverConfig()
	processor := radar.NewDefaultProcessorConfig()
	scheduler := radar.NewDefaultSchedulerConfig()
	display := radar.NewDefaultDisplayConfig()
	logging := logger.NewDefaultConfig()

	return fileSchema{
		Receiver: receiverSection{
			SimulationEnabled:  receiver.SimulationEnabled,
			PacketSizeBytes:    receiver.PacketSizeBytes,
			GenerationInterval: Duration(receiver.GenerationInterval),
			ChannelCount:       receiver.ChannelCount,
			MaxQueueSize:       receiver.MaxQueueSize,
			OverflowPolicy:     string(receiver.OverflowPolicy),
		},
		Processor: processorSection{
			Strategy:          processor.Strategy,
			WorkerThreads:     processor.WorkerThreads,
			BatchSize:         processor.BatchSize,
			ProcessingTimeout: Duration(processor.ProcessingTimeout),
			MaxQueueSize:      processor.MaxQueueSize,
		},
		Scheduler: schedulerSection{
			WorkerThreads:    scheduler.WorkerThreads,
			QueueCapacity:    scheduler.QueueCapacity,
			SchedulingPolicy: string(scheduler.SchedulingPolicy),
			MaxRetryCount:    scheduler.MaxRetryCount,
			MaxConcurrent:    scheduler.MaxConcurrent,
		},
		Display: displaySection{
			OutputFormat:   display.OutputFormat,
			OutputPath:     display.OutputPath,
			UpdateInterval: Duration(display.UpdateInterval),
			BufferSize:     display.BufferSize,
			AutoRefresh:    display.AutoRefresh,
		},
		Logging: loggingSection{
			Level:        logging.DefaultTraceLevel.String(),
			EnableStdout: logging.EnableStdoutLogger,
			File:         logging.FileLogging,
		},
		Diagnostics: diagnostics.RuntimeDiagnosticsConfig{
			ComponentName: "radar",
			PprofPort:     "6060",
		},
	}
}

//NewDefaultAppConfig returns the configuration used when no file is given.
func NewDefaultAppConfig() (*AppConfig, error) {
	return defaultSchema().assemble()
}

//Load reads a YAML configuration file over the built-in defaults.
//Omitted keys keep their default values.
func Load(path string) (*AppConfig, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %v: %w", err, radar.ErrInvalidParameter)
	}

	schema := defaultSchema()
	if err := yaml.UnmarshalStrict(content, &schema); err != nil {
		return nil, fmt.Errorf("config: %v: %w", err, radar.ErrInvalidParameter)
	}
	return schema.assemble()
}

//parseLevel resolves a level name through zapcore's text unmarshalling.
func parseLevel(name string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, err
	}
	return level, nil
}

//assemble validates the schema and converts it to the runtime config types.
func (s fileSchema) assemble() (*AppConfig, error) {
	overflow, err := radar.ParseOverflowPolicy(s.Receiver.OverflowPolicy)
	if err != nil {
		return nil, fmt.Errorf("config: receiver: %w", err)
	}
	scheduling, err := radar.ParseSchedulingPolicy(s.Scheduler.SchedulingPolicy)
	if err != nil {
		return nil, fmt.Errorf("config: scheduler: %w", err)
	}
	level, err := parseLevel(s.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("config: logging: %v: %w", err, radar.ErrInvalidParameter)
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"receiver.maxQueueSize", s.Receiver.MaxQueueSize > 0},
		{"receiver.channelCount", s.Receiver.ChannelCount > 0},
		{"receiver.packetSizeBytes", s.Receiver.PacketSizeBytes > 0},
		{"receiver.generationInterval", s.Receiver.GenerationInterval > 0},
		{"processor.batchSize", s.Processor.BatchSize > 0},
		{"processor.workerThreads", s.Processor.WorkerThreads >= 0},
		{"scheduler.workerThreads", s.Scheduler.WorkerThreads >= 0},
		{"scheduler.queueCapacity", s.Scheduler.QueueCapacity > 0},
		{"scheduler.maxRetryCount", s.Scheduler.MaxRetryCount >= 0},
		{"display.bufferSize", s.Display.BufferSize > 0},
		{"display.updateInterval", s.Display.UpdateInterval > 0},
	}
	for _, check := range checks {
		if !check.ok {
			return nil, fmt.Errorf("config: bad value for %s: %w", check.name, radar.ErrInvalidParameter)
		}
	}

	sentryLevel := logger.ErrorLevel
	if s.Logging.Sentry.Level != "" {
		if sentryLevel, err = parseLevel(s.Logging.Sentry.Level); err != nil {
			return nil, fmt.Errorf("config: logging.sentry: %v: %w", err, radar.ErrInvalidParameter)
		}
	}

	return &AppConfig{
		Receiver: radar.ReceiverConfig{
			SimulationEnabled:  s.Receiver.SimulationEnabled,
			PacketSizeBytes:    s.Receiver.PacketSizeBytes,
			GenerationInterval: time.Duration(s.Receiver.GenerationInterval),
			ChannelCount:       s.Receiver.ChannelCount,
			MaxQueueSize:       s.Receiver.MaxQueueSize,
			OverflowPolicy:     overflow,
		},
		Processor: radar.ProcessorConfig{
			Strategy:          s.Processor.Strategy,
			WorkerThreads:     s.Processor.WorkerThreads,
			BatchSize:         s.Processor.BatchSize,
			ProcessingTimeout: time.Duration(s.Processor.ProcessingTimeout),
			MaxQueueSize:      s.Processor.MaxQueueSize,
		},
		Scheduler: radar.SchedulerConfig{
			WorkerThreads:    s.Scheduler.WorkerThreads,
			QueueCapacity:    s.Scheduler.QueueCapacity,
			SchedulingPolicy: scheduling,
			MaxRetryCount:    s.Scheduler.MaxRetryCount,
			MaxConcurrent:    s.Scheduler.MaxConcurrent,
		},
		Display: radar.DisplayConfig{
			OutputFormat:   s.Display.OutputFormat,
			OutputPath:     s.Display.OutputPath,
			UpdateInterval: time.Duration(s.Display.UpdateInterval),
			BufferSize:     s.Display.BufferSize,
			AutoRefresh:    s.Display.AutoRefresh,
		},
		Logging: logger.ManagerConfig{
			FileLogging: s.Logging.File,
			SentryConfig: logger.SentryConfig{
				Enable:   s.Logging.Sentry.Enable,
				Level:    sentryLevel,
				Dsn:      s.Logging.Sentry.Dsn,
				SetDebug: s.Logging.Sentry.SetDebug,
			},
			DefaultTraceLevel:  level,
			EncodeLogsAsJson:   s.Logging.EncodeLogsAsJson,
			Name:               "radar",
			EnableStdoutLogger: s.Logging.EnableStdout,
		},
		Diagnostics: s.Diagnostics,
	}, nil
}
