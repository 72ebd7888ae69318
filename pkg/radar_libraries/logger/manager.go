package logger

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	PanicLevel = zapcore.PanicLevel
	FatalLevel = zapcore.FatalLevel
)

const DefaultLoggerName = ""

type Manager interface {
	//Default returns the default logger (name="")
	Default() Logger
	//GetOrCreateLogger creates new logger in the root of the manager loggers or returns the existing one
	GetOrCreateLogger(logger string) Logger
	//UpdateConfig applies a runtime logging reconfiguration
	UpdateConfig(update ConfigUpdate)
	//GetTraceLevel returns the trace level of a specific logger.
	//returns error if such logger does not exist
	//logger name must be in period separated string e.g: "foo.bar"
	GetTraceLevel(name string) (zapcore.Level, error)
	//SetTraceLevel recursively sets the level of logger and its sub-loggers to the provided one
	//name must be in period separated string e.g: "foo.bar"
	SetTraceLevel(name string, level zapcore.Level) error
	//ResetTraceLevel sets the trace level to ALL loggers
	ResetTraceLevel(level zapcore.Level)

	//GetFormattedLoggerNames returns formatted version to show the current topics and levels
	GetFormattedLoggerNames() string
	//Close closes the file logger safely and checks for panic for reporting to sentry.
	//The method should be deferred in the main function of the program
	Close()
}

//ManagerConfig holds logger manager initiative configurations.
//NewDefaultConfig creates default config for that purpose
type ManagerConfig struct {
	FileLogging
	SentryConfig

	//DefaultTraceLevel is used when creating a new Logger.
	//sub-loggers will be created with their parent Logger trace level
	DefaultTraceLevel zapcore.Level
	// EncodeLogsAsJson makes the log framework log JSON
	EncodeLogsAsJson bool
	//Manager Name
	Name               string
	EnableStdoutLogger bool
}

type manager struct {
	confLock sync.RWMutex
	loggers  map[string]*logger // logger name -> logger

	stdoutWriter *stdoutWriter
	fileWriter   *rollingFileWriter
	sentryWriter *sentryWriter

	configCh chan ConfigUpdate
	conf     ManagerConfig
}

func (m *manager) GetOrCreateLogger(name string) Logger {
	m.confLock.RLock()
	if logger, ok := m.loggers[name]; ok {
		m.confLock.RUnlock()
		return logger
	}
	m.confLock.RUnlock()
	l := m.loggers[DefaultLoggerName].getOrCreateInternalSubLogger(name)

	l.SetTraceLevel(m.conf.DefaultTraceLevel)
	m.confLock.Lock()
	defer m.confLock.Unlock()
	m.loggers[name] = l

	return l
}

func (m *manager) UpdateConfig(config ConfigUpdate) {
	m.configCh <- config
}

func (m *manager) waitForConfigUpdate() {
	for conf := range m.configCh {
		m.safeUpdateConfig(conf)
	}
}

func (m *manager) safeUpdateConfig(conf ConfigUpdate) {
	m.confLock.Lock()
	defer m.confLock.Unlock()
	if conf.FileConfig != (FileLogging{}) {
		if m.fileWriter.logger != nil {
			m.fileWriter.Close()
		}
		m.fileWriter.enableFileLogger(conf.FileConfig)
	}
	if conf.SentryConfig != (SentryConfig{}) {
		m.sentryWriter.updateSentryConfig(conf.SentryConfig)
	}

	m.stdoutWriter.isEnabled = conf.EnableStdoutLogger

	if conf.LogTraceLevel != nil {
		for logName, level := range conf.LogTraceLevel {
			l, ok := m.loggers[logName]
			if ok {
				l.SetTraceLevel(level)
			}
		}
	}
}

func (m *manager) SetTraceLevel(name string, level zapcore.Level) error {
	m.confLock.Lock()
	defer m.confLock.Unlock()

	if logger, ok := m.loggers[name]; ok {
		logger.SetTraceLevel(level)
		return nil
	}

	return fmt.Errorf("logger %s not found", name)
}

func (m *manager) GetTraceLevel(name string) (zapcore.Level, error) {
	m.confLock.RLock()
	defer m.confLock.RUnlock()

	if logger, ok := m.loggers[name]; ok {
		return logger.level.Level(), nil
	}

	return 0, fmt.Errorf("logger %s not found", name)
}

func (m *manager) Default() Logger {
	if logger, ok := m.loggers[DefaultLoggerName]; ok {
		return logger
	}

	//Should never happen
	return nil
}

func (m *manager) ResetTraceLevel(level zapcore.Level) {
	m.confLock.Lock()
	defer m.confLock.Unlock()

	m.conf.DefaultTraceLevel = level

	for _, logger := range m.loggers {
		logger.SetTraceLevel(m.conf.DefaultTraceLevel)
	}
}

func (m *manager) GetFormattedLoggerNames() string {
	m.confLock.RLock()
	defer m.confLock.RUnlock()

	str := bytes.NewBufferString("")
	out := tabwriter.NewWriter(str, 1, 10, 5, ' ', tabwriter.Debug)

	//Header
	fmt.Fprintln(out, "TOPIC\t", "LEVEL")
	fmt.Fprintln(out, "-----\t", "-----")

	topics := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		topics = append(topics, name)
	}

	sort.Strings(topics)

	for _, name := range topics {
		if name != "" {
			logger := m.loggers[name]
			fmt.Fprintln(out, name, "\t", logger.level.Level().String())
		}
	}

	out.Flush()

	return str.String()
}

func (m *manager) Close() {
	m.confLock.Lock()
	defer m.confLock.Unlock()

	if m.fileWriter != nil {
		err := m.fileWriter.Close()
		if err != nil {
			m.Default().Errorf("Could not close file writer: %s", err)
		}
		m.fileWriter = nil
	}
	if m.sentryWriter != nil && m.conf.SentryConfig.Enable {
		m.sentryWriter.RecoverRepanicSentry(true)
	}
}

type stdoutWriter struct {
	isEnabled bool
}

func (sl *stdoutWriter) Write(p []byte) (n int, err error) {
	if !sl.isEnabled {
		return 0, nil
	}
	return os.Stdout.Write(p)
}

func (sl *stdoutWriter) Sync() error {
	return os.Stdout.Sync()
}

//NewDefaultConfig returns default suggested config
func NewDefaultConfig() ManagerConfig {
	c := ManagerConfig{
		DefaultTraceLevel:  InfoLevel,
		EncodeLogsAsJson:   false,
		Name:               "radar",
		EnableStdoutLogger: true,
		SentryConfig:       SentryConfig{},
		FileLogging: FileLogging{
			Dir:                    "./",
			MaxSizeMB:              10,
			MaxBackups:             0,
			MaxAge:                 7,
			Compress:               false,
			LocalTimeFileTimestamp: false,
		},
	}

	return c
}

func NewManager(conf ManagerConfig) (Manager, error) {
	if conf == (ManagerConfig{}) {
		return nil, fmt.Errorf("no logger config supplied")
	}

	m := &manager{
		loggers:      make(map[string]*logger),
		stdoutWriter: &stdoutWriter{conf.EnableStdoutLogger},
		fileWriter:   newRollingFile(),
		conf:         conf,
		configCh:     make(chan ConfigUpdate, 1),
	}

	if conf.FileLogging != (FileLogging{}) {
		m.fileWriter.enableFileLogger(conf.FileLogging)
	}

	l := newLogger(conf, m.stdoutWriter, m.fileWriter, nil)

	sentryLoggerClient := newSentryLogger(conf.SentryConfig, l.getOrCreateInternalSubLogger("sentry"))
	if sentryLoggerClient == nil {
		m.conf.SentryConfig.Enable = false
	}
	l.sentryLogger = sentryLoggerClient
	m.sentryWriter = sentryLoggerClient

	m.loggers[DefaultLoggerName] = l
	zap.ReplaceGlobals(l.zapLogger)
	go m.waitForConfigUpdate()

	return m, nil
}
