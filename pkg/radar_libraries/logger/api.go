package logger

import (
	"go.uber.org/zap/zapcore"
)

//FileLogging configures the rolling log file.
//The zero value means file logging is disabled.
type FileLogging struct {
	Dir                    string `yaml:"dir"`
	MaxSizeMB              uint32 `yaml:"maxSizeMB"`
	MaxBackups             uint32 `yaml:"maxBackups"`
	MaxAge                 uint32 `yaml:"maxAge"`
	Compress               bool   `yaml:"compress"`
	LocalTimeFileTimestamp bool   `yaml:"localTimeFileTimestamp"`
}

//ConfigUpdate carries a runtime logging reconfiguration request.
type ConfigUpdate struct {
	LogTraceLevel      map[string]zapcore.Level
	EnableStdoutLogger bool
	FileConfig         FileLogging
	SentryConfig       SentryConfig
}
