package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"

	"github.com/wendizhou99-cell/Radar/pkg/version"
)

type rollingFileWriter struct {
	online atomic.Bool
	logger *lumberjack.Logger
}

var _ zapcore.WriteSyncer = &rollingFileWriter{}

func (l *rollingFileWriter) Sync() error {
	return nil
}

func (l *rollingFileWriter) Write(p []byte) (n int, err error) {
	if !l.online.Load() {
		return len(p), nil
	}

	return l.logger.Write(p)
}

func (l *rollingFileWriter) Close() error {
	if !l.online.Load() {
		return nil
	}
	l.online.Store(false)
	return l.logger.Close()
}

func (l *rollingFileWriter) enableFileLogger(config FileLogging) {
	if l.online.Load() {
		fmt.Println("Rolling File Logger Already Online")
		return
	}

	dir := config.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir = fmt.Sprintf("%v%c", dir, os.PathSeparator)
	}

	logger := &lumberjack.Logger{
		Filename:   fmt.Sprintf("%v%v.log", dir, filepath.Base(os.Args[0])),
		MaxSize:    int(config.MaxSizeMB),  //megabytes
		MaxAge:     int(config.MaxAge),     //days
		MaxBackups: int(config.MaxBackups), //files
		LocalTime:  config.LocalTimeFileTimestamp,
		Compress:   config.Compress,
	}

	fmt.Printf("==> Logs captured under %v\n", logger.Filename)

	l.logger = logger

	_, err := l.logger.Write([]byte(fmt.Sprintf("\n\n=== [%v][%v][%v][%v] ===\n\n", os.Getpid(), strings.Join(os.Args, " "), version.GetVersion(), version.GetRepoVersion())))
	if err != nil {
		fmt.Println("Error log writing to file:", err)
	}
	l.online.Store(true)
}

// new Rolling File log
func newRollingFile() *rollingFileWriter {
	return &rollingFileWriter{}
}
