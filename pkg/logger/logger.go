package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger configured from service configuration.
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

// Options mirrors the log section of the service configuration. It is kept
// free of a config import so the config package can log during loading.
type Options struct {
	Level  string
	Format string
	Output string
	File   string
}

var (
	mu     sync.RWMutex
	global = newDefault()
)

func newDefault() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: l}
}

// NewLogger builds a logger from options.
func NewLogger(opts Options) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.ToLower(opts.Format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var file *os.File
	switch strings.ToLower(opts.Output) {
	case "file":
		if opts.File != "" {
			_ = os.MkdirAll(filepath.Dir(opts.File), 0o755)
			f, ferr := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if ferr == nil {
				file = f
				l.SetOutput(io.MultiWriter(os.Stdout, f))
			} else {
				l.SetOutput(os.Stdout)
			}
		}
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{entry: l, file: file}
}

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// Close flushes and closes a file-backed logger.
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global.entry
}

// Info logs at info level with structured fields.
func Info(msg string, fields map[string]interface{}) {
	get().WithFields(logrus.Fields(fields)).Info(msg)
}

// Warn logs at warn level with structured fields.
func Warn(msg string, fields map[string]interface{}) {
	get().WithFields(logrus.Fields(fields)).Warn(msg)
}

// Error logs at error level with structured fields.
func Error(msg string, fields map[string]interface{}) {
	get().WithFields(logrus.Fields(fields)).Error(msg)
}

// Debug logs at debug level with structured fields.
func Debug(msg string, fields map[string]interface{}) {
	get().WithFields(logrus.Fields(fields)).Debug(msg)
}

func Infof(format string, args ...interface{})  { get().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { get().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }

// Fatal logs the message and exits the process.
func Fatal(msg string) { get().Fatal(msg) }
