package system

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogOptions configures the global logger
type LogOptions struct {
	Dir    string // Directory for daily log files, empty disables file output
	Level  string // debug, info, warn, error
	Format string // console or json
}

// Logger writes to stdout and a daily rotated file
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
	opts   LogOptions
	date   string
	stdout io.Writer
}

// Global logger instance
var globalLogger *Logger

// InitLogger initializes the global logger
func InitLogger(opts LogOptions) error {
	if opts.Format == "" {
		opts.Format = "console"
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	l := &Logger{opts: opts, stdout: os.Stdout}
	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	globalLogger = l
	return nil
}

// ParseLevel converts a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// rotateIfNeeded checks if log rotation is needed (daily)
func (l *Logger) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if l.date == today {
		return nil
	}

	var out io.Writer = l.stdout
	if l.opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: l.stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	if l.opts.Dir != "" {
		if l.file != nil {
			l.file.Close()
		}

		logPath := filepath.Join(l.opts.Dir, fmt.Sprintf("georetail-%s.log", today))
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		// File output stays JSON so it can be shipped as-is
		out = zerolog.MultiLevelWriter(out, file)
	}

	l.logger = zerolog.New(out).With().Timestamp().Logger()
	l.date = today
	return nil
}

// Event starts a log event at the given level
func (l *Logger) Event(level zerolog.Level) *zerolog.Event {
	_ = l.rotateIfNeeded()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger.WithLevel(level)
}

func logf(level zerolog.Level, format string, args ...interface{}) {
	if globalLogger == nil {
		// Not initialized yet (tests, early startup)
		zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
		zl.WithLevel(level).Msgf(format, args...)
		return
	}
	globalLogger.Event(level).Msgf(format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}
	logf(zerolog.DebugLevel, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(zerolog.InfoLevel, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(zerolog.WarnLevel, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(zerolog.ErrorLevel, format, args...)
}

// Close closes the logger
func Close() {
	if globalLogger == nil {
		return
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	if globalLogger.file != nil {
		globalLogger.file.Close()
		globalLogger.file = nil
	}
}
