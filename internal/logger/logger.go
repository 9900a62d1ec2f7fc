// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps logrus to provide level-based filtering and formatted output, with optional
// size-based file rotation through lumberjack.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the default logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	File   string // empty logs to stderr only

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	// Global logger instance
	defaultLogger *logrus.Logger
)

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	InitWithOptions(Options{Level: level, Format: format})
}

// InitWithOptions initializes the default logger. When a file is configured, output
// goes to both stderr and the rotated file.
func InitWithOptions(opts Options) {
	l := logrus.New()
	l.SetLevel(ParseLevel(opts.Level))

	if strings.ToLower(opts.Format) == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = io.MultiWriter(os.Stderr, RotatingFile(opts.File, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays))
	}
	l.SetOutput(out)

	defaultLogger = l
}

// RotatingFile returns a size-rotated log file writer. Zero values fall back to
// 10 MB per file, 5 backups and 30 days.
func RotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) io.Writer {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 5
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// ParseLevel maps a level name to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel changes the level of the default logger at runtime
func SetLevel(level string) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(ParseLevel(level))
	}
}

// Logrus returns the underlying logger, or nil before Init
func Logrus() *logrus.Logger {
	return defaultLogger
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debugf(format, args...)
	}
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Infof(format, args...)
	}
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warnf(format, args...)
	}
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Errorf(format, args...)
	}
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Fatalf(format, args...)
	}
	fmt.Fprintf(os.Stderr, "[FATAL] "+format+"\n", args...)
	os.Exit(1)
}
