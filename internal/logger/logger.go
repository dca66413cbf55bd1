package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled logging on top of logrus
type Logger struct {
	log *logrus.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = New(false, os.Stderr)
}

// New creates a new logger instance writing text records to output
func New(verbose bool, output io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	lg := &Logger{log: l}
	lg.SetVerbose(verbose)
	return lg
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the default logger instance
func Default() *Logger {
	return defaultLogger
}

// SetVerbose switches between info and debug level
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.log.SetLevel(logrus.DebugLevel)
		return
	}
	l.log.SetLevel(logrus.InfoLevel)
}

// IsVerbose returns whether verbose logging is enabled
func (l *Logger) IsVerbose() bool {
	return l.log.IsLevelEnabled(logrus.DebugLevel)
}

// WithFields returns an entry carrying structured context, e.g. the migration
// being applied
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// Info logs an informational message (always shown)
func (l *Logger) Info(format string, args ...any) {
	l.log.Infof(format, args...)
}

// Debug logs a debug message (only shown if verbose is enabled)
func (l *Logger) Debug(format string, args ...any) {
	l.log.Debugf(format, args...)
}

// Warn logs a warning (always shown)
func (l *Logger) Warn(format string, args ...any) {
	l.log.Warnf(format, args...)
}

// Error logs an error message (always shown)
func (l *Logger) Error(format string, args ...any) {
	l.log.Errorf(format, args...)
}

// Package-level functions that use the default logger

// SetVerbose enables or disables verbose logging on the default logger
func SetVerbose(verbose bool) {
	defaultLogger.SetVerbose(verbose)
}

// IsVerbose returns whether verbose logging is enabled on the default logger
func IsVerbose() bool {
	return defaultLogger.IsVerbose()
}

// WithFields returns an entry of the default logger carrying fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}

// Info logs an informational message using the default logger
func Info(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

// Debug logs a debug message using the default logger (only shown if verbose is enabled)
func Debug(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

// Warn logs a warning using the default logger
func Warn(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger
func Error(format string, args ...any) {
	defaultLogger.Error(format, args...)
}
