// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Level controls the minimum severity that gets written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config configures a Logger.
type Config struct {
	Level  Level
	Output io.Writer // defaults to stderr
	Prefix string
}

// Logger is the structured logger used across the pipeline.
// Calls take a message followed by alternating key/value pairs.
type Logger struct {
	l *log.Logger
}

// New creates a Logger from the given config.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          cfg.Prefix,
	})
	l.SetLevel(toLogLevel(cfg.Level))

	return &Logger{l: l}
}

func toLogLevel(lvl Level) log.Level {
	switch lvl {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs at debug level.
func (lg *Logger) Debug(msg string, keyvals ...any) {
	lg.l.Debug(msg, keyvals...)
}

// Info logs at info level.
func (lg *Logger) Info(msg string, keyvals ...any) {
	lg.l.Info(msg, keyvals...)
}

// Warn logs at warn level.
func (lg *Logger) Warn(msg string, keyvals ...any) {
	lg.l.Warn(msg, keyvals...)
}

// Error logs at error level.
func (lg *Logger) Error(msg string, keyvals ...any) {
	lg.l.Error(msg, keyvals...)
}

// With returns a logger that includes the given key/value pairs on every record.
func (lg *Logger) With(keyvals ...any) *Logger {
	return &Logger{l: lg.l.With(keyvals...)}
}
