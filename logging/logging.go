// Package logging provides the leveled, two-sink logger used across the
// simulator. Results (dump and statistics) always go to the normal sink;
// operation records go to the verbose sink at Normal level and above; Debug
// adds per-command traces.
package logging

import (
	"io"
	"log"
)

// Level is the verbosity of a Logger.
type Level int

const (
	// Silent emits only results on the normal sink.
	Silent Level = iota
	// Normal additionally emits bus operations, snoop responses, and L1
	// messages on the verbose sink.
	Normal
	// Debug additionally emits per-command entry/exit traces.
	Debug
)

// A Logger pairs a normal and a verbose sink with a verbosity level. Both
// sinks are plain log.Loggers without prefix or flags so output is
// reproducible across runs.
type Logger struct {
	level   Level
	normal  *log.Logger
	verbose *log.Logger
}

// New creates a Logger writing results to normalSink and operation records
// to verboseSink.
func New(level Level, normalSink, verboseSink io.Writer) *Logger {
	return &Logger{
		level:   level,
		normal:  log.New(normalSink, "", 0),
		verbose: log.New(verboseSink, "", 0),
	}
}

// Level returns the verbosity of the logger.
func (l *Logger) Level() Level {
	return l.level
}

// Printf writes a result line to the normal sink regardless of level.
func (l *Logger) Printf(format string, v ...any) {
	l.normal.Printf(format, v...)
}

// Logf writes an operation record to the verbose sink at Normal level and
// above.
func (l *Logger) Logf(format string, v ...any) {
	if l.level >= Normal {
		l.verbose.Printf(format, v...)
	}
}

// Debugf writes a trace line to the verbose sink at Debug level.
func (l *Logger) Debugf(format string, v ...any) {
	if l.level >= Debug {
		l.verbose.Printf(format, v...)
	}
}
