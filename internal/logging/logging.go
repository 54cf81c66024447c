// Package logging provides the leveled logger used throughout mapmod.
// The logger is an explicit value threaded through the pipeline options
// rather than package-global state, so tests and callers can direct and
// silence output independently.
package logging

import (
	"io"
	"log"
	"os"
)

// Level is the minimum severity a Logger will emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone
)

// Logger writes leveled messages to a single destination.
type Logger struct {
	level   Level
	debug   *log.Logger
	info    *log.Logger
	warning *log.Logger
	error   *log.Logger
}

// New creates a Logger that writes messages of severity lvl or higher to w.
func New(lvl Level, w io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.LUTC
	return &Logger{
		level:   lvl,
		debug:   log.New(w, "D ", flags),
		info:    log.New(w, "I ", flags),
		warning: log.New(w, "W ", flags),
		error:   log.New(w, "E ", flags),
	}
}

// Default returns a Logger at warning level on stderr.
func Default() *Logger {
	return New(LevelWarning, os.Stderr)
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(LevelNone, io.Discard)
}

// Level reports the minimum severity the logger emits.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(msg string, v ...interface{}) {
	if l.level <= LevelDebug {
		l.debug.Printf(msg, v...)
	}
}

func (l *Logger) Info(msg string, v ...interface{}) {
	if l.level <= LevelInfo {
		l.info.Printf(msg, v...)
	}
}

func (l *Logger) Warning(msg string, v ...interface{}) {
	if l.level <= LevelWarning {
		l.warning.Printf(msg, v...)
	}
}

func (l *Logger) Error(msg string, v ...interface{}) {
	if l.level <= LevelError {
		l.error.Printf(msg, v...)
	}
}
