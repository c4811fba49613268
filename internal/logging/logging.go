// Package logging is a small leveled logger on top of the standard
// library's log.Logger, the same shape as skipor-memcached's log package,
// extended with named sub-loggers (so a component can prefix its output,
// e.g. logging.Default().Named("store")) and file rotation via
// gopkg.in/natefinch/lumberjack.v2.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a subset of github.com/uber-common/bark.Logger, matching the
// teacher's interface.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	// Named returns a Logger that prefixes every message with name,
	// nested under any existing prefix.
	Named(name string) Logger
}

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	}
	panic("logging: unexpected level " + strconv.Itoa(int(l)))
}

var stringToLevel = func() map[string]Level {
	levels := []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel}
	res := make(map[string]Level, len(levels))
	for _, l := range levels {
		res[l.String()] = l
	}
	return res
}()

func LevelFromString(s string) (Level, error) {
	l, ok := stringToLevel[s]
	if !ok {
		return 0, errors.New("logging: invalid level " + s)
	}
	return l, nil
}

const stdLoggerFlags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile

// New builds a Logger that writes lines at or above level to w.
func New(level Level, w io.Writer) Logger {
	return &logger{std: log.New(w, "", stdLoggerFlags), level: level}
}

// RotatingConfig configures a file-backed Logger that rotates via
// lumberjack rather than growing without bound.
type RotatingConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotating builds a Logger whose output is a lumberjack-managed file.
func NewRotating(level Level, cfg RotatingConfig) Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return New(level, w)
}

type logger struct {
	std    *log.Logger
	level  Level
	prefix string
}

func (l *logger) Named(name string) Logger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &logger{std: l.std, level: l.level, prefix: prefix}
}

func (l *logger) Debug(args ...interface{})                 { l.log(DebugLevel, fmt.Sprint(args...)) }
func (l *logger) Debugf(format string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Info(args ...interface{})                  { l.log(InfoLevel, fmt.Sprint(args...)) }
func (l *logger) Infof(format string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Warn(args ...interface{})                  { l.log(WarnLevel, fmt.Sprint(args...)) }
func (l *logger) Warnf(format string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Error(args ...interface{})                 { l.log(ErrorLevel, fmt.Sprint(args...)) }
func (l *logger) Errorf(format string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(format, args...)) }

func (l *logger) Fatal(args ...interface{}) {
	l.log(FatalLevel, fmt.Sprint(args...))
	os.Exit(1)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.log(FatalLevel, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (l *logger) log(level Level, msg string) {
	if level < l.level {
		return
	}
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	l.std.Output(3, level.String()+": "+msg)
}

var (
	defaultOnce sync.Once
	defaultLog  Logger
)

// Default returns the process-wide Logger, writing InfoLevel and above to
// stderr until ConfigureDefault replaces it.
func Default() Logger {
	defaultOnce.Do(func() {
		defaultLog = New(InfoLevel, os.Stderr)
	})
	return defaultLog
}

// ConfigureDefault replaces the process-wide Logger returned by Default.
// Intended to be called once during startup, after configuration has been
// loaded.
func ConfigureDefault(l Logger) {
	defaultOnce.Do(func() {})
	defaultLog = l
}
