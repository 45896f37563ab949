package mapkv

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is a logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything.
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger receives diagnostic messages from a Store. Implementations must be
// safe for concurrent use.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// DefaultLogger writes leveled lines through the standard log package.
//
// Format: YYYY/MM/DD HH:MM:SS LEVEL message
type DefaultLogger struct {
	logger *log.Logger
	level  Level
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

func (l *DefaultLogger) output(level Level, format string, args ...any) {
	if level > l.level {
		return
	}
	l.logger.Output(3, level.String()+" "+fmt.Sprintf(format, args...))
}

// Errorf implements Logger.
func (l *DefaultLogger) Errorf(format string, args ...any) { l.output(LevelError, format, args...) }

// Warnf implements Logger.
func (l *DefaultLogger) Warnf(format string, args ...any) { l.output(LevelWarn, format, args...) }

// Infof implements Logger.
func (l *DefaultLogger) Infof(format string, args ...any) { l.output(LevelInfo, format, args...) }

// Debugf implements Logger.
func (l *DefaultLogger) Debugf(format string, args ...any) { l.output(LevelDebug, format, args...) }

type discardLogger struct{}

func (discardLogger) Errorf(string, ...any) {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Debugf(string, ...any) {}

// Discard drops every message.
var Discard Logger = discardLogger{}
