package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int

// Levels in ascending severity.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// levelNames index by LogLevel.
var levelNames = [...]string{"debug", "info", "warn", "error"}

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
	logger       = log.New(os.Stderr, "", log.LstdFlags)
	root         = &Logger{}
)

// String returns the lower-case level name.
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", int(l))
}

func (l LogLevel) tag() string {
	return "[" + strings.ToUpper(l.String()) + "] "
}

// ParseLevel converts a level name into a LogLevel. Unknown names map to
// LevelInfo and ok is false.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// GetLevel returns the current level. It is read from DEBUG or LOG_LEVEL
// on first use; a truthy DEBUG wins.
func GetLevel() LogLevel {
	levelOnce.Do(func() {
		level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			level = LevelDebug
		}
		currentLevel.Store(int32(level))
	})
	return LogLevel(currentLevel.Load())
}

// SetLevel overrides the level derived from the environment.
func SetLevel(level LogLevel) {
	GetLevel()
	currentLevel.Store(int32(level))
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Logger prefixes messages with a component name. The zero Logger has no
// prefix.
type Logger struct {
	prefix string
}

// For returns a component logger, e.g. For("cleanup").
func For(component string) *Logger {
	return &Logger{prefix: "[" + component + "] "}
}

func (l *Logger) log(level LogLevel, format string, args []any) {
	if GetLevel() > level {
		return
	}
	_ = logger.Output(3, level.tag()+l.prefix+fmt.Sprintf(format, args...))
}

// Debug logs a component debug message.
func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args) }

// Info logs a component info message.
func (l *Logger) Info(format string, args ...any) { l.log(LevelInfo, format, args) }

// Warn logs a component warning.
func (l *Logger) Warn(format string, args ...any) { l.log(LevelWarn, format, args) }

// Error logs a component error.
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args) }

// Debug logs at debug level (DEBUG=true or LOG_LEVEL=debug).
func Debug(format string, args ...any) { root.log(LevelDebug, format, args) }

// Info logs at info level.
func Info(format string, args ...any) { root.log(LevelInfo, format, args) }

// Warn logs at warn level.
func Warn(format string, args ...any) { root.log(LevelWarn, format, args) }

// Error logs at error level.
func Error(format string, args ...any) { root.log(LevelError, format, args) }

// Fatal logs and exits with status 1.
func Fatal(format string, args ...any) {
	logger.Fatalf("[FATAL] "+format, args...)
}

// Printf writes regardless of level. The request log uses it.
func Printf(format string, args ...any) {
	logger.Printf(format, args...)
}
