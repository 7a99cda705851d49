package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(io.Discard)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger for the given level name
func Init(level string, isService bool) {
	InitWithWriter(os.Stdout, level, isService)
}

// InitWithWriter is Init with an explicit console destination
func InitWithWriter(w io.Writer, level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = InfoLevel
	}
	SetLogLevel(lvl)
}

// ParseLevel maps a configuration level name to a LogLevel
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return pkgLogger{}
}

// WithComponent returns a Logger that tags every event with a component name.
func WithComponent(component string) Logger {
	return componentLogger{component: component}
}

type pkgLogger struct{}

func (pkgLogger) Debug() *LogEvent { return Debug() }
func (pkgLogger) Info() *LogEvent  { return Info() }
func (pkgLogger) Warn() *LogEvent  { return Warn() }
func (pkgLogger) Error() *LogEvent { return Error() }

func (pkgLogger) ErrorWithCode(err errors.Error) *LogEvent { return ErrorWithCode(err) }

func (pkgLogger) ErrorWithContext(err errors.Error, component, operation string) *LogEvent {
	ev := ErrorWithCode(err)
	ev.Str("component", component).Str("operation", operation)
	return ev
}

type componentLogger struct {
	component string
}

func (c componentLogger) tag(ev *zerolog.Event) *LogEvent {
	return &LogEvent{ev.Str("component", c.component)}
}

func (c componentLogger) Debug() *LogEvent { return c.tag(log.Debug()) }
func (c componentLogger) Info() *LogEvent  { return c.tag(log.Info()) }
func (c componentLogger) Warn() *LogEvent  { return c.tag(log.Warn()) }
func (c componentLogger) Error() *LogEvent { return c.tag(log.Error()) }

func (c componentLogger) ErrorWithCode(err errors.Error) *LogEvent {
	ev := ErrorWithCode(err)
	ev.Str("component", c.component)
	return ev
}

func (c componentLogger) ErrorWithContext(err errors.Error, component, operation string) *LogEvent {
	ev := ErrorWithCode(err)
	ev.Str("component", component).Str("operation", operation)
	return ev
}
