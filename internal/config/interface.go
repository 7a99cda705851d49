package config

import (
	"context"
	"time"
)

// Provider defines the interface for accessing configuration values
// All configuration values are immutable after initial loading; Watch
// delivers a fresh Provider instead of mutating the current one
type Provider interface {
	// GetInterval returns the telemetry polling period
	GetInterval() time.Duration

	// GetListenAddr returns the host:port the HTTP server binds to
	GetListenAddr() string

	// GetChannels returns the selected overlay channel names
	GetChannels() []string

	// GetLogLevel returns the configured logging level
	GetLogLevel() string

	// IsArchiveEnabled returns whether completed laps are stored
	IsArchiveEnabled() bool

	// GetArchiveDBPath returns the path to the lap archive database
	GetArchiveDBPath() string
}

// Watcher enables live configuration updates
type Watcher interface {
	// Watch starts watching for configuration changes
	// The callback is called when configuration changes are detected
	Watch(ctx context.Context, callback func(Provider)) error
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	flags      flagLookup
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "RAHOVERLAY"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// ValidationError represents a configuration validation error
type ValidationError interface {
	error
	// Field returns the name of the invalid field
	Field() string
	// Value returns the invalid value
	Value() interface{}
	// Reason returns why the value is invalid
	Reason() string
}
