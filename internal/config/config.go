package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultIntervalMS          = 16
	DefaultHost                = "127.0.0.1"
	DefaultPort                = 8081
	DefaultLogLevel            = "info"
	DefaultReconnectInterval   = time.Second
	DefaultShutdownTimeout     = 2 * time.Second
	DefaultArchiveBatchSize    = 10
	DefaultArchiveBatchTimeout = 5 * time.Second
	DefaultEnvPrefix           = "RAHOVERLAY"
	ConfigEnvVar               = "RAHOVERLAY_CONFIG"

	configName = "rahoverlay"
	configType = "toml"
)

// DefaultChannels are the overlays served when none are selected
var DefaultChannels = []string{"input_telemetry", "lap_pace", "driver_in_front"}

type Config struct {
	IntervalMS          int           `mapstructure:"interval_ms"`
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	Channels            []string      `mapstructure:"channels"`
	LogLevel            string        `mapstructure:"log_level"`
	ReplayFile          string        `mapstructure:"replay_file"`
	ReplayLoop          bool          `mapstructure:"replay_loop"`
	ReconnectInterval   time.Duration `mapstructure:"reconnect_interval"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
	Archive             bool          `mapstructure:"archive"`
	ArchiveDB           string        `mapstructure:"archive_db"`
	ArchiveBatchSize    int           `mapstructure:"archive_batch_size"`
	ArchiveBatchTimeout time.Duration `mapstructure:"archive_batch_timeout"`
	OverlaysDir         string        `mapstructure:"overlays_dir"`
	OverlayCommand      string        `mapstructure:"overlay_command"`
	PIDDir              string        `mapstructure:"pid_dir"`

	v *viper.Viper
}

// Load reads defaults, the TOML config file, RAHOVERLAY_* environment
// variables and bound command line flags, in increasing precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if o.flags != nil {
		if err := bindFlags(v, o.flags); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	configPath := o.configPath
	if configPath == "" {
		configPath = os.Getenv(ConfigEnvVar)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath("/etc/rahoverlay")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "rahoverlay"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval_ms", DefaultIntervalMS)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("channels", DefaultChannels)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("replay_file", "")
	v.SetDefault("replay_loop", false)
	v.SetDefault("reconnect_interval", DefaultReconnectInterval)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("archive", false)
	v.SetDefault("archive_db", defaultArchiveDB())
	v.SetDefault("archive_batch_size", DefaultArchiveBatchSize)
	v.SetDefault("archive_batch_timeout", DefaultArchiveBatchTimeout)
	v.SetDefault("overlays_dir", "overlays")
	v.SetDefault("overlay_command", "")
	v.SetDefault("pid_dir", os.TempDir())
}

func defaultArchiveDB() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "rahoverlay", "laps.db")
	}
	return filepath.Join(os.TempDir(), "rahoverlay", "laps.db")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidConfig, fmt.Errorf("failed to unmarshal config: %w", err))
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Channels = normalizeChannels(cfg.Channels)
	cfg.v = v

	return cfg, nil
}

func normalizeChannels(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		// comma separated values arrive as one element from env vars
		for _, name := range strings.Split(raw, ",") {
			name = strings.Trim(strings.TrimSpace(name), "/")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Validate checks every field and returns the first ValidationError found
func (c *Config) Validate() error {
	switch {
	case c.IntervalMS <= 0:
		return newValidationError(errors.ErrInvalidInterval, "interval_ms", c.IntervalMS, "must be positive")
	case c.Port <= 0 || c.Port > 65535:
		return newValidationError(errors.ErrInvalidPort, "port", c.Port, "must be between 1 and 65535")
	case len(c.Channels) == 0:
		return newValidationError(errors.ErrNoChannels, "channels", c.Channels, "at least one channel is required")
	case !LogLevel(c.LogLevel).IsValid():
		return newValidationError(errors.ErrInvalidLogLevel, "log_level", c.LogLevel, "must be one of debug, info, warning, error")
	case c.ShutdownTimeout <= 0:
		return newValidationError(errors.ErrInvalidInterval, "shutdown_timeout", c.ShutdownTimeout, "must be positive")
	case c.ReconnectInterval <= 0:
		return newValidationError(errors.ErrInvalidInterval, "reconnect_interval", c.ReconnectInterval, "must be positive")
	case c.Archive && c.ArchiveDB == "":
		return newValidationError(errors.ErrInvalidConfig, "archive_db", c.ArchiveDB, "required when archive is enabled")
	}
	return nil
}

// Watch re-reads the config file whenever it changes on disk and hands the
// reloaded, validated configuration to callback. Invalid reloads are skipped.
func (c *Config) Watch(ctx context.Context, callback func(Provider)) error {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return nil
	}

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			return
		}
		if err := next.Validate(); err != nil {
			return
		}
		callback(next)
	})
	c.v.WatchConfig()

	return nil
}

// ConfigFileUsed returns the path of the loaded config file, if any
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c *Config) GetListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) GetChannels() []string {
	return append([]string(nil), c.Channels...)
}

func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

func (c *Config) IsArchiveEnabled() bool {
	return c.Archive
}

func (c *Config) GetArchiveDBPath() string {
	return c.ArchiveDB
}

type validationError struct {
	code   errors.ErrorCode
	field  string
	value  interface{}
	reason string
}

func newValidationError(code errors.ErrorCode, field string, value interface{}, reason string) *validationError {
	return &validationError{code: code, field: field, value: value, reason: reason}
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", e.code, e.field, e.value, e.reason)
}

func (e *validationError) Field() string { return e.field }

func (e *validationError) Value() interface{} { return e.value }

func (e *validationError) Reason() string { return e.reason }

func (e *validationError) Code() errors.ErrorCode { return e.code }

var _ ValidationError = (*validationError)(nil)

// flagLookup is the subset of *pflag.FlagSet used for binding
type flagLookup interface {
	Lookup(name string) *pflag.Flag
}

// WithFlags binds command line flags registered by RegisterFlags
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) error {
		if fs == nil {
			return fmt.Errorf("nil flag set")
		}
		o.flags = fs
		return nil
	}
}
