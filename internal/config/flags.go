package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flag name -> config key
var flagKeys = map[string]string{
	"interval":           "interval_ms",
	"host":               "host",
	"port":               "port",
	"channels":           "channels",
	"log-level":          "log_level",
	"replay":             "replay_file",
	"replay-loop":        "replay_loop",
	"reconnect-interval": "reconnect_interval",
	"shutdown-timeout":   "shutdown_timeout",
	"archive":            "archive",
	"archive-db":         "archive_db",
	"overlays-dir":       "overlays_dir",
	"overlay-command":    "overlay_command",
}

// RegisterFlags defines the serve flags on fs. Zero values here never
// override the config file; only flags set on the command line do.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("interval", DefaultIntervalMS, "Telemetry polling period in milliseconds")
	fs.String("host", DefaultHost, "HTTP listen host")
	fs.Int("port", DefaultPort, "HTTP listen port")
	fs.StringSlice("channels", DefaultChannels, "Overlay channels to open")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("replay", "", "Replay recorded telemetry from a YAML file")
	fs.Bool("replay-loop", false, "Restart the replay when it ends")
	fs.Duration("reconnect-interval", DefaultReconnectInterval, "Delay between simulator connection attempts")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "Maximum time to wait for the poller on shutdown")
	fs.Bool("archive", false, "Store completed laps in the lap archive")
	fs.String("archive-db", "", "Path to the lap archive database")
	fs.String("overlays-dir", "overlays", "Directory containing overlay properties.json files")
	fs.String("overlay-command", "", "Command used to open overlay windows")
}

func bindFlags(v *viper.Viper, fs flagLookup) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		// only explicit flags win over file and env values
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
