package config

import (
	"github.com/spf13/pflag"
)

// Flags holds CLI overrides for fields of Config. An empty string means
// "not set on the command line".
type Flags struct {
	ConfigPath string
	DBPath     string
	SinkType   string
	DeviceName     string
	ListenAddr     string
	HTTPListenAddr string
	LogLevel       string
}

// RegisterFlags binds fs to a Flags value using the engine's
// conventional long/short names.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.ConfigPath, "config", "c", "aaeq.yaml", "Path to the YAML configuration file.")
	fs.StringVar(&f.DBPath, "db", "", "Override store.db_path.")
	fs.StringVar(&f.SinkType, "sink", "", "Override output.sink_type (localdac, dlna, airplay).")
	fs.StringVarP(&f.DeviceName, "output-device", "o", "", "Override output.device_name.")
	fs.StringVarP(&f.ListenAddr, "listen", "l", "", "Override aanp.listen_addr.")
	fs.StringVar(&f.HTTPListenAddr, "http-listen", "", "Override frontend.listen_addr.")
	fs.StringVar(&f.LogLevel, "log-level", "", "Override log_level (debug, info, warn, error).")
	return f
}

// Apply overlays non-empty flag values onto cfg, mutating it in place.
func (f *Flags) Apply(cfg *Config) {
	if f.DBPath != "" {
		cfg.Store.DBPath = f.DBPath
	}
	if f.SinkType != "" {
		cfg.Output.SinkType = f.SinkType
	}
	if f.DeviceName != "" {
		cfg.Output.DeviceName = f.DeviceName
	}
	if f.ListenAddr != "" {
		cfg.AANP.ListenAddr = f.ListenAddr
	}
	if f.HTTPListenAddr != "" {
		cfg.Frontend.ListenAddr = f.HTTPListenAddr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
}
