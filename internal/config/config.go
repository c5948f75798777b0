// Package config loads and validates the engine's on-disk YAML
// configuration, with CLI flags (internal/config/flags.go) layered on
// top as overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Output   OutputConfig   `yaml:"output"`
	Resolver ResolverConfig `yaml:"resolver"`
	Store    StoreConfig    `yaml:"store"`
	AANP     AANPConfig     `yaml:"aanp"`
	Frontend FrontendConfig `yaml:"frontend"`
	LogLevel string         `yaml:"log_level"`
}

// CaptureConfig selects the capture source.
type CaptureConfig struct {
	DeviceName string `yaml:"device_name"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

// OutputConfig selects the default playback sink.
type OutputConfig struct {
	SinkType   string `yaml:"sink_type"` // "localdac", "dlna", "airplay"
	DeviceName string `yaml:"device_name"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BufferMs   int    `yaml:"buffer_ms"`
}

// ResolverConfig configures the preset resolver's fallback.
type ResolverConfig struct {
	FallbackPreset string `yaml:"fallback_preset"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	DBPath    string `yaml:"db_path"`
	BackupDir string `yaml:"backup_dir"`
}

// AANPConfig configures the AANP server's capability advertisement.
type AANPConfig struct {
	ListenAddr       string   `yaml:"listen_addr"`
	SupportedFeature []string `yaml:"supported_features"`
	OptionalFeature  []string `yaml:"optional_features"`
}

// FrontendConfig configures the HTTP/SSE command-and-event adapter
// (internal/frontend) that a non-Go front-end drives.
type FrontendConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config populated with production-tested defaults.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{SampleRate: 44100, Channels: 2},
		Output: OutputConfig{
			SinkType:   "localdac",
			SampleRate: 44100,
			Channels:   2,
			BufferMs:   100,
		},
		Resolver: ResolverConfig{FallbackPreset: "Flat", PollIntervalMs: 1000},
		Store: StoreConfig{
			DBPath:    "aaeq.db",
			BackupDir: ".",
		},
		AANP: AANPConfig{
			ListenAddr:       ":7100",
			SupportedFeature: []string{"capabilities", "volume_control", "gapless"},
			OptionalFeature:  []string{"micro_pll", "crc_verify", "dsp_transfer"},
		},
		Frontend: FrontendConfig{ListenAddr: ":8090"},
		LogLevel: "info",
	}
}

// Load reads and parses the YAML configuration at path, validating the
// result. A missing file is not an error: Default() is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically: write to a temp file in the same
// directory, sync, then rename, so a crash mid-write never leaves a
// partially-written config on disk.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config.*.yaml")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("config: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: rename temp file: %w", err)
	}
	success = true
	return nil
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture.sample_rate must be positive")
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("capture.channels must be positive")
	}
	switch c.Output.SinkType {
	case "localdac", "dlna", "airplay":
	default:
		return fmt.Errorf("output.sink_type must be one of localdac, dlna, airplay (got %q)", c.Output.SinkType)
	}
	if c.Output.SampleRate <= 0 {
		return fmt.Errorf("output.sample_rate must be positive")
	}
	if c.Resolver.FallbackPreset == "" {
		return fmt.Errorf("resolver.fallback_preset must not be empty")
	}
	return nil
}
