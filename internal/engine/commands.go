package engine

import (
	"github.com/jaschadub/aaeq/internal/audio"
	"github.com/jaschadub/aaeq/internal/resolver"
)

// Command type tags, one per front-end command.
const (
	CmdConnectDevice      = "connect_device"
	CmdDiscoverDevices    = "discover_devices"
	CmdRefreshPresets     = "refresh_presets"
	CmdApplyPreset        = "apply_preset"
	CmdSaveMapping        = "save_mapping"
	CmdUpdateGenre        = "update_genre"
	CmdBackupDatabase     = "backup_database"
	CmdPoll               = "poll"
	CmdSaveInputDevice    = "save_input_device"
	CmdDspDiscoverDevices = "dsp_discover_devices"
	CmdDspStartStreaming  = "dsp_start_streaming"
	CmdDspStopStreaming   = "dsp_stop_streaming"
)

// Command is the tagged-union envelope for every front-end→engine
// command. Only the fields relevant to Type are populated. JSON tags
// back the HTTP adapter in internal/frontend.
type Command struct {
	Type string `json:"type"`

	// ConnectDevice
	Host string `json:"host,omitempty"`

	// ApplyPreset
	PresetName string `json:"preset_name,omitempty"`

	// SaveMapping
	Scope resolver.Scope    `json:"scope,omitempty"`
	Track resolver.TrackMeta `json:"track,omitempty"`

	// UpdateGenre
	TrackKey string `json:"track_key,omitempty"`
	Genre    string `json:"genre,omitempty"`

	// BackupDatabase
	BackupPath string `json:"backup_path,omitempty"`

	// SaveInputDevice
	InputDeviceName string `json:"input_device_name,omitempty"`

	// DspDiscoverDevices / DspStartStreaming
	SinkType   string `json:"sink_type,omitempty"`
	FallbackIP string `json:"fallback_ip,omitempty"`

	// DspStartStreaming
	DeviceName  string             `json:"device_name,omitempty"`
	OutputCfg   audio.OutputConfig `json:"output_cfg,omitempty"`
	UseTestTone bool               `json:"use_test_tone,omitempty"`
	InputDevice string             `json:"input_device,omitempty"`
}
