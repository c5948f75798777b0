package engine

import "github.com/jaschadub/aaeq/internal/resolver"

// Event type tags, one per engine→front-end event.
const (
	EvtConnected            = "connected"
	EvtConnectionFailed     = "connection_failed"
	EvtDisconnected         = "disconnected"
	EvtDevicesDiscovered    = "devices_discovered"
	EvtPresetsLoaded        = "presets_loaded"
	EvtPresetApplied        = "preset_applied"
	EvtMappingSaved         = "mapping_saved"
	EvtTrackUpdated         = "track_updated"
	EvtBackupCreated        = "backup_created"
	EvtError                = "error"
	EvtDspDevicesDiscovered = "dsp_devices_discovered"
	EvtDspStreamingStarted  = "dsp_streaming_started"
	EvtDspStreamingStopped  = "dsp_streaming_stopped"
	EvtDspStreamStatus      = "dsp_stream_status"
	EvtDspAudioSamples      = "dsp_audio_samples"
)

// DiscoveredDevice is one entry of a DevicesDiscovered event payload.
type DiscoveredDevice struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// Event is the tagged-union envelope for every engine→front-end event.
// Only the fields relevant to Type are populated. JSON tags back the
// SSE stream in internal/frontend.
type Event struct {
	Type string `json:"type"`

	// Connected / ConnectionFailed
	Host string `json:"host,omitempty"`

	// Disconnected
	Reason string `json:"reason,omitempty"`

	// DevicesDiscovered
	Devices []DiscoveredDevice `json:"devices,omitempty"`

	// PresetsLoaded
	PresetNames []string `json:"preset_names,omitempty"`

	// PresetApplied
	PresetName string `json:"preset_name,omitempty"`

	// MappingSaved
	Message string `json:"message,omitempty"`

	// TrackUpdated
	Track  resolver.TrackMeta `json:"track,omitempty"`
	Preset string             `json:"preset,omitempty"`

	// BackupCreated
	BackupPath string `json:"backup_path,omitempty"`

	// Error
	ErrorMessage string `json:"error_message,omitempty"`

	// DspDevicesDiscovered
	DspDeviceNames []string `json:"dsp_device_names,omitempty"`

	// DspStreamStatus
	LatencyMs     float64 `json:"latency_ms,omitempty"`
	FramesWritten uint64  `json:"frames_written,omitempty"`
	Underruns     uint64  `json:"underruns,omitempty"`
	BufferFill    float64 `json:"buffer_fill,omitempty"`

	// DspAudioSamples — left-channel tap, at most 256 samples.
	Samples []float64 `json:"samples,omitempty"`
}
