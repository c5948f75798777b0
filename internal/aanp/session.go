package aanp

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/google/uuid"
)

// ProtocolVersion is the only AANP wire version this package speaks.
const ProtocolVersion = "0.4"

// State is a session's lifecycle state (§4.5.1).
type State string

const (
	StateDisconnected State = "disconnected"
	StateNegotiating   State = "negotiating"
	StateBuffering     State = "buffering"
	StatePlaying       State = "playing"
	StatePaused        State = "paused"
	StateError         State = "error"
)

// CPUInfo describes the node's processor, reported in NodeCapabilities.
type CPUInfo struct {
	Arch  string `json:"arch"`
	Cores int    `json:"cores"`
	MHz   int    `json:"mhz"`
}

// DSPCapabilities describes what on-node DSP the node can perform.
type DSPCapabilities struct {
	CanEQ        bool `json:"can_eq"`
	CanResample  bool `json:"can_resample"`
	CanConvolve  bool `json:"can_convolve"`
}

// NodeCapabilities describes a node's hardware (§4.5.2).
type NodeCapabilities struct {
	Platform         string          `json:"platform"`
	DACName          string          `json:"dac_name"`
	DACChip          string          `json:"dac_chip"`
	MaxSampleRate    int             `json:"max_sample_rate"`
	SupportedFormats []string        `json:"supported_formats"`
	NativeFormat     string          `json:"native_format"`
	MaxChannels      int             `json:"max_channels"`
	BufferRangeMs    [2]int          `json:"buffer_range_ms"`
	HasHardwareVolume bool           `json:"has_hardware_volume"`
	VolumeRange      [2]float64      `json:"volume_range"`
	VolumeCurve      string          `json:"volume_curve"`
	CPUInfo          CPUInfo         `json:"cpu_info"`
	DSPCapabilities  DSPCapabilities `json:"dsp_capabilities"`
}

// SessionInit is the node->server handshake message (§4.5.2).
type SessionInit struct {
	Type             string           `json:"type"`
	ProtocolVersion  string           `json:"protocol_version"`
	NodeUUID         uuid.UUID        `json:"node_uuid"`
	Features         []Feature        `json:"features"`
	OptionalFeatures []Feature        `json:"optional_features"`
	LatencyComp      bool             `json:"latency_comp"`
	NodeCapabilities NodeCapabilities `json:"node_capabilities"`
}

// RTPConfig is the initial RTP parameterization handed to a node (§4.5.3).
type RTPConfig struct {
	SSRC             uint32 `json:"ssrc"`
	PayloadType      uint8  `json:"payload_type"`
	TimestampRate    int    `json:"timestamp_rate"`
	InitialSequence  uint16 `json:"initial_sequence"`
	InitialTimestamp uint32 `json:"initial_timestamp"`
}

// GaplessExtension configures the RTP gapless payload extension.
type GaplessExtension struct {
	Enabled     bool  `json:"enabled"`
	ExtensionID uint8 `json:"extension_id"`
}

// CRC32Extension configures the RTP CRC32 payload extension.
type CRC32Extension struct {
	Enabled     bool   `json:"enabled"`
	ExtensionID uint8  `json:"extension_id"`
	Window      int    `json:"window"`
}

// RTPExtensions bundles the two AANP RTP payload extensions.
type RTPExtensions struct {
	Gapless GaplessExtension `json:"gapless"`
	CRC32   CRC32Extension   `json:"crc32"`
}

// RecommendedConfig is the server's suggested output configuration.
type RecommendedConfig struct {
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
	BufferMs   int    `json:"buffer_ms"`
	Reason     string `json:"reason"`
}

// LatencyInfo reports the server's measured/declared latency components.
type LatencyInfo struct {
	DACMs      float64 `json:"dac_ms"`
	PipelineMs float64 `json:"pipeline_ms"`
	CompMode   string  `json:"comp_mode"`
}

// MicroPLLConfig configures the clock-sync micro-PLL (only present when the
// micro_pll feature is active).
type MicroPLLConfig struct {
	PPMLimit             int `json:"ppm_limit"`
	AdjustmentIntervalMs int `json:"adjustment_interval_ms"`
	SlewRatePPMPerSec    int `json:"slew_rate_ppm_per_sec"`
	EMAWindow            int `json:"ema_window"`
}

// VolumeConfig is the initial volume state handed to a node.
type VolumeConfig struct {
	InitialLevel float64 `json:"initial_level"`
	Mute         bool    `json:"mute"`
	ControlMode  string  `json:"control_mode"`
	CurveType    string  `json:"curve_type"`
}

// BufferConfig is the jitter/playback buffer sizing handed to a node.
type BufferConfig struct {
	TargetMs         int `json:"target_ms"`
	MinMs            int `json:"min_ms"`
	MaxMs            int `json:"max_ms"`
	StartThresholdMs int `json:"start_threshold_ms"`
}

// SessionAccept is the server->node acceptance message (§4.5.3).
type SessionAccept struct {
	Type              string            `json:"type"`
	ProtocolVersion   string            `json:"protocol_version"`
	SessionID         string            `json:"session_id"`
	ActiveFeatures    []Feature         `json:"active_features"`
	OptionalFeatures  []Feature         `json:"optional_features"`
	RTPConfig         RTPConfig         `json:"rtp_config"`
	RTPExtensions     RTPExtensions     `json:"rtp_extensions"`
	RecommendedConfig RecommendedConfig `json:"recommended_config"`
	Latency           LatencyInfo       `json:"latency"`
	MicroPLL          *MicroPLLConfig   `json:"micro_pll,omitempty"`
	Volume            VolumeConfig      `json:"volume"`
	Buffer            BufferConfig      `json:"buffer"`
}

// Server holds the local feature support used to negotiate sessions.
type Server struct {
	Supported FeatureSet
	Optional  FeatureSet

	sessionCounter atomic.Uint64
}

// NewServer returns a Server advertising the given supported/optional
// feature sets.
func NewServer(supported, optional FeatureSet) *Server {
	return &Server{Supported: supported, Optional: optional}
}

// NextSessionID returns a fresh "srv-<monotonic>" session ID.
func (s *Server) NextSessionID() string {
	return fmt.Sprintf("srv-%d", s.sessionCounter.Add(1))
}

// SSRCForSession derives a deterministic 32-bit SSRC from a session ID: the
// low 32 bits of a stable (FNV-1a) hash (§4.5.3).
func SSRCForSession(sessionID string) uint32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sessionID))
	return uint32(h.Sum64())
}

// NegotiationError is returned by Negotiate on a version mismatch.
type NegotiationError struct {
	Code Code
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("aanp: negotiation failed: %s %s", e.Code, e.Code.Message())
}

// Negotiate implements feature negotiation as intersection:
// active = local.supported ∩ remote.features,
// optional-accepted = local.optional ∩ remote.optional_features.
// The active set is always a subset of local.supported by construction,
// so acceptance depends only on the protocol version matching.
func (s *Server) Negotiate(init SessionInit, cfg AcceptConfig) (SessionAccept, error) {
	if init.ProtocolVersion != ProtocolVersion {
		return SessionAccept{}, &NegotiationError{Code: E201VersionMismatch}
	}

	remoteFeatures := NewFeatureSet(init.Features...)
	remoteOptional := NewFeatureSet(init.OptionalFeatures...)

	active := s.Supported.Intersect(remoteFeatures)
	optional := s.Optional.Intersect(remoteOptional)

	sessionID := s.NextSessionID()
	ssrc := SSRCForSession(sessionID)

	accept := SessionAccept{
		Type:             "session_accept",
		ProtocolVersion:  ProtocolVersion,
		SessionID:        sessionID,
		ActiveFeatures:   active,
		OptionalFeatures: optional,
		RTPConfig: RTPConfig{
			SSRC:             ssrc,
			PayloadType:      cfg.PayloadType,
			TimestampRate:    cfg.SampleRate,
			InitialSequence:  0,
			InitialTimestamp: 0,
		},
		RTPExtensions: RTPExtensions{
			Gapless: GaplessExtension{
				Enabled:     containsFeature(active, FeatureGapless),
				ExtensionID: 1,
			},
			CRC32: CRC32Extension{
				Enabled:     containsFeature(active, FeatureCRCVerify),
				ExtensionID: 2,
				Window:      64,
			},
		},
		RecommendedConfig: cfg.RecommendedConfig,
		Latency:           cfg.Latency,
		Volume:            cfg.Volume,
		Buffer:            cfg.Buffer,
	}

	if containsFeature(active, FeatureMicroPLL) {
		accept.MicroPLL = &MicroPLLConfig{
			PPMLimit:             150,
			AdjustmentIntervalMs: 100,
			SlewRatePPMPerSec:    10,
			EMAWindow:            8,
		}
	}

	return accept, nil
}

// AcceptConfig holds the server-side knobs that aren't derived from
// negotiation itself.
type AcceptConfig struct {
	PayloadType       uint8
	SampleRate        int
	RecommendedConfig RecommendedConfig
	Latency           LatencyInfo
	Volume            VolumeConfig
	Buffer            BufferConfig
}

// IsNegotiationSuccessful reports whether accept represents a usable
// session: at least one feature, ideally the capability-exchange feature
// itself, is active.
func IsNegotiationSuccessful(accept SessionAccept) bool {
	return containsFeature(accept.ActiveFeatures, FeatureCapabilities) ||
		len(accept.ActiveFeatures) > 0
}
