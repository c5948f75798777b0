// Package aanp implements the AANP v0.4 session protocol between an AAEQ
// server and a playback node: capability negotiation, RTP framing, health
// telemetry, and the standardized error taxonomy (§4.5).
package aanp

// Severity is an AANP error's urgency level.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category is the hundreds-digit classification of an error code.
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryProtocol   Category = "protocol"
	CategoryAudio      Category = "audio"
	CategoryClock      Category = "clock"
	CategoryDSP        Category = "dsp"
	CategoryVolume     Category = "volume"
)

// RecoveryAction is one of the fixed recovery actions a receiver may take in
// response to an error (§4.5.6).
type RecoveryAction string

const (
	RecoveryRetryConnection   RecoveryAction = "retry_connection"
	RecoveryIncreaseTimeout   RecoveryAction = "increase_timeout"
	RecoveryRegenerateSSRC    RecoveryAction = "regenerate_ssrc"
	RecoveryIncreaseBuffer    RecoveryAction = "increase_buffer"
	RecoveryDecreaseLatency   RecoveryAction = "decrease_latency"
	RecoveryResetPLL          RecoveryAction = "reset_pll"
	RecoveryClampVolume       RecoveryAction = "clamp_volume"
	RecoveryFallbackToSoftware RecoveryAction = "fallback_to_software"
)

// Code is one of the fixed three-digit error codes in §4.5.6.
type Code string

const (
	E101ConnectionUnreachable Code = "E101"
	E102ConnectionTimeout     Code = "E102"
	E103ConnectionRefused     Code = "E103"
	E104WebSocketError        Code = "E104"
	E105RtpPortBindFailed     Code = "E105"

	E201VersionMismatch       Code = "E201"
	E202InvalidSessionInit    Code = "E202"
	E203InvalidMessageFormat  Code = "E203"
	E204UnsupportedFeature    Code = "E204"
	E205SSRCConflict          Code = "E205"

	E301UnsupportedSampleRate Code = "E301"
	E302UnsupportedFormat     Code = "E302"
	E303DacOpenFailed         Code = "E303"
	E304BufferUnderrun        Code = "E304"
	E305BufferOverrun         Code = "E305"
	E306CrcVerificationFailed Code = "E306"

	E401DriftTooHigh           Code = "E401"
	E402PllUnlock              Code = "E402"
	E403TimestampDiscontinuity Code = "E403"

	E501EqApplicationFailed Code = "E501"
	E502ConvolutionFailed   Code = "E502"
	E503InsufficientCPU     Code = "E503"
	E504ProfileHashMismatch Code = "E504"

	E601HardwareVolumeUnavailable Code = "E601"
	E602VolumeOutOfRange          Code = "E602"
)

type codeInfo struct {
	category Category
	severity Severity
	message  string
}

// codeTable holds each code's category, default severity, and message.
// Clock-category severities are fatal for drift and PLL unlock and warning
// for timestamp discontinuities; an earlier reference implementation scored
// these in the opposite order, which produced a fatal flood under normal
// sample-rate jitter.
var codeTable = map[Code]codeInfo{
	E101ConnectionUnreachable: {CategoryConnection, SeverityFatal, "network unreachable"},
	E102ConnectionTimeout:     {CategoryConnection, SeverityWarning, "connection timeout"},
	E103ConnectionRefused:     {CategoryConnection, SeverityFatal, "connection refused"},
	E104WebSocketError:        {CategoryConnection, SeverityFatal, "websocket transport error"},
	E105RtpPortBindFailed:     {CategoryConnection, SeverityFatal, "rtp port bind failed"},

	E201VersionMismatch:      {CategoryProtocol, SeverityFatal, "protocol version mismatch"},
	E202InvalidSessionInit:   {CategoryProtocol, SeverityFatal, "invalid session initialization"},
	E203InvalidMessageFormat: {CategoryProtocol, SeverityWarning, "invalid message format"},
	E204UnsupportedFeature:   {CategoryProtocol, SeverityWarning, "unsupported feature requested"},
	E205SSRCConflict:         {CategoryProtocol, SeverityWarning, "ssrc conflict detected"},

	E301UnsupportedSampleRate: {CategoryAudio, SeverityFatal, "unsupported sample rate"},
	E302UnsupportedFormat:     {CategoryAudio, SeverityFatal, "unsupported audio format"},
	E303DacOpenFailed:         {CategoryAudio, SeverityFatal, "dac open failed"},
	E304BufferUnderrun:        {CategoryAudio, SeverityWarning, "buffer underrun detected"},
	E305BufferOverrun:         {CategoryAudio, SeverityWarning, "buffer overrun detected"},
	E306CrcVerificationFailed: {CategoryAudio, SeverityWarning, "crc verification failed"},

	E401DriftTooHigh:           {CategoryClock, SeverityFatal, "clock drift too high"},
	E402PllUnlock:              {CategoryClock, SeverityFatal, "pll failed to lock"},
	E403TimestampDiscontinuity: {CategoryClock, SeverityWarning, "timestamp discontinuity"},

	E501EqApplicationFailed: {CategoryDSP, SeverityFatal, "eq application failed"},
	E502ConvolutionFailed:   {CategoryDSP, SeverityFatal, "convolution failed"},
	E503InsufficientCPU:     {CategoryDSP, SeverityFatal, "insufficient cpu for dsp processing"},
	E504ProfileHashMismatch: {CategoryDSP, SeverityFatal, "dsp profile hash mismatch"},

	E601HardwareVolumeUnavailable: {CategoryVolume, SeverityInfo, "hardware volume control unavailable"},
	E602VolumeOutOfRange:          {CategoryVolume, SeverityWarning, "volume level out of range"},
}

// Category returns the code's category.
func (c Code) Category() Category { return codeTable[c].category }

// Severity returns the code's default severity.
func (c Code) Severity() Severity { return codeTable[c].severity }

// Message returns the code's human-readable default message.
func (c Code) Message() string { return codeTable[c].message }

// Details carries optional context attached to an error report.
type Details struct {
	Context    string         `json:"context,omitempty"`
	TimestampUs uint64        `json:"timestamp_us,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Error is a structured AANP error report, carried as a control-channel
// `error` message.
type Error struct {
	Type           string          `json:"type"`
	Code           Code            `json:"code"`
	Category       Category        `json:"category"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	Details        *Details        `json:"details,omitempty"`
	RecoveryAction *RecoveryAction `json:"recovery_action,omitempty"`
}

// NewError builds an Error from a code with its default category/severity/
// message, optional details, and a recovery action.
func NewError(code Code, details *Details, recovery RecoveryAction) Error {
	var r *RecoveryAction
	if recovery != "" {
		r = &recovery
	}
	return Error{
		Type:           "error",
		Code:           code,
		Category:       code.Category(),
		Severity:       code.Severity(),
		Message:        code.Message(),
		Details:        details,
		RecoveryAction: r,
	}
}

// RecoverNetworkInterruption implements the network-interruption recovery
// protocol (§4.5.6): retry while buffer remains and the attempt cap is not
// exceeded, otherwise fail the session.
func RecoverNetworkInterruption(bufferRemainingMs int, reconnectAttempts int) (retry bool) {
	return bufferRemainingMs > 0 && reconnectAttempts < 10
}

// RecoverBufferUnderrun implements the buffer-underrun recovery protocol
// (§4.5.6).
func RecoverBufferUnderrun(xrunCount int, bufferSizeMs int) RecoveryAction {
	switch {
	case xrunCount > 5:
		return RecoveryIncreaseBuffer
	case bufferSizeMs > 50:
		return RecoveryDecreaseLatency
	default:
		return ""
	}
}

// RecoverCRCFailureRate implements the CRC-failure-rate recovery protocol
// (§4.5.6): reduce bitrate above 1% failures over at least 1000 packets,
// otherwise keep monitoring.
func RecoverCRCFailureRate(crcFail, crcOK uint64, totalPackets uint64) (reduceBitrate bool) {
	if totalPackets < 1000 {
		return false
	}
	rate := float64(crcFail) / float64(crcFail+crcOK)
	return rate > 0.01
}
