// Package capture enumerates and reads from the host's audio input
// devices, including loopback/monitor sources, and delivers converted
// interleaved f64 blocks to the DSP pipeline.
package capture

// Device describes one capturable audio source.
type Device struct {
	ID          string
	Name        string
	IsLoopback  bool
	MaxChannels int
	// NativeSampleRates lists rates the device reported as natively
	// supported; empty means "unknown, assume host default works".
	NativeSampleRates []int
}

// captureAliases are configured names treated as loopback/monitor sources
// regardless of their backend-reported suffix.
var captureAliases = map[string]bool{
	"aaeq_capture": true,
	"aaeq_monitor": true,
}

// isLoopbackName reports whether a device name identifies a loopback or
// monitor source by platform convention.
func isLoopbackName(name string) bool {
	if captureAliases[name] {
		return true
	}
	return hasMonitorSuffix(name)
}

func hasMonitorSuffix(name string) bool {
	const suffix = ".monitor"
	if len(name) < len(suffix) {
		return false
	}
	return name[len(name)-len(suffix):] == suffix
}

// EnumerateDevices lists capturable input devices for the current host,
// marking loopback/monitor sources per platform convention. Each
// platform file (device_linux.go, device_windows.go, device_other.go)
// supplies its own implementation.
