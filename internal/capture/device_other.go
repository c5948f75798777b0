//go:build !linux && !windows

package capture

import "github.com/gordonklaus/portaudio"

// EnumerateDevices lists only physical PortAudio input devices. Genuine
// system-audio capture on CoreAudio requires an external loopback driver
// and is out of scope here, so no output endpoints are surfaced.
func EnumerateDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []Device
	for _, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, Device{
			ID:          info.Name,
			Name:        info.Name,
			IsLoopback:  isLoopbackName(info.Name),
			MaxChannels: info.MaxInputChannels,
		})
	}
	return out, nil
}
