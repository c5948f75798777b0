package capture

import "github.com/gordonklaus/portaudio"

// EnumerateDevices lists PortAudio input devices. On Windows, WASAPI
// exposes the render (output) endpoints as loopback-capable inputs, so
// those are surfaced alongside genuine physical inputs and marked as
// loopback candidates.
func EnumerateDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []Device
	for _, info := range infos {
		switch {
		case info.MaxInputChannels > 0:
			out = append(out, Device{
				ID:          info.Name,
				Name:        info.Name,
				IsLoopback:  isLoopbackName(info.Name),
				MaxChannels: info.MaxInputChannels,
			})
		case info.MaxOutputChannels > 0:
			// WASAPI render endpoint: only usable as a loopback capture
			// source, never as a physical input.
			out = append(out, Device{
				ID:          info.Name,
				Name:        info.Name,
				IsLoopback:  true,
				MaxChannels: info.MaxOutputChannels,
			})
		}
	}
	return out, nil
}
