package localdac

import "github.com/gordonklaus/portaudio"

// ListOutputDevices returns the names of every host output device
// PortAudio can see, for the DSP front-end's "discover local DAC
// targets" command.
func ListOutputDevices() ([]string, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		names = append(names, info.Name)
	}
	return names, nil
}
