package capture

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// EnumerateDevices merges the native PortAudio device list with
// PulseAudio (pactl) and ALSA (arecord) source listings, since
// loopback/monitor sources are frequently visible only through the
// userspace tools and not through PortAudio's own enumeration.
func EnumerateDevices() ([]Device, error) {
	devices, err := enumeratePortAudioInputs()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		seen[d.Name] = true
	}

	for _, d := range pactlSources() {
		if !seen[d.Name] {
			devices = append(devices, d)
			seen[d.Name] = true
		}
	}
	for _, d := range arecordSources() {
		if !seen[d.Name] {
			devices = append(devices, d)
			seen[d.Name] = true
		}
	}
	return devices, nil
}

func enumeratePortAudioInputs() ([]Device, error) {
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

// pactlSources runs `pactl list sources short` and parses each source's
// name. Absence of the binary is not an error: it simply contributes no
// additional devices.
func pactlSources() []Device {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "pactl", "list", "sources", "short").Output()
	if err != nil {
		return nil
	}
	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		devices = append(devices, Device{
			ID:         name,
			Name:       name,
			IsLoopback: isLoopbackName(name),
		})
	}
	return devices
}

// arecordSources runs `arecord -L` and parses the top-level device
// identifiers (lines with no leading whitespace).
func arecordSources() []Device {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "arecord", "-L").Output()
	if err != nil {
		return nil
	}
	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		devices = append(devices, Device{
			ID:         line,
			Name:       line,
			IsLoopback: isLoopbackName(line),
		})
	}
	return devices
}
