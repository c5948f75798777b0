package capture

import (
	"bytes"
	"context"

	"github.com/charmbracelet/log"
	"github.com/jochenvg/go-udev"
	"golang.org/x/sys/unix"
)

// HotplugEvent reports a sound-subsystem device arriving or leaving.
type HotplugEvent struct {
	Action string // "add" or "remove"
	Name   string
	Syspath string
}

// WatchHotplug subscribes to udev "sound" subsystem events and forwards
// them on the returned channel until ctx is cancelled. The channel is
// closed on cancellation.
func WatchHotplug(ctx context.Context, logger *log.Logger) (<-chan HotplugEvent, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("hotplug watcher starting", "kernel", kernelRelease())

	u := udev.Udev{}
	monitor := u.NewMonitorFromNetlink("udev")
	if err := monitor.FilterAddMatchSubsystem("sound"); err != nil {
		return nil, err
	}

	deviceCh, errCh, err := monitor.DeviceChan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan HotplugEvent, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case dev, ok := <-deviceCh:
				if !ok {
					return
				}
				event := HotplugEvent{
					Action:  dev.Action(),
					Name:    dev.Sysname(),
					Syspath: dev.Syspath(),
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errCh:
				if !ok {
					continue
				}
				logger.Warn("udev monitor error", "err", err)
			}
		}
	}()
	return out, nil
}

// kernelRelease returns the running kernel's release string, logged once
// when the hotplug watcher starts since ALSA/PulseAudio sound-subsystem
// behavior varies across kernel versions.
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return string(bytes.TrimRight(uts.Release[:], "\x00"))
}
