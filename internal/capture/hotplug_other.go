//go:build !linux

package capture

import (
	"context"

	"github.com/charmbracelet/log"
)

// HotplugEvent reports a sound-subsystem device arriving or leaving.
type HotplugEvent struct {
	Action  string
	Name    string
	Syspath string
}

// WatchHotplug is only implemented on Linux (via udev); elsewhere it
// returns a channel that is immediately closed.
func WatchHotplug(ctx context.Context, logger *log.Logger) (<-chan HotplugEvent, error) {
	out := make(chan HotplugEvent)
	close(out)
	return out, nil
}
