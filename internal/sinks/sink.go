// Package sinks defines the common playback-sink contract shared by the
// local DAC, DLNA, and AirPlay output backends.
package sinks

import (
	"context"

	"github.com/jaschadub/aaeq/internal/audio"
)

// Sink is an audio output destination: open it with a format, write
// interleaved blocks, drain on end-of-stream, and close.
type Sink interface {
	// Name returns the sink's stable display name.
	Name() string
	// Open prepares the sink for writing at the given configuration.
	// Calling Open on an already-open sink returns an error.
	Open(ctx context.Context, cfg audio.OutputConfig) error
	// Write delivers one block of audio for playback. Blocks until
	// accepted or ctx is done.
	Write(ctx context.Context, block audio.Block) error
	// Drain blocks until all written audio has been played out.
	Drain(ctx context.Context) error
	// Close releases the sink's resources. Safe to call on an unopened
	// or already-closed sink.
	Close() error
	// LatencyMs returns the sink's most recently measured output latency.
	LatencyMs() float64
	// IsOpen reports whether the sink is currently open for writing.
	IsOpen() bool
}
