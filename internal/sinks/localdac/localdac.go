// Package localdac implements the direct-hardware playback sink: a
// PortAudio output stream fed by an SPSC ring buffer.
package localdac

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/jaschadub/aaeq/internal/audio"
)

// ringCapacityFrames sizes the SPSC ring buffer in frames. At 48kHz stereo
// this is roughly 1s of audio, generous headroom against scheduler jitter
// on the callback thread.
const ringCapacityFrames = 48000

// ring is a single-producer single-consumer float64 ring buffer, sized in
// interleaved samples (frames * channels).
type ring struct {
	buf       []float64
	capacity  int
	writePos  atomic.Uint64
	readPos   atomic.Uint64
}

func newRing(capacitySamples int) *ring {
	return &ring{buf: make([]float64, capacitySamples), capacity: capacitySamples}
}

func (r *ring) availableToWrite() int {
	return r.capacity - int(r.writePos.Load()-r.readPos.Load())
}

func (r *ring) write(samples []float64) int {
	n := len(samples)
	if avail := r.availableToWrite(); n > avail {
		n = avail
	}
	w := int(r.writePos.Load()) % r.capacity
	for i := 0; i < n; i++ {
		r.buf[(w+i)%r.capacity] = samples[i]
	}
	r.writePos.Add(uint64(n))
	return n
}

func (r *ring) readInto(out []float64) {
	avail := int(r.writePos.Load() - r.readPos.Load())
	readN := avail
	if readN > len(out) {
		readN = len(out)
	}
	rd := int(r.readPos.Load()) % r.capacity
	for i := 0; i < readN; i++ {
		out[i] = r.buf[(rd+i)%r.capacity]
	}
	for i := readN; i < len(out); i++ {
		out[i] = 0 // underrun: fill remainder with silence
	}
	r.readPos.Add(uint64(readN))
}

func (r *ring) fillPercent() float64 {
	if r.capacity == 0 {
		return 0
	}
	avail := int(r.writePos.Load() - r.readPos.Load())
	return 100 * float64(avail) / float64(r.capacity)
}

// Sink plays audio out through a locally-attached DAC via PortAudio.
type Sink struct {
	mu sync.Mutex

	deviceName string
	cfg        audio.OutputConfig
	stream     *portaudio.Stream
	rb         *ring
	open       atomic.Bool
	underruns  atomic.Uint64

	logger *log.Logger
}

// New returns a Sink bound to the named PortAudio output device. An empty
// deviceName selects the host's default output device.
func New(deviceName string, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{deviceName: deviceName, logger: logger.With("sink", "localdac")}
}

// Name implements sinks.Sink.
func (s *Sink) Name() string {
	if s.deviceName != "" {
		return s.deviceName
	}
	return "local-dac"
}

// Open implements sinks.Sink.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open.Load() {
		return fmt.Errorf("localdac: sink already open")
	}

	device, err := s.resolveDevice()
	if err != nil {
		return fmt.Errorf("localdac: resolve device: %w", err)
	}

	s.rb = newRing(ringCapacityFrames * cfg.Channels)
	framesPerBuffer := cfg.SampleRate / 100 // 10ms callback period

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return fmt.Errorf("localdac: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("localdac: start stream: %w", err)
	}

	s.stream = stream
	s.cfg = cfg
	s.open.Store(true)
	s.logger.Info("opened", "device", device.Name, "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return nil
}

func (s *Sink) resolveDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == s.deviceName && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("output device %q not found", s.deviceName)
}

// callback is invoked on PortAudio's realtime audio thread; it must never
// block or allocate.
func (s *Sink) callback(out []float64) {
	if s.rb == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	before := s.rb.writePos.Load() - s.rb.readPos.Load()
	s.rb.readInto(out)
	if uint64(len(out)) > before {
		s.underruns.Add(1)
	}
}

// Write implements sinks.Sink.
func (s *Sink) Write(ctx context.Context, block audio.Block) error {
	if !s.open.Load() {
		return fmt.Errorf("localdac: write on closed sink")
	}
	remaining := block.Samples
	for len(remaining) > 0 {
		n := s.rb.write(remaining)
		remaining = remaining[n:]
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
	return nil
}

// Drain implements sinks.Sink: blocks until the ring buffer empties.
func (s *Sink) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		rb := s.rb
		s.mu.Unlock()
		if rb == nil || rb.writePos.Load() == rb.readPos.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Close implements sinks.Sink.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open.Load() {
		return nil
	}
	s.open.Store(false)
	if s.stream != nil {
		s.stream.Stop()
		err := s.stream.Close()
		s.stream = nil
		return err
	}
	return nil
}

// LatencyMs implements sinks.Sink: the ring buffer's current fill, in
// milliseconds of audio at the configured sample rate.
func (s *Sink) LatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rb == nil || s.cfg.SampleRate == 0 || s.cfg.Channels == 0 {
		return 0
	}
	frames := float64(s.rb.writePos.Load()-s.rb.readPos.Load()) / float64(s.cfg.Channels)
	return frames / float64(s.cfg.SampleRate) * 1000
}

// IsOpen implements sinks.Sink.
func (s *Sink) IsOpen() bool { return s.open.Load() }

// Underruns returns the lifetime count of buffer-underrun events.
func (s *Sink) Underruns() uint64 { return s.underruns.Load() }

// FillPercent returns the ring buffer's current fill level as a percentage.
func (s *Sink) FillPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rb == nil {
		return 0
	}
	return s.rb.fillPercent()
}
