package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/jaschadub/aaeq/internal/audio"
)

// blockFrames is the number of frames accumulated per delivered Block,
// matching a 10ms period at typical sample rates.
const blockFrames = 480

// Config describes the requested capture configuration. The delivered
// blocks are always normalized interleaved f64, regardless of what
// format the device natively runs the stream at — PortAudio performs
// the host-side conversion from the device's native format (which may
// be U8, I16, U16, or F32) when float32 buffers are requested.
type Config struct {
	SampleRate int
	Channels   int
}

// Session is a running capture from one device, delivering blocks to
// its sender channel until Stop is called.
type Session struct {
	stream  *portaudio.Stream
	sender  chan<- audio.Block
	cfg     Config
	stopped atomic.Bool
	logger  *log.Logger

	ring    *captureRing
	readCtx context.Context
	cancel  context.CancelFunc
}

// captureRing is a minimal SPSC float32 ring buffer: the PortAudio
// callback writes, a reader goroutine drains and converts.
type captureRing struct {
	buf      []float32
	capacity int
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

func newCaptureRing(capacitySamples int) *captureRing {
	return &captureRing{buf: make([]float32, capacitySamples), capacity: capacitySamples}
}

func (r *captureRing) write(samples []float32) {
	for _, s := range samples {
		w := int(r.writePos.Load()) % r.capacity
		r.buf[w] = s
		r.writePos.Add(1)
	}
}

func (r *captureRing) readInto(out []float32) int {
	avail := int(r.writePos.Load() - r.readPos.Load())
	n := avail
	if n > len(out) {
		n = len(out)
	}
	rd := int(r.readPos.Load()) % r.capacity
	for i := 0; i < n; i++ {
		out[i] = r.buf[(rd+i)%r.capacity]
	}
	r.readPos.Add(uint64(n))
	return n
}

// Start opens deviceID, resolving to a compatible configuration (matching
// channel count and containing the requested sample rate where the
// device reports native rates), and begins delivering converted f64
// blocks to sender. The returned Session must be stopped with Stop.
func Start(ctx context.Context, deviceID string, cfg Config, sender chan<- audio.Block, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "capture", "device", deviceID)

	device, err := resolveInputDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("capture: resolve device: %w", err)
	}
	if !deviceSupportsRate(device, cfg.SampleRate) {
		logger.Warn("device may not natively support requested rate, OS will resample",
			"requested_rate", cfg.SampleRate)
	}

	ring := newCaptureRing(cfg.SampleRate * cfg.Channels) // ~1s headroom
	readCtx, cancel := context.WithCancel(context.Background())

	s := &Session{cfg: cfg, sender: sender, logger: logger, ring: ring, readCtx: readCtx, cancel: cancel}

	framesPerBuffer := cfg.SampleRate / 100
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		cancel()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	s.stream = stream

	go s.deliverLoop()
	logger.Info("capture started", "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return s, nil
}

// callback runs on PortAudio's realtime thread: copy into the ring and
// return immediately.
func (s *Session) callback(in []float32) {
	s.ring.write(in)
}

// deliverLoop drains the ring on a fixed period, converts to normalized
// f64, and sends blocks until the session is stopped.
func (s *Session) deliverLoop() {
	period := time.Duration(blockFrames) * time.Second / time.Duration(s.cfg.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	scratch := make([]float32, blockFrames*s.cfg.Channels)
	for {
		select {
		case <-s.readCtx.Done():
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			n := s.ring.readInto(scratch)
			if n == 0 {
				continue
			}
			samples := make([]float64, n)
			for i := 0; i < n; i++ {
				samples[i] = float64(scratch[i])
			}
			block := audio.Block{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
			select {
			case s.sender <- block:
			case <-s.readCtx.Done():
				return
			}
		}
	}
}

// Stop sets the cooperative stop flag, halts delivery, and stops and
// closes the PortAudio stream on the calling goroutine; the stream is not
// handed back to a dedicated owning goroutine for closing.
func (s *Session) Stop() error {
	if s.stopped.Swap(true) {
		return nil
	}
	s.cancel()
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return err
	}
	return s.stream.Close()
}

func resolveInputDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", deviceID)
}

func deviceSupportsRate(device *portaudio.DeviceInfo, rate int) bool {
	if device == nil {
		return true
	}
	// PortAudio's DeviceInfo doesn't enumerate a discrete supported-rate
	// list; DefaultSampleRate is the only rate guaranteed to work without
	// host-side resampling.
	return int(device.DefaultSampleRate) == rate
}
