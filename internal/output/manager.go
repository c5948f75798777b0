// Package output owns the sink registry and the single active-sink
// lifecycle that the pipeline writes audio through.
package output

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaschadub/aaeq/internal/audio"
	"github.com/jaschadub/aaeq/internal/sinks"
)

// Stats tracks per-sink counters. The Manager updates only FramesWritten
// (in Write, under its lock); the other fields stay zero.
type Stats struct {
	FramesWritten uint64
	Underruns     uint64
	Overruns      uint64
	BufferFill    float64
}

type registeredSink struct {
	sink  sinks.Sink
	stats Stats
}

// Manager is the single authority for which sink is live. It registers
// sinks by insertion order, enforces that at most one is open at a time,
// and routes writes to the active sink while accumulating its stats.
type Manager struct {
	mu      sync.RWMutex
	order   []string
	byName  map[string]*registeredSink
	active  string
	hasOpen bool
}

// NewManager returns an empty sink registry.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*registeredSink)}
}

// ErrNoActiveSink is returned by Write and ActiveSinkLatency when no sink
// has been selected.
var ErrNoActiveSink = fmt.Errorf("output: no active sink")

// Register adds s to the registry under its Name(), preserving insertion
// order for Names(). Registering a name twice replaces the prior entry,
// closing it first if it happened to be active.
func (m *Manager) Register(s sinks.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := s.Name()
	prev, exists := m.byName[name]
	if !exists {
		m.order = append(m.order, name)
	} else if m.active == name {
		prev.sink.Close()
		m.active = ""
	}
	m.byName[name] = &registeredSink{sink: s}
}

// Names returns registered sink names in insertion order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// SelectSinkByName closes the current active sink (if any), opens the
// named sink with cfg, and makes it active. It rejects a concurrent open
// attempt while a sink is mid-open.
func (m *Manager) SelectSinkByName(ctx context.Context, name string, cfg audio.OutputConfig) error {
	m.mu.Lock()
	entry, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("output: no sink registered with name %q", name)
	}
	if m.hasOpen {
		m.mu.Unlock()
		return fmt.Errorf("output: concurrent sink open rejected, close the active sink first")
	}
	m.hasOpen = true
	m.mu.Unlock()

	if err := m.closeActiveLocked(ctx); err != nil {
		m.mu.Lock()
		m.hasOpen = false
		m.mu.Unlock()
		return fmt.Errorf("output: closing previous active sink: %w", err)
	}

	err := entry.sink.Open(ctx, cfg)

	m.mu.Lock()
	m.hasOpen = false
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("output: opening sink %q: %w", name, err)
	}
	entry.stats = Stats{}
	m.active = name
	m.mu.Unlock()
	return nil
}

// Write routes block to the active sink's hot path and accumulates
// frames_written. Returns ErrNoActiveSink if nothing is selected.
func (m *Manager) Write(ctx context.Context, block audio.Block) error {
	m.mu.RLock()
	name := m.active
	m.mu.RUnlock()
	if name == "" {
		return ErrNoActiveSink
	}

	m.mu.RLock()
	entry := m.byName[name]
	m.mu.RUnlock()
	if entry == nil {
		return ErrNoActiveSink
	}

	if err := entry.sink.Write(ctx, block); err != nil {
		return err
	}

	frames := 0
	if block.Channels > 0 {
		frames = len(block.Samples) / block.Channels
	}
	m.mu.Lock()
	entry.stats.FramesWritten += uint64(frames)
	m.mu.Unlock()
	return nil
}

// CloseActive drains then closes the active sink and clears the active
// selection. It is a no-op when nothing is active.
func (m *Manager) CloseActive(ctx context.Context) error {
	return m.closeActiveLocked(ctx)
}

func (m *Manager) closeActiveLocked(ctx context.Context) error {
	m.mu.Lock()
	name := m.active
	if name == "" {
		m.mu.Unlock()
		return nil
	}
	entry := m.byName[name]
	m.active = ""
	m.mu.Unlock()

	if entry == nil {
		return nil
	}
	if err := entry.sink.Drain(ctx); err != nil {
		entry.sink.Close()
		return fmt.Errorf("output: draining sink %q: %w", name, err)
	}
	return entry.sink.Close()
}

// ActiveSinkLatency returns the active sink's latest LatencyMs, or an
// error if nothing is active.
func (m *Manager) ActiveSinkLatency() (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return 0, ErrNoActiveSink
	}
	entry := m.byName[m.active]
	if entry == nil {
		return 0, ErrNoActiveSink
	}
	return entry.sink.LatencyMs(), nil
}

// ActiveSinkName returns the name of the currently active sink, or ""
// if none is selected.
func (m *Manager) ActiveSinkName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Stats returns a copy of the named sink's accumulated counters.
func (m *Manager) Stats(name string) (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.byName[name]
	if !ok {
		return Stats{}, false
	}
	return entry.stats, true
}
