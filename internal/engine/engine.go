// Package engine wires capture, the DSP pipeline, the output manager,
// the preset resolver, and the persistence store behind a single
// command/event queue that a front-end (GUI, CLI, or the HTTP/SSE
// adapter in internal/frontend) drives.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/capture"
	"github.com/jaschadub/aaeq/internal/dsp"
	"github.com/jaschadub/aaeq/internal/output"
	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store"
)

const commandQueueDepth = 32

// streamingState holds the goroutines and handles for one active DSP
// streaming session, torn down by DspStopStreaming.
type streamingState struct {
	cancel      context.CancelFunc
	captureSess *capture.Session
	pipeline    *dsp.Pipeline
	manager     *output.Manager
	sinkName    string
	done        chan struct{}
}

// Engine is the single command-processing actor. All mutable state is
// touched only from the goroutine started by Run, except where noted.
type Engine struct {
	store    store.Store
	fallback string
	logger   *log.Logger

	cmds   chan Command
	events chan Event

	aanpServer  *aanp.Server
	aanpConn    *aanp.Conn
	aanpAccept  aanp.SessionAccept
	connectedTo string
	deviceID    int64

	rulesIdx   resolver.RulesIndex
	debouncer  *resolver.Debouncer
	genreAdapt genreOverrideAdapter
	lastAdapt  lastAppliedAdapter

	streaming   *streamingState
	trackSource TrackSource

	mu sync.Mutex
}

// TrackSource supplies now-playing track metadata — an OS media-session
// watcher, a DAAP/AirPlay metadata tap, or a test double. Poll consults
// it each tick; a nil source means Poll only reports streaming status.
type TrackSource interface {
	Current() (resolver.TrackMeta, bool)
}

// SetTrackSource wires the now-playing metadata source the Poll command
// consults. Not safe to call concurrently with Run.
func (e *Engine) SetTrackSource(ts TrackSource) {
	e.trackSource = ts
}

// New returns an Engine ready to Run. fallbackPreset is the resolver's
// last-resort preset name when no rule matches.
func New(s store.Store, fallbackPreset string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	idx, err := buildRulesIndex(s)
	if err != nil {
		logger.Warn("initial rules index build failed", "err", err)
	}

	return &Engine{
		store:      s,
		fallback:   fallbackPreset,
		logger:     logger,
		cmds:       make(chan Command, commandQueueDepth),
		events:     make(chan Event, commandQueueDepth),
		aanpServer: aanp.NewServer(defaultSupportedFeatures(), defaultOptionalFeatures()),
		rulesIdx:   idx,
		debouncer:  resolver.NewDebouncer(),
		genreAdapt: genreOverrideAdapter{repo: s.GenreOverrides()},
		lastAdapt:  lastAppliedAdapter{repo: s.LastApplied()},
	}
}

func defaultSupportedFeatures() aanp.FeatureSet {
	return aanp.NewFeatureSet(aanp.FeatureCapabilities, aanp.FeatureVolumeControl, aanp.FeatureGapless)
}

func defaultOptionalFeatures() aanp.FeatureSet {
	return aanp.NewFeatureSet(aanp.FeatureMicroPLL, aanp.FeatureCRCVerify, aanp.FeatureDSPTransfer)
}

// Commands returns the send side of the command queue.
func (e *Engine) Commands() chan<- Command { return e.cmds }

// Events returns the receive side of the event queue.
func (e *Engine) Events() <-chan Event { return e.events }

// emit delivers ev without blocking the worker loop forever: if the
// event channel stays full for a second, ev itself is dropped with a
// warning so the worker keeps making forward progress.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-time.After(time.Second):
		e.logger.Warn("event channel full, dropping event", "type", ev.Type)
	}
}

// Run drains the command queue until ctx is canceled. It is the
// engine's single actor goroutine; call it once.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case cmd := <-e.cmds:
			e.handle(ctx, cmd)
		}
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	st := e.streaming
	e.streaming = nil
	e.mu.Unlock()
	if st != nil {
		e.teardownStreaming(st)
	}
	if e.aanpConn != nil {
		e.aanpConn.Close()
	}
}

func (e *Engine) handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdConnectDevice:
		e.handleConnectDevice(ctx, cmd)
	case CmdDiscoverDevices:
		e.handleDiscoverDevices(ctx)
	case CmdRefreshPresets:
		e.handleRefreshPresets()
	case CmdApplyPreset:
		e.handleApplyPreset(ctx, cmd)
	case CmdSaveMapping:
		e.handleSaveMapping(cmd)
	case CmdUpdateGenre:
		e.handleUpdateGenre(cmd)
	case CmdBackupDatabase:
		e.handleBackupDatabase(cmd)
	case CmdPoll:
		e.handlePoll(ctx)
	case CmdSaveInputDevice:
		e.handleSaveInputDevice(cmd)
	case CmdDspDiscoverDevices:
		e.handleDspDiscoverDevices(ctx, cmd)
	case CmdDspStartStreaming:
		e.handleDspStartStreaming(ctx, cmd)
	case CmdDspStopStreaming:
		e.handleDspStopStreaming()
	default:
		e.emit(Event{Type: EvtError, ErrorMessage: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}
