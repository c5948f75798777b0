package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/audio"
	"github.com/jaschadub/aaeq/internal/capture"
	"github.com/jaschadub/aaeq/internal/dsp"
	"github.com/jaschadub/aaeq/internal/output"
	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/sinks/aanpnode"
	"github.com/jaschadub/aaeq/internal/sinks/airplay"
	"github.com/jaschadub/aaeq/internal/sinks/dlna"
	"github.com/jaschadub/aaeq/internal/sinks/localdac"
	"github.com/jaschadub/aaeq/internal/store"
)

const connectNegotiationTimeout = 5 * time.Second

func (e *Engine) handleConnectDevice(ctx context.Context, cmd Command) {
	dialCtx, cancel := context.WithTimeout(ctx, connectNegotiationTimeout)
	defer cancel()

	conn, err := aanp.Dial(dialCtx, cmd.Host, aanp.ControlPort)
	if err != nil {
		e.emit(Event{Type: EvtConnectionFailed, Host: cmd.Host})
		return
	}

	init, err := conn.ReadSessionInit(connectNegotiationTimeout)
	if err != nil {
		conn.Close()
		e.emit(Event{Type: EvtConnectionFailed, Host: cmd.Host})
		return
	}

	accept, err := e.aanpServer.Negotiate(init, aanp.AcceptConfig{
		PayloadType: aanp.PayloadTypeL16,
		SampleRate:  44100,
		RecommendedConfig: aanp.RecommendedConfig{
			SampleRate: 44100,
			Format:     "s16le",
			BufferMs:   200,
			Reason:     "default",
		},
		Volume: aanp.VolumeConfig{InitialLevel: 0.5, ControlMode: "software", CurveType: "logarithmic"},
		Buffer: aanp.BufferConfig{TargetMs: 200, MinMs: 100, MaxMs: 400, StartThresholdMs: 50},
	})
	if err != nil {
		conn.Close()
		e.emit(Event{Type: EvtConnectionFailed, Host: cmd.Host})
		return
	}
	if err := conn.WriteJSON(accept); err != nil {
		conn.Close()
		e.emit(Event{Type: EvtConnectionFailed, Host: cmd.Host})
		return
	}

	deviceName := init.NodeCapabilities.DACName
	if deviceName == "" {
		deviceName = cmd.Host
	}
	deviceID, createErr := e.findOrCreateDevice(deviceName, cmd.Host)
	if createErr != nil {
		e.logger.Warn("persisting connected device failed", "err", createErr)
	}

	if e.aanpConn != nil {
		e.aanpConn.Close()
	}
	e.aanpConn = conn
	e.aanpAccept = accept
	e.connectedTo = cmd.Host
	e.deviceID = deviceID
	_ = e.store.AppSettings().SetLastConnectedHost(cmd.Host)

	e.emit(Event{Type: EvtConnected, Host: cmd.Host})
}

func (e *Engine) findOrCreateDevice(name, host string) (int64, error) {
	devices, err := e.store.Devices().ListAll()
	if err != nil {
		return 0, err
	}
	for _, d := range devices {
		if d.Host == host {
			if d.Name != name {
				_ = e.store.Devices().UpdateHost(d.ID, host)
			}
			return d.ID, nil
		}
	}
	return e.store.Devices().Create(name, host)
}

func (e *Engine) handleDiscoverDevices(ctx context.Context) {
	devices, err := e.store.Devices().ListAll()
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}
	out := make([]DiscoveredDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, DiscoveredDevice{Name: d.Name, Host: d.Host})
	}
	e.emit(Event{Type: EvtDevicesDiscovered, Devices: out})
}

func (e *Engine) handleRefreshPresets() {
	names, err := e.store.EqPresets().ListNames()
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}
	e.emit(Event{Type: EvtPresetsLoaded, PresetNames: names})
}

func (e *Engine) handleApplyPreset(ctx context.Context, cmd Command) {
	preset, ok, err := e.store.EqPresets().GetByName(cmd.PresetName)
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}
	if !ok {
		e.emit(Event{Type: EvtError, ErrorMessage: fmt.Sprintf("preset %q not found", cmd.PresetName)})
		return
	}

	e.mu.Lock()
	st := e.streaming
	e.mu.Unlock()
	if st != nil {
		st.pipeline.LoadPreset(toDSPPreset(preset), 0.707)
	}

	if e.deviceID != 0 {
		_, lastPreset, ok, _ := e.store.LastApplied().Get(e.deviceID)
		if !ok || lastPreset != cmd.PresetName {
			_ = e.store.LastApplied().Update(e.deviceID, "", cmd.PresetName)
		}
	}
	e.emit(Event{Type: EvtPresetApplied, PresetName: cmd.PresetName})
}

func toDSPPreset(p store.EqPreset) dsp.EqPreset {
	bands := make([]dsp.EqBand, len(p.Bands))
	for i, b := range p.Bands {
		bands[i] = dsp.EqBand{FrequencyHz: b.FreqHz, GainDB: b.GainDB}
	}
	return dsp.EqPreset{Name: p.Name, Bands: bands}
}

func (e *Engine) handleSaveMapping(cmd Command) {
	key := mappingKeyFor(cmd.Scope, cmd.Track)

	_, err := e.store.Mappings().Upsert(mappingFor(cmd.Scope, key, cmd.PresetName))
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}

	idx, err := buildRulesIndex(e.store)
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}
	e.rulesIdx = idx
	e.emit(Event{Type: EvtMappingSaved, Message: fmt.Sprintf("mapping saved for %s", key)})
}

func (e *Engine) handleUpdateGenre(cmd Command) {
	if err := e.store.GenreOverrides().Upsert(cmd.TrackKey, cmd.Genre); err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
	}
}

func (e *Engine) handleBackupDatabase(cmd Command) {
	dbPath := e.store.DBPath()
	if dbPath == "" {
		e.emit(Event{Type: EvtError, ErrorMessage: "store has no on-disk backing file to back up"})
		return
	}
	archivePath, size, err := store.Backup(dbPath, cmd.BackupPath, time.Now())
	if err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}
	e.logger.Info("database backup created", "path", archivePath, "size", humanize.Bytes(uint64(size)))
	e.emit(Event{Type: EvtBackupCreated, BackupPath: archivePath})
}

func (e *Engine) handleSaveInputDevice(cmd Command) {
	if err := e.store.AppSettings().SetLastInputDevice(cmd.InputDeviceName); err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
	}
}

func (e *Engine) handleDspDiscoverDevices(ctx context.Context, cmd Command) {
	switch cmd.SinkType {
	case "localdac":
		names, err := localdac.ListOutputDevices()
		if err != nil {
			e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
			return
		}
		e.emit(Event{Type: EvtDspDevicesDiscovered, DspDeviceNames: names})
	case "dlna":
		devices, err := dlna.Discover(ctx, 3*time.Second)
		if err != nil {
			e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
			return
		}
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = d.FriendlyName
		}
		e.emit(Event{Type: EvtDspDevicesDiscovered, DspDeviceNames: names})
	case "airplay":
		if cmd.FallbackIP == "" {
			e.emit(Event{Type: EvtError, ErrorMessage: "airplay discovery requires fallback_ip: no mDNS browse client is wired"})
			return
		}
		target, err := airplay.ProbeFallback(ctx, cmd.FallbackIP, 5000)
		if err != nil {
			e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
			return
		}
		e.emit(Event{Type: EvtDspDevicesDiscovered, DspDeviceNames: []string{target.Name}})
	default:
		e.emit(Event{Type: EvtError, ErrorMessage: fmt.Sprintf("unknown sink type %q", cmd.SinkType)})
	}
}

func (e *Engine) handleDspStartStreaming(ctx context.Context, cmd Command) {
	e.mu.Lock()
	existing := e.streaming
	e.mu.Unlock()
	if existing != nil {
		e.handleDspStopStreaming()
	}

	mgr := output.NewManager()
	var sink interface {
		Name() string
	}
	switch cmd.SinkType {
	case "localdac":
		s := localdac.New(cmd.DeviceName, e.logger)
		mgr.Register(s)
		sink = s
	case "dlna":
		s := dlna.New(":0", dlna.Device{FriendlyName: cmd.DeviceName}, dlna.ModePull, e.logger)
		mgr.Register(s)
		sink = s
	case "airplay":
		s := airplay.New(airplay.Target{Name: cmd.DeviceName, Host: cmd.DeviceName, Port: 5000}, e.logger)
		mgr.Register(s)
		sink = s
	case "aanp":
		if e.aanpConn == nil {
			e.emit(Event{Type: EvtError, ErrorMessage: "aanp sink requires a connected node: send connect_device first"})
			return
		}
		s := aanpnode.New(e.connectedTo, e.aanpAccept, e.logger)
		mgr.Register(s)
		sink = s
	default:
		e.emit(Event{Type: EvtError, ErrorMessage: fmt.Sprintf("unknown sink type %q", cmd.SinkType)})
		return
	}

	if err := mgr.SelectSinkByName(ctx, sink.Name(), cmd.OutputCfg); err != nil {
		e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
		return
	}

	pipeline := dsp.NewPipeline(cmd.OutputCfg.Channels, dsp.Config{
		ResamplerQual: dsp.High,
		DitherMode:    dsp.DitherTPDF,
		NoiseShape:    dsp.ShapeFirstOrder,
		OutputRate:    cmd.OutputCfg.SampleRate,
		OutputFormat:  cmd.OutputCfg.Format,
	})

	streamCtx, cancel := context.WithCancel(ctx)
	blocks := make(chan audio.Block, 8)

	var captureSess *capture.Session
	if cmd.UseTestTone {
		go generateTestTone(streamCtx, cmd.OutputCfg, blocks)
	} else {
		var err error
		captureSess, err = capture.Start(streamCtx, cmd.InputDevice, capture.Config{
			SampleRate: cmd.OutputCfg.SampleRate,
			Channels:   cmd.OutputCfg.Channels,
		}, blocks, e.logger)
		if err != nil {
			cancel()
			mgr.CloseActive(ctx)
			e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
			return
		}
	}

	if cmd.PresetName != "" {
		if preset, ok, _ := e.store.EqPresets().GetByName(cmd.PresetName); ok {
			pipeline.LoadPreset(toDSPPreset(preset), 0.707)
		}
	}

	done := make(chan struct{})
	st := &streamingState{
		cancel:      cancel,
		captureSess: captureSess,
		pipeline:    pipeline,
		manager:     mgr,
		sinkName:    sink.Name(),
		done:        done,
	}
	e.mu.Lock()
	e.streaming = st
	e.mu.Unlock()

	go e.pumpStreaming(streamCtx, st, blocks)

	e.emit(Event{Type: EvtDspStreamingStarted})
}

func (e *Engine) pumpStreaming(ctx context.Context, st *streamingState, blocks <-chan audio.Block) {
	defer close(st.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-blocks:
			if !ok {
				return
			}
			processed := st.pipeline.Process(block)
			if err := st.manager.Write(ctx, processed); err != nil {
				e.emit(Event{Type: EvtError, ErrorMessage: err.Error()})
				continue
			}
			e.emitAudioTap(processed)
		case <-ticker.C:
			e.emitStreamStatus(st)
		}
	}
}

func (e *Engine) emitAudioTap(block audio.Block) {
	if block.Channels <= 0 || len(block.Samples) == 0 {
		return
	}
	frames := block.Frames()
	n := frames
	if n > 256 {
		n = 256
	}
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = block.Samples[i*block.Channels]
	}
	e.emit(Event{Type: EvtDspAudioSamples, Samples: samples})
}

func (e *Engine) emitStreamStatus(st *streamingState) {
	latency, _ := st.manager.ActiveSinkLatency()
	stats, _ := st.manager.Stats(st.sinkName)
	e.emit(Event{
		Type:          EvtDspStreamStatus,
		LatencyMs:     latency,
		FramesWritten: stats.FramesWritten,
		Underruns:     stats.Underruns,
		BufferFill:    stats.BufferFill,
	})
}

func (e *Engine) handleDspStopStreaming() {
	e.mu.Lock()
	st := e.streaming
	e.streaming = nil
	e.mu.Unlock()
	if st == nil {
		return
	}
	e.teardownStreaming(st)
	e.emit(Event{Type: EvtDspStreamingStopped})
}

func (e *Engine) teardownStreaming(st *streamingState) {
	st.cancel()
	if st.captureSess != nil {
		st.captureSess.Stop()
	}
	<-st.done
	st.manager.CloseActive(context.Background())
}

func (e *Engine) handlePoll(ctx context.Context) {
	e.mu.Lock()
	st := e.streaming
	e.mu.Unlock()
	if st != nil {
		e.emitStreamStatus(st)
	}

	if e.trackSource == nil {
		return
	}
	track, ok := e.trackSource.Current()
	if !ok {
		return
	}

	preset, changed := e.debouncer.Poll(track, e.rulesIdx, e.genreAdapt, e.fallback)
	e.emit(Event{Type: EvtTrackUpdated, Track: track, Preset: preset})

	if e.deviceID == 0 {
		return
	}
	deviceIDStr := deviceIDString(e.deviceID)
	if !resolver.ShouldApply(e.lastAdapt, deviceIDStr, track.TrackKey(), preset, changed) {
		return
	}
	e.lastAdapt.Update(deviceIDStr, track.TrackKey(), preset)
	e.applyResolvedPreset(ctx, preset)
}

// applyResolvedPreset pushes preset into the live pipeline, if one is
// streaming, mirroring what a manual ApplyPreset command does.
func (e *Engine) applyResolvedPreset(ctx context.Context, presetName string) {
	stored, ok, err := e.store.EqPresets().GetByName(presetName)
	if err != nil || !ok {
		return
	}
	e.mu.Lock()
	st := e.streaming
	e.mu.Unlock()
	if st != nil {
		st.pipeline.LoadPreset(toDSPPreset(stored), 0.707)
	}
	e.emit(Event{Type: EvtPresetApplied, PresetName: presetName})
}

// generateTestTone feeds a 440Hz sine wave into blocks until ctx is
// canceled, for DspStartStreaming's use_test_tone mode.
func generateTestTone(ctx context.Context, cfg audio.OutputConfig, blocks chan<- audio.Block) {
	const freqHz = 440.0
	const frameCount = 480
	phase := 0.0
	step := 2 * 3.14159265358979 * freqHz / float64(cfg.SampleRate)

	ticker := time.NewTicker(time.Duration(frameCount) * time.Second / time.Duration(cfg.SampleRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			samples := make([]float64, frameCount*cfg.Channels)
			for i := 0; i < frameCount; i++ {
				v := 0.2 * math.Sin(phase)
				phase += step
				for ch := 0; ch < cfg.Channels; ch++ {
					samples[i*cfg.Channels+ch] = v
				}
			}
			block := audio.NewBlock(samples, cfg.SampleRate, cfg.Channels)
			select {
			case blocks <- block:
			case <-ctx.Done():
				return
			}
		}
	}
}

func mappingKeyFor(scope resolver.Scope, track resolver.TrackMeta) string {
	switch scope {
	case resolver.ScopeSong:
		return track.SongKey()
	case resolver.ScopeAlbum:
		return track.AlbumKey()
	case resolver.ScopeGenre:
		return track.GenreKey()
	default:
		return ""
	}
}

func mappingFor(scope resolver.Scope, key, presetName string) resolver.Mapping {
	return resolver.Mapping{Scope: scope, KeyNormalized: key, PresetName: presetName}
}
