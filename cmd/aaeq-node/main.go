// Command aaeq-node runs a playback node: it answers the AANP control
// channel, accepts one session at a time from the hub, and plays the
// resulting RTP stream out through a local DAC.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/nodeserver"
	"github.com/jaschadub/aaeq/internal/sinks/localdac"
)

func main() {
	logger := log.New(os.Stderr)

	var (
		listenAddr  = pflag.StringP("listen", "l", ":7100", "Control-channel listen address.")
		deviceName  = pflag.StringP("output-device", "o", "", "PortAudio output device name (empty selects the host default).")
		name        = pflag.String("name", "", "mDNS instance name (defaults to the hostname).")
		noAdvertise = pflag.Bool("no-mdns", false, "Disable mDNS/DNS-SD advertisement.")
		opusMonitor = pflag.Bool("opus-monitor", false, "Experimental: run each played block through an Opus encode/decode round trip for debug tap sizing (does not affect playback audio).")
	)
	pflag.Parse()

	instanceName := *name
	if instanceName == "" {
		if host, err := os.Hostname(); err == nil {
			instanceName = host
		} else {
			instanceName = "aaeq-node"
		}
	}

	caps := aanp.NodeCapabilities{
		Platform:          runtime.GOOS,
		DACName:           *deviceName,
		MaxSampleRate:     192000,
		SupportedFormats:  []string{"S16LE", "S24LE"},
		NativeFormat:      "S24LE",
		MaxChannels:       2,
		BufferRangeMs:     [2]int{20, 500},
		HasHardwareVolume: false,
		VolumeCurve:       "linear",
		CPUInfo:           aanp.CPUInfo{Arch: runtime.GOARCH, Cores: runtime.NumCPU()},
	}
	features := []aanp.Feature{aanp.FeatureCapabilities, aanp.FeatureVolumeControl, aanp.FeatureGapless}
	optional := []aanp.Feature{aanp.FeatureMicroPLL, aanp.FeatureCRCVerify}

	sink := localdac.New(*deviceName, logger.With("component", "localdac"))
	ns := nodeserver.New(caps, features, optional, sink, logger.With("component", "nodeserver"))

	if *opusMonitor {
		if tap, err := nodeserver.NewOpusMonitorTap(48000, 2); err != nil {
			logger.Warn("opus monitor tap unavailable", "err", err)
		} else {
			ns.SetMonitorTap(tap, 24000)
			logger.Info("opus monitor tap enabled (debug only, not used for playback)")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	ns.Register(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		ns.Stop()
		cancel()
	}()

	if !*noAdvertise {
		rec := aanp.Record{
			Version:          aanp.ProtocolVersion,
			SampleRates:      []int{44100, 48000, 96000, 192000},
			BitDepths:        []string{"S16LE", "S24LE"},
			Channels:         2,
			CoreFeatures:     features,
			OptionalFeatures: optional,
			State:            aanp.StateDisconnected,
			DACName:          *deviceName,
			Platform:         runtime.GOOS,
		}
		adv, err := aanp.Advertise(ctx, instanceName, aanp.ControlPort, rec)
		if err != nil {
			logger.Warn("mdns advertise failed, continuing without discovery", "err", err)
		} else {
			defer adv.Shutdown(context.Background())
		}
	}

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithCancel(context.Background())
		defer shutCancel()
		_ = e.Shutdown(shutCtx)
	}()

	logger.Info("aanp node listening", "addr", *listenAddr, "name", instanceName)
	if err := e.Start(*listenAddr); err != nil && err != http.ErrServerClosed {
		logger.Fatal("control server", "err", err)
	}
}
