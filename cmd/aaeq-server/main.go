// Command aaeq-server runs the AAEQ hub: it owns the capture device,
// the DSP pipeline, the preset resolver and persistence store, and
// negotiates AANP sessions against playback nodes. Front-ends drive it
// over HTTP at frontend.listen_addr (overridden by --http-listen).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/jaschadub/aaeq/internal/config"
	"github.com/jaschadub/aaeq/internal/engine"
	"github.com/jaschadub/aaeq/internal/frontend"
	"github.com/jaschadub/aaeq/internal/store/sqlite"
)

func main() {
	logger := log.New(os.Stderr)

	fs := pflag.NewFlagSet("aaeq-server", pflag.ExitOnError)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal("parse flags", "err", err)
	}

	cfgPath := flags.ConfigPath
	if cfgPath == "" {
		cfgPath = "aaeq.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", "path", cfgPath, "err", err)
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	st, err := sqlite.Open(cfg.Store.DBPath, logger)
	if err != nil {
		logger.Fatal("open store", "path", cfg.Store.DBPath, "err", err)
	}
	defer st.Close()

	eng := engine.New(st, cfg.Resolver.FallbackPreset, logger.With("component", "engine"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	go eng.Run(ctx)
	go pollLoop(ctx, eng, time.Duration(cfg.Resolver.PollIntervalMs)*time.Millisecond)

	front := frontend.New(eng, logger.With("component", "frontend"))
	if err := front.Run(ctx, cfg.Frontend.ListenAddr); err != nil {
		logger.Fatal("frontend server", "err", err)
	}
}

// pollLoop periodically enqueues a Poll command so the engine's resolver
// re-evaluates the now-playing track without the front-end having to
// drive it.
func pollLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case eng.Commands() <- engine.Command{Type: engine.CmdPoll}:
			default:
			}
		}
	}
}
