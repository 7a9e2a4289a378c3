// Command notify-doned is the kernel-assisted daemon (spec.md §4, §6): it
// loads the eBPF probe, tracks process lifecycles, and notifies users'
// desktop sessions when a long-running command finishes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/JacquesDurand/notify-done/internal/bpf"
	"github.com/JacquesDurand/notify-done/internal/config"
	nddaemon "github.com/JacquesDurand/notify-done/internal/daemon"
	"github.com/JacquesDurand/notify-done/internal/logging"
	"github.com/JacquesDurand/notify-done/internal/processor"
	"github.com/JacquesDurand/notify-done/internal/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notify-doned:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDaemonConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logging.New(cfg.Debug)
	log.Info("notify-done daemon starting")
	log.WithField("threshold_seconds", cfg.ThresholdSeconds).Info("configuration loaded")

	loader, err := bpf.Load()
	if err != nil {
		return fmt.Errorf("load eBPF programs: %w", err)
	}
	defer loader.Close()

	reader, err := loader.RingReader()
	if err != nil {
		return fmt.Errorf("open ring buffer: %w", err)
	}
	defer reader.Close()

	proc := processor.New(log, cfg)

	reg := registry.New(nddaemon.HistoryPath(), 1000)
	srv := nddaemon.NewServer(log, reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if sent, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
		log.WithError(err).Debug("sd_notify failed")
	} else if sent {
		log.Debug("sent systemd readiness notification")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return proc.Run(ctx, reader)
	})
	g.Go(func() error {
		err := srv.Run(ctx)
		// A client Shutdown request ends srv.Run with a nil error, which the
		// errgroup does not treat as a stop signal; cancel so Processor.Run
		// returns as well.
		cancel()
		if err != nil {
			return fmt.Errorf("task registry server: %w", err)
		}
		return nil
	})

	log.Info("notify-done daemon running")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("notify-done daemon stopped")
	return nil
}
