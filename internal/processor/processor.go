// Package processor implements the Event Processor (spec.md §4.8): the
// single owner of the Tracker, the user-config cache, and the Session
// cache, driving the ring-buffer drain loop and hourly cleanup sweep.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cilium/ebpf/ringbuf"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/JacquesDurand/notify-done/internal/bpfrecord"
	"github.com/JacquesDurand/notify-done/internal/config"
	"github.com/JacquesDurand/notify-done/internal/notifier"
	"github.com/JacquesDurand/notify-done/internal/session"
	"github.com/JacquesDurand/notify-done/internal/tracker"
)

// historySize is the Tracker's completed-process cap (spec.md §4.4 default).
const historySize = 1000

const staleAge = 24 * time.Hour

// ringReader is the subset of *ringbuf.Reader the processor depends on, so
// tests can substitute a fake without opening a real ring buffer. Close lets
// Run unblock a goroutine parked inside a blocking Read when ctx is
// cancelled on an otherwise idle ring.
type ringReader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// Processor owns the Tracker, Session cache, Notifier, and the per-uid
// user-config cache; it is the only goroutine group permitted to mutate any
// of them (spec.md §4.8, §9).
type Processor struct {
	log    *logrus.Logger
	daemon config.DaemonConfig

	tracker   *tracker.Tracker
	sessions  *session.Discovery
	notify    *notifier.Notifier
	userCfgs  map[uint32]*config.UserConfig
	loadedCfg map[uint32]bool
}

// New constructs a Processor for the given daemon configuration.
func New(log *logrus.Logger, daemon config.DaemonConfig) *Processor {
	if log == nil {
		log = logrus.New()
	}
	return &Processor{
		log:       log,
		daemon:    daemon,
		tracker:   tracker.New(historySize),
		sessions:  session.New(log),
		notify:    notifier.New(log),
		userCfgs:  make(map[uint32]*config.UserConfig),
		loadedCfg: make(map[uint32]bool),
	}
}

// Run drives the drain loop, the hourly cleanup schedule, and shutdown on
// ctx cancellation (spec.md §4.8, mirroring the teacher's continuous
// broadcaster goroutine). It returns when ctx is cancelled or an
// unrecoverable ring-buffer error occurs.
func (p *Processor) Run(ctx context.Context, reader ringReader) error {
	g, ctx := errgroup.WithContext(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc("@hourly", p.cleanup); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// reader.Read blocks indefinitely on an idle ring, so the drain
	// goroutine below never observes ctx.Done() on its own; closing the
	// reader here is what unblocks it on shutdown.
	g.Go(func() error {
		<-ctx.Done()
		if err := reader.Close(); err != nil {
			return fmt.Errorf("close ring reader: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return p.drainLoop(ctx, reader)
	})

	return g.Wait()
}

// drainLoop reads records back-to-back until the reader is closed or ctx is
// cancelled, rather than gating each read behind a ticker: the kernel can
// emit an exec+exit pair per process, and anything less than continuous
// draining risks ring overflow under load (spec.md §4.2, §4.8).
func (p *Processor) drainLoop(ctx context.Context, reader ringReader) error {
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ring buffer read failed: %w", err)
		}
		p.handleRecord(record.RawSample)
	}
}

func (p *Processor) handleRecord(data []byte) {
	if len(data) == 0 {
		return
	}

	switch data[0] {
	case bpfrecord.TagExec:
		rec, err := bpfrecord.DecodeExec(data)
		if err != nil {
			p.log.WithError(err).Debug("dropped malformed exec record")
			return
		}
		if p.daemon.Debug {
			p.log.WithFields(logrus.Fields{"tgid": rec.Tgid, "comm": rec.Comm}).Debug("exec event")
		}
		p.tracker.OnExec(rec)

	case bpfrecord.TagExit:
		rec, err := bpfrecord.DecodeExit(data)
		if err != nil {
			p.log.WithError(err).Debug("dropped malformed exit record")
			return
		}
		if p.daemon.Debug {
			p.log.WithFields(logrus.Fields{"tgid": rec.Tgid, "comm": rec.Comm}).Debug("exit event")
		}
		completed, ok := p.tracker.OnExit(rec)
		if !ok {
			p.log.WithFields(logrus.Fields{"tgid": rec.Tgid, "comm": rec.Comm}).Debug("exit for untracked process")
			return
		}
		p.maybeNotify(completed)

	default:
		p.log.WithField("tag", data[0]).Warn("unknown event type")
	}
}

func (p *Processor) maybeNotify(process tracker.CompletedProcess) {
	userCfg := p.getUserConfig(process.Uid)
	effective := config.NewEffectiveConfig(p.daemon, userCfg)

	durationSeconds := uint64(process.Duration.Seconds())
	if !effective.ShouldNotify(process.Comm, durationSeconds) {
		p.log.WithFields(logrus.Fields{
			"comm":      process.Comm,
			"duration":  durationSeconds,
			"threshold": effective.ThresholdSeconds,
		}).Debug("skipping notification")
		return
	}

	sess, ok := p.sessions.GetSession(process.Uid)
	if !ok {
		p.log.WithField("uid", process.Uid).Warn("no session found, skipping notification")
		return
	}

	// Delivery shells out to systemd-run and can block briefly; detach it so
	// a slow or wedged session never stalls the drain loop.
	go func() {
		p.notify.Notify(sess, process)
		p.log.WithFields(logrus.Fields{
			"user":     sess.Username,
			"comm":     process.Comm,
			"duration": durationSeconds,
			"exitCode": process.ExitCode,
		}).Info("sent notification")
	}()
}

func (p *Processor) getUserConfig(uid uint32) *config.UserConfig {
	if p.loadedCfg[uid] {
		return p.userCfgs[uid]
	}

	cfg, err := config.LoadUserConfig(uid)
	if err != nil {
		p.log.WithField("uid", uid).WithError(err).Debug("failed to load user config")
		cfg = nil
	}
	p.userCfgs[uid] = cfg
	p.loadedCfg[uid] = true
	return cfg
}

// cleanup runs the hourly sweep: evicts stale active processes, refreshes
// the session cache, and clears the user-config cache (spec.md §4.8).
func (p *Processor) cleanup() {
	evicted := p.tracker.CleanupStale(staleAge)
	if evicted > 0 {
		p.log.WithField("evicted", evicted).Debug("evicted stale tracked processes")
	}
	p.sessions.ClearCache()
	p.userCfgs = make(map[uint32]*config.UserConfig)
	p.loadedCfg = make(map[uint32]bool)
}

// Tracker exposes the underlying Tracker for read-only queries. The daemon's
// IPC handlers do not use it; they serve tasks from internal/registry.
func (p *Processor) Tracker() *tracker.Tracker { return p.tracker }
