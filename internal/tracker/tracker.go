// Package tracker implements the Process Tracker (spec.md §4.4, §4.9): it
// pairs exec and exit records by tgid, computes durations, and keeps a
// bounded history of completed processes.
package tracker

import (
	"time"

	"github.com/JacquesDurand/notify-done/internal/bpfrecord"
)

// TrackedProcess is an active entry between a matched exec and its exit
// (spec.md §3).
type TrackedProcess struct {
	Pid              uint32
	Tgid             uint32
	Ppid             uint32
	Uid              uint32
	Comm             string
	ExecutablePath   string
	StartInstant     time.Time
	StartTimestampNs uint64
}

// CompletedProcess is produced by a matched (exec, exit) pair (spec.md §3).
type CompletedProcess struct {
	Pid            uint32
	Tgid           uint32
	Uid            uint32
	Comm           string
	ExecutablePath string
	ExitCode       int32
	Duration       time.Duration
}

// nowFunc is overridden in tests to make wall-clock-fallback duration
// deterministic.
var nowFunc = time.Now

// Tracker owns the active-process table and the bounded completion history.
// It is exclusively owned by the Event Processor (spec.md §9) and is not
// safe for concurrent use by multiple goroutines.
type Tracker struct {
	active     map[uint32]TrackedProcess
	history    []CompletedProcess
	maxHistory int
}

// New returns a Tracker with the given history cap (spec.md §4.4 default:
// 1000).
func New(maxHistory int) *Tracker {
	return &Tracker{
		active:     make(map[uint32]TrackedProcess),
		maxHistory: maxHistory,
	}
}

// OnExec upserts the active entry for record.Tgid. A second exec for the
// same tgid overwrites the first entry (spec.md §4.9: exec reuses the tgid).
func (t *Tracker) OnExec(record bpfrecord.ExecRecord) {
	t.active[record.Tgid] = TrackedProcess{
		Pid:              record.Pid,
		Tgid:             record.Tgid,
		Ppid:             record.Ppid,
		Uid:              record.Uid,
		Comm:             record.Comm,
		ExecutablePath:   record.Filename,
		StartInstant:     nowFunc(),
		StartTimestampNs: record.TimestampNs,
	}
}

// OnExit removes the active entry for record.Tgid and returns the resulting
// CompletedProcess. If there was no matching exec (the process predates the
// daemon, or was filtered), it returns (CompletedProcess{}, false) and the
// active table is unchanged (spec.md §4.4, §8 "Orphan").
func (t *Tracker) OnExit(record bpfrecord.ExitRecord) (CompletedProcess, bool) {
	tracked, ok := t.active[record.Tgid]
	if !ok {
		return CompletedProcess{}, false
	}
	delete(t.active, record.Tgid)

	var duration time.Duration
	if record.TimestampNs > tracked.StartTimestampNs {
		duration = time.Duration(record.TimestampNs-tracked.StartTimestampNs) * time.Nanosecond
	} else {
		duration = nowFunc().Sub(tracked.StartInstant)
	}

	completed := CompletedProcess{
		Pid:            tracked.Pid,
		Tgid:           tracked.Tgid,
		Uid:            tracked.Uid,
		Comm:           tracked.Comm,
		ExecutablePath: tracked.ExecutablePath,
		ExitCode:       record.ExitCode,
		Duration:       duration,
	}

	t.history = append(t.history, completed)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}

	return completed, true
}

// ActiveCount returns the number of processes currently between exec and
// exit.
func (t *Tracker) ActiveCount() int {
	return len(t.active)
}

// History returns the completed-process history, oldest first, length
// min(completions seen, cap).
func (t *Tracker) History() []CompletedProcess {
	out := make([]CompletedProcess, len(t.history))
	copy(out, t.history)
	return out
}

// CleanupStale evicts active entries whose wall-clock age exceeds maxAge
// (spec.md §4.4, default 24h). No notification is emitted; history is
// untouched.
func (t *Tracker) CleanupStale(maxAge time.Duration) int {
	now := nowFunc()
	evicted := 0
	for tgid, p := range t.active {
		if now.Sub(p.StartInstant) > maxAge {
			delete(t.active, tgid)
			evicted++
		}
	}
	return evicted
}
