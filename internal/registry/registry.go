// Package registry tracks locally-registered foreground tasks and their
// history for the daemon's CLI-facing IPC surface (spec.md §6, "surrounding
// material"). This is independent of the eBPF tracking pipeline: it exists
// so "nd -- <command>" wrapper invocations show up in "nd list"/"nd history"
// even when the wrapped command runs as the invoking user rather than a
// traced background job.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TaskInfo describes a task currently registered as running.
type TaskInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Name      string    `json:"name,omitempty"`
	PID       uint32    `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// RunningDuration returns how long the task has been running, measured from
// StartedAt to now.
func (t TaskInfo) RunningDuration() time.Duration {
	return time.Since(t.StartedAt)
}

// HistoryEntry is a single completed-task record persisted to disk.
type HistoryEntry struct {
	Command     string        `json:"command"`
	Name        string        `json:"name,omitempty"`
	ExitCode    int32         `json:"exit_code"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
	Success     bool          `json:"success"`
}

// Registry tracks running tasks in memory and persists bounded history to
// disk as JSON.
type Registry struct {
	mu          sync.RWMutex
	tasks       map[string]TaskInfo
	history     []HistoryEntry
	historyPath string
	maxHistory  int
}

// New loads any existing history from historyPath (if non-empty and
// present) and returns a ready Registry.
func New(historyPath string, maxHistory int) *Registry {
	r := &Registry{
		tasks:       make(map[string]TaskInfo),
		historyPath: historyPath,
		maxHistory:  maxHistory,
	}

	if historyPath != "" {
		if data, err := os.ReadFile(historyPath); err == nil {
			_ = json.Unmarshal(data, &r.history)
		}
	}

	return r
}

// Register records a newly-started task.
func (r *Registry) Register(info TaskInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[info.ID] = info
}

// Complete removes the running task with id, appends a HistoryEntry derived
// from it, trims history to maxHistory (oldest discarded first), persists to
// disk, and returns the removed TaskInfo (ok=false if id was not registered).
func (r *Registry) Complete(id string, exitCode int32, duration time.Duration) (TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	delete(r.tasks, id)

	entry := HistoryEntry{
		Command:     task.Command,
		Name:        task.Name,
		ExitCode:    exitCode,
		Duration:    duration,
		CompletedAt: time.Now(),
		Success:     exitCode == 0,
	}
	r.history = append(r.history, entry)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}

	r.saveHistory()
	return task, true
}

// ListTasks returns all currently-registered running tasks in no
// particular order.
func (r *Registry) ListTasks() []TaskInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

// GetHistory returns up to count of the most recent history entries,
// most-recent first.
func (r *Registry) GetHistory(count int) []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.history)
	if count > n {
		count = n
	}
	out := make([]HistoryEntry, count)
	for i := 0; i < count; i++ {
		out[i] = r.history[n-1-i]
	}
	return out
}

// Remove drops a registered task without recording history, e.g. if its
// process died without reporting completion.
func (r *Registry) Remove(id string) (TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	return task, ok
}

func (r *Registry) saveHistory() {
	if r.historyPath == "" {
		return
	}
	if dir := filepath.Dir(r.historyPath); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	data, err := json.MarshalIndent(r.history, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(r.historyPath, data, 0o644)
}
