// Package daemon implements the CLI-facing control surface (spec.md §6):
// a Unix domain socket carrying newline-delimited JSON requests/responses,
// a single-instance file lock, and the client used by cmd/nd.
//
// This is deliberately not gRPC: spec.md §6 fixes the wire protocol as a
// plain line-oriented JSON exchange over a Unix socket, so the richer
// streaming transport is out of scope here (see DESIGN.md).
package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"
)

// RequestType discriminates the Request variants (spec.md §6).
type RequestType string

const (
	RequestRegisterTask RequestType = "register_task"
	RequestCompleteTask RequestType = "complete_task"
	RequestListTasks    RequestType = "list_tasks"
	RequestGetHistory   RequestType = "get_history"
	RequestPing         RequestType = "ping"
	RequestShutdown     RequestType = "shutdown"
)

// Request is sent client -> daemon. Only the fields relevant to Type are
// populated; the rest are the zero value.
type Request struct {
	Type         RequestType `json:"type"`
	ID           string      `json:"id,omitempty"`
	Command      string      `json:"command,omitempty"`
	Name         string      `json:"name,omitempty"`
	PID          uint32      `json:"pid,omitempty"`
	ExitCode     int32       `json:"exit_code,omitempty"`
	DurationSecs uint64      `json:"duration_secs,omitempty"`
	Count        int         `json:"count,omitempty"`
}

// ResponseType discriminates the Response variants.
type ResponseType string

const (
	ResponseOk      ResponseType = "ok"
	ResponseError   ResponseType = "error"
	ResponseTasks   ResponseType = "tasks"
	ResponseHistory ResponseType = "history"
	ResponsePong    ResponseType = "pong"
)

// TaskInfo mirrors registry.TaskInfo over the wire.
type TaskInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Name      string    `json:"name,omitempty"`
	PID       uint32    `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// HistoryEntry mirrors registry.HistoryEntry over the wire.
type HistoryEntry struct {
	Command     string        `json:"command"`
	Name        string        `json:"name,omitempty"`
	ExitCode    int32         `json:"exit_code"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
	Success     bool          `json:"success"`
}

// Response is sent daemon -> client.
type Response struct {
	Type    ResponseType   `json:"type"`
	Error   string         `json:"error,omitempty"`
	Tasks   []TaskInfo     `json:"tasks,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

func writeJSONLine(w *bufio.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("daemon: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("daemon: write: %w", err)
	}
	return w.Flush()
}

func readJSONLine(r *bufio.Reader, v interface{}) error {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("daemon: unmarshal: %w", err)
	}
	return nil
}
