package daemon

import (
	"os"
	"path/filepath"
)

const socketFileName = "notify-done.sock"

// SocketPath resolves the Unix socket path: $XDG_RUNTIME_DIR if set, else
// /tmp (spec.md §6).
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketFileName)
	}
	return filepath.Join("/tmp", socketFileName)
}

// LockPath resolves the single-instance lock file path, alongside the
// socket.
func LockPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "notify-done.lock")
	}
	return filepath.Join("/tmp", "notify-done.lock")
}

// HistoryPath resolves where the local task registry persists its history,
// under the user's XDG data directory.
func HistoryPath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("/tmp", "notify-done", "history.json")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "notify-done", "history.json")
}
