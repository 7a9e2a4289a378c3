// Package config implements the Effective-Config Resolver (spec.md §4.5):
// merging a system-wide daemon policy with an optional per-user override
// into a decision function, plus the TOML loading both sides are read from.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// SystemConfigPath is where the daemon policy lives (spec.md §6).
const SystemConfigPath = "/etc/notify-done/config.toml"

// DefaultIgnorePatterns is the shipped ignore list (spec.md §6).
var DefaultIgnorePatterns = []string{
	"vim", "nvim", "nano", "less", "more", "man",
	"bash", "zsh", "fish", "sh",
	"ssh", "tmux", "screen", "htop", "top",
	"ls", "cat", "grep", "find", "pwd", "cd", "echo", "printf", "test", "[",
}

// DaemonConfig is the system-wide policy (spec.md §4.5, §6).
type DaemonConfig struct {
	MinUID           uint32   `toml:"min_uid"`
	ThresholdSeconds uint64   `toml:"threshold_seconds"`
	IgnorePatterns   []string `toml:"ignore_patterns"`
	Debug            bool     `toml:"debug"`
}

// DefaultDaemonConfig returns the documented defaults (spec.md §6).
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		MinUID:           1000,
		ThresholdSeconds: 10,
		IgnorePatterns:   append([]string(nil), DefaultIgnorePatterns...),
		Debug:            false,
	}
}

// LoadDaemonConfig reads SystemConfigPath, falling back to defaults if the
// file does not exist.
func LoadDaemonConfig() (DaemonConfig, error) {
	return loadDaemonConfigFrom(SystemConfigPath)
}

func loadDaemonConfigFrom(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// UserConfig is a per-user override (spec.md §4.5, §6). ThresholdSeconds is
// a pointer so "unset" is distinguishable from "explicitly zero".
type UserConfig struct {
	ThresholdSeconds *uint64  `toml:"threshold_seconds"`
	IgnorePatterns   []string `toml:"ignore_patterns"`
	AlwaysNotify     []string `toml:"always_notify"`
	Disabled         bool     `toml:"disabled"`
}

// UserConfigPath returns the per-user policy path for uid, resolving the
// user's home directory from /etc/passwd (spec.md §4.6 uses the same
// source for username resolution).
func UserConfigPath(uid uint32) (string, error) {
	home, err := homeDirForUID(uid)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notify-done", "config.toml"), nil
}

// LoadUserConfig loads the per-user policy for uid. A missing file is not an
// error: it means "no override" (spec.md §7, "per-user config parse error:
// debug log; treat user as having no override").
func LoadUserConfig(uid uint32) (*UserConfig, error) {
	path, err := UserConfigPath(uid)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

func homeDirForUID(uid uint32) (string, error) {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return "", fmt.Errorf("config: open /etc/passwd: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 6 {
			continue
		}
		entryUID, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		if uint32(entryUID) == uid {
			return fields[5], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("config: scan /etc/passwd: %w", err)
	}

	return fmt.Sprintf("/home/%d", uid), nil
}
