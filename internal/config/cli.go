package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// CLIConfig is the non-privileged, per-user configuration loaded by cmd/nd
// for its own foreground wrapper mode — distinct from DaemonConfig/UserConfig,
// which govern the kernel-assisted daemon's notification policy.
type CLIConfig struct {
	General      GeneralConfig      `toml:"general"`
	Notification NotificationConfig `toml:"notification"`
	Format       FormatConfig       `toml:"format"`
}

type GeneralConfig struct {
	ThresholdSeconds uint64 `toml:"threshold_seconds"`
	AlwaysNotify     bool   `toml:"always_notify"`
}

type NotificationConfig struct {
	TimeoutMs      uint32 `toml:"timeout_ms"`
	Urgency        string `toml:"urgency"`
	Icon           string `toml:"icon"`
	IconFailure    string `toml:"icon_failure"`
	UrgencyFailure string `toml:"urgency_failure"`
}

type FormatConfig struct {
	TitleSuccess string `toml:"title_success"`
	TitleFailure string `toml:"title_failure"`
	Body         string `toml:"body"`
}

// DefaultCLIConfig mirrors the Rust CLI's Default impls field for field.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		General: GeneralConfig{ThresholdSeconds: 10, AlwaysNotify: false},
		Notification: NotificationConfig{
			TimeoutMs: 5000, Urgency: "normal",
			Icon: "dialog-information", IconFailure: "dialog-error",
			UrgencyFailure: "critical",
		},
		Format: FormatConfig{
			TitleSuccess: "Task Completed",
			TitleFailure: "Task Failed",
			Body:         "Command: {command}\nDuration: {duration}\nExit code: {exit_code}",
		},
	}
}

// CLIConfigDir returns $XDG_CONFIG_HOME/notify-done, falling back to
// ~/.config/notify-done.
func CLIConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "notify-done"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notify-done"), nil
}

// CLIConfigPath returns CLIConfigDir()/config.toml.
func CLIConfigPath() (string, error) {
	dir, err := CLIConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadCLIConfig loads the CLI's own config file, falling back to defaults
// if the file or its directory cannot be resolved or does not exist.
func LoadCLIConfig() (CLIConfig, error) {
	path, err := CLIConfigPath()
	if err != nil {
		return DefaultCLIConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return DefaultCLIConfig(), nil
	}
	var cfg CLIConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

// InitCLIConfig writes the default config to CLIConfigPath(), creating the
// directory if needed, and returns the path written.
func InitCLIConfig() (string, error) {
	dir, err := CLIConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "config.toml")

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(DefaultCLIConfig()); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// RenderBody substitutes {command}, {duration}, {exit_code}, {name} in a
// format template (spec.md "surrounding material", format.body).
func RenderBody(template, command, duration string, exitCode int32, name string) string {
	r := strings.NewReplacer(
		"{command}", command,
		"{duration}", duration,
		"{exit_code}", strconv.Itoa(int(exitCode)),
		"{name}", name,
	)
	return r.Replace(template)
}
