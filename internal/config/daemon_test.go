package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDaemonConfigFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadDaemonConfigFrom(filepath.Join(t.TempDir(), "missing.toml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestLoadDaemonConfigFromParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "min_uid = 2000\nthreshold_seconds = 30\nignore_patterns = [\"vim\"]\ndebug = true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := loadDaemonConfigFrom(path)

	require.NoError(t, err)
	assert.Equal(t, uint32(2000), cfg.MinUID)
	assert.Equal(t, uint64(30), cfg.ThresholdSeconds)
	assert.Equal(t, []string{"vim"}, cfg.IgnorePatterns)
	assert.True(t, cfg.Debug)
}

func TestLoadDaemonConfigFromRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid = [toml"), 0o644))

	_, err := loadDaemonConfigFrom(path)

	assert.Error(t, err)
}

func TestHomeDirForUIDRoot(t *testing.T) {
	home, err := homeDirForUID(0)
	require.NoError(t, err)
	assert.Equal(t, "/root", home)
}

func TestHomeDirForUIDUnknownFallsBackToHomeUID(t *testing.T) {
	home, err := homeDirForUID(999999)
	require.NoError(t, err)
	assert.Equal(t, "/home/999999", home)
}

func TestLoadUserConfigMissingReturnsNilWithoutError(t *testing.T) {
	// uid 999999 has no passwd entry, so homeDirForUID falls back to
	// /home/999999, which has no notify-done config file either.
	cfg, err := LoadUserConfig(999999)

	require.NoError(t, err)
	assert.Nil(t, cfg)
}
