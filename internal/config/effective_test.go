package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uint64p(v uint64) *uint64 { return &v }

func TestShouldNotifyDisabledAlwaysFalse(t *testing.T) {
	daemon := DefaultDaemonConfig()
	user := &UserConfig{Disabled: true}
	eff := NewEffectiveConfig(daemon, user)

	assert.False(t, eff.ShouldNotify("make", 9999))
}

func TestShouldNotifyAlwaysNotifyOverridesIgnore(t *testing.T) {
	daemon := DefaultDaemonConfig()
	daemon.IgnorePatterns = []string{"ls"}
	daemon.ThresholdSeconds = 1

	user := &UserConfig{AlwaysNotify: []string{"ls"}}
	eff := NewEffectiveConfig(daemon, user)

	assert.True(t, eff.ShouldNotify("ls", 2))
	assert.False(t, eff.ShouldNotify("ls", 0))
}

func TestShouldNotifyIgnoreWithoutAlwaysIsFalse(t *testing.T) {
	daemon := DefaultDaemonConfig()
	daemon.ThresholdSeconds = 1
	eff := NewEffectiveConfig(daemon, nil)

	assert.False(t, eff.ShouldNotify("ls", 9999))
}

func TestShouldNotifyThresholdBoundary(t *testing.T) {
	daemon := DefaultDaemonConfig()
	daemon.ThresholdSeconds = 10
	daemon.IgnorePatterns = nil
	eff := NewEffectiveConfig(daemon, nil)

	assert.False(t, eff.ShouldNotify("make", 9))
	assert.True(t, eff.ShouldNotify("make", 10))
}

func TestUserThresholdOverridesDaemon(t *testing.T) {
	daemon := DefaultDaemonConfig()
	daemon.ThresholdSeconds = 10
	daemon.IgnorePatterns = nil

	user := &UserConfig{ThresholdSeconds: uint64p(60)}
	eff := NewEffectiveConfig(daemon, user)

	assert.Equal(t, uint64(60), eff.ThresholdSeconds)
	assert.False(t, eff.ShouldNotify("make", 30))
	assert.True(t, eff.ShouldNotify("make", 60))
}

func TestWildcardPatternSemantics(t *testing.T) {
	daemon := DefaultDaemonConfig()
	daemon.IgnorePatterns = []string{"npm*", "*test"}
	daemon.ThresholdSeconds = 0
	eff := NewEffectiveConfig(daemon, nil)

	assert.True(t, matchesAny(eff.IgnoreSet, "npm"))
	assert.True(t, matchesAny(eff.IgnoreSet, "npm-run"))
	assert.False(t, matchesAny(eff.IgnoreSet, "yarn"))
	assert.True(t, matchesAny(eff.IgnoreSet, "unittest"))
}

func TestMultipleWildcardsDegradeToExactMatch(t *testing.T) {
	assert.False(t, matchesPattern("a*b*c", "axxbyyc"))
	assert.True(t, matchesPattern("a*b*c", "a*b*c"))
}
