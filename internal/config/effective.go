package config

import "strings"

// EffectiveConfig is the per-uid merge of DaemonConfig and UserConfig
// (spec.md §3, §4.5). The Event Processor caches the per-uid UserConfig
// (flushed on the hourly cleanup tick) and builds an EffectiveConfig from it
// for each decision.
type EffectiveConfig struct {
	ThresholdSeconds uint64
	IgnoreSet        map[string]struct{}
	AlwaysNotifySet  map[string]struct{}
	Disabled         bool
}

// NewEffectiveConfig merges daemon policy with an optional user override.
func NewEffectiveConfig(daemon DaemonConfig, user *UserConfig) EffectiveConfig {
	eff := EffectiveConfig{
		ThresholdSeconds: daemon.ThresholdSeconds,
		IgnoreSet:        toSet(daemon.IgnorePatterns),
		AlwaysNotifySet:  make(map[string]struct{}),
	}

	if user == nil {
		return eff
	}

	if user.ThresholdSeconds != nil {
		eff.ThresholdSeconds = *user.ThresholdSeconds
	}
	for _, p := range user.IgnorePatterns {
		eff.IgnoreSet[p] = struct{}{}
	}
	eff.AlwaysNotifySet = toSet(user.AlwaysNotify)
	eff.Disabled = user.Disabled

	return eff
}

// ShouldNotify implements the decision function of spec.md §4.5:
//
//  1. disabled -> false
//  2. command in always-notify -> duration >= threshold
//  3. command in ignore -> false
//  4. otherwise -> duration >= threshold
func (e EffectiveConfig) ShouldNotify(commandName string, durationSeconds uint64) bool {
	if e.Disabled {
		return false
	}
	if matchesAny(e.AlwaysNotifySet, commandName) {
		return durationSeconds >= e.ThresholdSeconds
	}
	if matchesAny(e.IgnoreSet, commandName) {
		return false
	}
	return durationSeconds >= e.ThresholdSeconds
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// matchesAny reports whether name matches any pattern in patterns, using
// exact equality except where a pattern contains exactly one '*', which
// supports prefix-AND-suffix matching (spec.md §4.5: "npm*" matches "npm",
// "npm-run"; multiple wildcards degrade to exact equality).
func matchesAny(patterns map[string]struct{}, name string) bool {
	if _, ok := patterns[name]; ok {
		return true
	}
	for pattern := range patterns {
		if matchesPattern(pattern, name) {
			return true
		}
	}
	return false
}

func matchesPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if strings.Count(pattern, "*") != 1 {
		return false
	}

	parts := strings.SplitN(pattern, "*", 2)
	prefix, suffix := parts[0], parts[1]
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
}
