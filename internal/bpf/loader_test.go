package bpf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatePathsIncludesKnownSystemLocations(t *testing.T) {
	paths := CandidatePaths()

	assert.Contains(t, paths, filepath.Join("/usr/lib/notify-done", ObjectFileName))
	assert.Contains(t, paths, filepath.Join("/usr/local/lib/notify-done", ObjectFileName))
}

func TestFindObjectFileReturnsFirstExisting(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.o")
	present := filepath.Join(dir, "present.o")
	require.NoError(t, os.WriteFile(present, []byte("stub"), 0o644))

	path, err := findObjectFile([]string{missing, present})

	require.NoError(t, err)
	assert.Equal(t, present, path)
}

func TestFindObjectFileErrorsWhenNoneExist(t *testing.T) {
	dir := t.TempDir()
	_, err := findObjectFile([]string{filepath.Join(dir, "a.o"), filepath.Join(dir, "b.o")})
	assert.Error(t, err)
}
