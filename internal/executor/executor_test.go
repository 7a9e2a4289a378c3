package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccessfulCommand(t *testing.T) {
	result, err := Run(context.Background(), []string{"true"})

	require.NoError(t, err)
	assert.Equal(t, int32(0), result.ExitCode)
	assert.True(t, result.Success)
	assert.Equal(t, "true", result.Command)
}

func TestRunFailingCommandReportsExitCode(t *testing.T) {
	result, err := Run(context.Background(), []string{"false"})

	require.NoError(t, err)
	assert.Equal(t, int32(1), result.ExitCode)
	assert.False(t, result.Success)
}

func TestRunMeasuresDuration(t *testing.T) {
	result, err := Run(context.Background(), []string{"sleep", "0.05"})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Duration, 40*time.Millisecond)
}

func TestRunNoCommandIsError(t *testing.T) {
	_, err := Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunUnknownBinaryIsError(t *testing.T) {
	_, err := Run(context.Background(), []string{"this-binary-does-not-exist-nd"})
	assert.Error(t, err)
}
