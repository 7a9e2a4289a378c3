package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenListTasks(t *testing.T) {
	r := New("", 10)
	r.Register(TaskInfo{ID: "1", Command: "make build", PID: 100, StartedAt: time.Now()})

	tasks := r.ListTasks()

	require.Len(t, tasks, 1)
	assert.Equal(t, "make build", tasks[0].Command)
}

func TestCompleteMovesTaskToHistory(t *testing.T) {
	r := New("", 10)
	r.Register(TaskInfo{ID: "1", Command: "make build", PID: 100, StartedAt: time.Now()})

	task, ok := r.Complete("1", 0, 5*time.Second)

	require.True(t, ok)
	assert.Equal(t, "make build", task.Command)
	assert.Empty(t, r.ListTasks())

	history := r.GetHistory(10)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestCompleteUnknownIDReturnsFalse(t *testing.T) {
	r := New("", 10)
	_, ok := r.Complete("nope", 1, time.Second)
	assert.False(t, ok)
}

func TestGetHistoryIsMostRecentFirstAndBounded(t *testing.T) {
	r := New("", 2)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		r.Register(TaskInfo{ID: id, Command: id, StartedAt: time.Now()})
		r.Complete(id, 0, time.Second)
	}

	history := r.GetHistory(10)

	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].Command)
	assert.Equal(t, "b", history[1].Command)
}

func TestHistoryPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	r1 := New(path, 10)
	r1.Register(TaskInfo{ID: "1", Command: "sleep 10", StartedAt: time.Now()})
	r1.Complete("1", 0, time.Second)

	r2 := New(path, 10)
	history := r2.GetHistory(10)

	require.Len(t, history, 1)
	assert.Equal(t, "sleep 10", history[0].Command)
}

func TestRemoveDropsWithoutHistory(t *testing.T) {
	r := New("", 10)
	r.Register(TaskInfo{ID: "1", Command: "x", StartedAt: time.Now()})

	task, ok := r.Remove("1")

	require.True(t, ok)
	assert.Equal(t, "x", task.Command)
	assert.Empty(t, r.GetHistory(10))
}
