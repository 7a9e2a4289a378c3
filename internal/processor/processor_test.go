package processor

import (
	"context"
	"testing"

	"github.com/cilium/ebpf/ringbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacquesDurand/notify-done/internal/bpfrecord"
	"github.com/JacquesDurand/notify-done/internal/config"
)

func newTestProcessor() *Processor {
	return New(nil, config.DefaultDaemonConfig())
}

func TestHandleRecordExecThenExitTracksCompletion(t *testing.T) {
	p := newTestProcessor()

	exec := bpfrecord.EncodeExec(bpfrecord.ExecRecord{Tgid: 1, Uid: 1000, Comm: "vim", TimestampNs: 0})
	p.handleRecord(exec)
	require.Equal(t, 1, p.tracker.ActiveCount())

	exit := bpfrecord.EncodeExit(bpfrecord.ExitRecord{Tgid: 1, Uid: 1000, Comm: "vim", TimestampNs: 1_000_000_000})
	p.handleRecord(exit)

	assert.Equal(t, 0, p.tracker.ActiveCount())
	history := p.tracker.History()
	require.Len(t, history, 1)
	assert.Equal(t, "vim", history[0].Comm)
}

func TestHandleRecordEmptyIsIgnored(t *testing.T) {
	p := newTestProcessor()
	assert.NotPanics(t, func() { p.handleRecord(nil) })
}

func TestHandleRecordUnknownTagLogsAndContinues(t *testing.T) {
	p := newTestProcessor()
	assert.NotPanics(t, func() { p.handleRecord([]byte{99, 0, 0, 0}) })
}

func TestHandleRecordMalformedExecIsDropped(t *testing.T) {
	p := newTestProcessor()
	assert.NotPanics(t, func() { p.handleRecord([]byte{bpfrecord.TagExec, 0, 0}) })
	assert.Equal(t, 0, p.tracker.ActiveCount())
}

func TestCleanupClearsCaches(t *testing.T) {
	p := newTestProcessor()
	p.userCfgs[1000] = nil
	p.loadedCfg[1000] = true
	p.sessions.ClearCache()

	p.cleanup()

	assert.Empty(t, p.userCfgs)
	assert.Empty(t, p.loadedCfg)
}

type fakeReader struct {
	records [][]byte
	idx     int
}

func (f *fakeReader) Read() (ringbuf.Record, error) {
	if f.idx >= len(f.records) {
		return ringbuf.Record{}, ringbuf.ErrClosed
	}
	r := f.records[f.idx]
	f.idx++
	return ringbuf.Record{RawSample: r}, nil
}

func (f *fakeReader) Close() error { return nil }

func TestDrainLoopConsumesAllRecordsUntilClosed(t *testing.T) {
	p := newTestProcessor()
	a := bpfrecord.EncodeExec(bpfrecord.ExecRecord{Tgid: 7, Uid: 1000, Comm: "make"})
	b := bpfrecord.EncodeExec(bpfrecord.ExecRecord{Tgid: 8, Uid: 1000, Comm: "cargo"})
	reader := &fakeReader{records: [][]byte{a, b}}

	err := p.drainLoop(context.Background(), reader)

	require.NoError(t, err)
	assert.Equal(t, 2, p.tracker.ActiveCount())
	assert.Equal(t, len(reader.records), reader.idx)
}
