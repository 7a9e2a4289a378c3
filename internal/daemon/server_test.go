package daemon

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacquesDurand/notify-done/internal/registry"
)

func newTestServer() *Server {
	return NewServer(nil, registry.New("", 10))
}

func dispatchOver(t *testing.T, s *Server, req Request) Response {
	t.Helper()
	return s.dispatch(req)
}

func TestDispatchPingReturnsPong(t *testing.T) {
	s := newTestServer()
	resp := dispatchOver(t, s, Request{Type: RequestPing})
	assert.Equal(t, ResponsePong, resp.Type)
}

func TestDispatchRegisterThenListTasks(t *testing.T) {
	s := newTestServer()
	dispatchOver(t, s, Request{Type: RequestRegisterTask, ID: "1", Command: "make", PID: 42})

	resp := dispatchOver(t, s, Request{Type: RequestListTasks})

	require.Equal(t, ResponseTasks, resp.Type)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "make", resp.Tasks[0].Command)
}

func TestDispatchCompleteTaskMovesToHistory(t *testing.T) {
	s := newTestServer()
	dispatchOver(t, s, Request{Type: RequestRegisterTask, ID: "1", Command: "make", PID: 42})

	resp := dispatchOver(t, s, Request{Type: RequestCompleteTask, ID: "1", ExitCode: 0, DurationSecs: 5})
	assert.Equal(t, ResponseOk, resp.Type)

	history := dispatchOver(t, s, Request{Type: RequestGetHistory, Count: 10})
	require.Equal(t, ResponseHistory, history.Type)
	require.Len(t, history.History, 1)
	assert.Equal(t, int32(0), history.History[0].ExitCode)
}

func TestDispatchUnknownTypeReturnsError(t *testing.T) {
	s := newTestServer()
	resp := dispatchOver(t, s, Request{Type: "bogus"})
	assert.Equal(t, ResponseError, resp.Type)
	assert.Contains(t, resp.Error, "bogus")
}

func TestHandleClientOverNetPipe(t *testing.T) {
	s := newTestServer()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		s.handleClient(serverConn)
		close(done)
	}()

	writer := bufio.NewWriter(clientConn)
	reader := bufio.NewReader(clientConn)

	require.NoError(t, writeJSONLine(writer, Request{Type: RequestPing}))

	var resp Response
	require.NoError(t, readJSONLine(reader, &resp))
	assert.Equal(t, ResponsePong, resp.Type)

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleClient did not exit after connection close")
	}
}
