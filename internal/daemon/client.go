package daemon

import (
	"bufio"
	"fmt"
	"net"
	"time"
)

// Client is a connection to a running daemon's control socket.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// Connect dials the default socket path (spec.md §6).
func Connect() (*Client, error) {
	conn, err := net.Dial("unix", SocketPath())
	if err != nil {
		return nil, fmt.Errorf("daemon: connect: %w", err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) request(req Request) (Response, error) {
	if err := writeJSONLine(c.writer, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readJSONLine(c.reader, &resp); err != nil {
		return Response{}, fmt.Errorf("daemon: read response: %w", err)
	}
	return resp, nil
}

// RegisterTask registers a foreground-wrapped task as running.
func (c *Client) RegisterTask(id, command, name string, pid uint32) error {
	resp, err := c.request(Request{Type: RequestRegisterTask, ID: id, Command: command, Name: name, PID: pid})
	if err != nil {
		return err
	}
	return expectOk(resp)
}

// CompleteTask marks a task as finished.
func (c *Client) CompleteTask(id string, exitCode int32, duration time.Duration) error {
	resp, err := c.request(Request{Type: RequestCompleteTask, ID: id, ExitCode: exitCode, DurationSecs: uint64(duration.Seconds())})
	if err != nil {
		return err
	}
	return expectOk(resp)
}

// ListTasks returns currently-running tasks.
func (c *Client) ListTasks() ([]TaskInfo, error) {
	resp, err := c.request(Request{Type: RequestListTasks})
	if err != nil {
		return nil, err
	}
	if resp.Type != ResponseTasks {
		return nil, unexpected(resp)
	}
	return resp.Tasks, nil
}

// GetHistory returns up to count most-recent history entries.
func (c *Client) GetHistory(count int) ([]HistoryEntry, error) {
	resp, err := c.request(Request{Type: RequestGetHistory, Count: count})
	if err != nil {
		return nil, err
	}
	if resp.Type != ResponseHistory {
		return nil, unexpected(resp)
	}
	return resp.History, nil
}

// Ping checks whether the daemon responds.
func (c *Client) Ping() (bool, error) {
	resp, err := c.request(Request{Type: RequestPing})
	if err != nil {
		return false, err
	}
	return resp.Type == ResponsePong, nil
}

// Shutdown requests a graceful daemon shutdown.
func (c *Client) Shutdown() error {
	resp, err := c.request(Request{Type: RequestShutdown})
	if err != nil {
		return err
	}
	return expectOk(resp)
}

func expectOk(resp Response) error {
	switch resp.Type {
	case ResponseOk:
		return nil
	case ResponseError:
		return fmt.Errorf("daemon: %s", resp.Error)
	default:
		return unexpected(resp)
	}
}

func unexpected(resp Response) error {
	if resp.Type == ResponseError {
		return fmt.Errorf("daemon: %s", resp.Error)
	}
	return fmt.Errorf("daemon: unexpected response type %q", resp.Type)
}
