package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/JacquesDurand/notify-done/internal/registry"
)

func secondsToDuration(s uint64) time.Duration {
	return time.Duration(s) * time.Second
}

// Server accepts client connections on a Unix socket and dispatches
// newline-delimited JSON requests against a Registry (spec.md §6).
type Server struct {
	log        *logrus.Logger
	socketPath string
	lockPath   string
	lock       *flock.Flock
	reg        *registry.Registry

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewServer returns a Server bound to the given registry. Call Run to start
// accepting connections.
func NewServer(log *logrus.Logger, reg *registry.Registry) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		log:        log,
		socketPath: SocketPath(),
		lockPath:   LockPath(),
		reg:        reg,
		shutdown:   make(chan struct{}),
	}
}

// Run acquires the single-instance lock, binds the socket, and serves
// clients until ctx is cancelled or a client sends Shutdown. It returns
// ErrAlreadyRunning if another instance holds the lock.
func (s *Server) Run(ctx context.Context) error {
	s.lock = flock.New(s.lockPath)
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("daemon: acquire lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer s.lock.Unlock()

	_ = os.Remove(s.socketPath)
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("daemon: bind socket %s: %w", s.socketPath, err)
	}
	defer os.Remove(s.socketPath)
	defer listener.Close()

	s.log.WithField("socket", s.socketPath).Info("daemon listening")

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdown:
		}
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			s.log.WithError(err).Warn("accept error")
			continue
		}
		go s.handleClient(conn)
	}
}

// ErrAlreadyRunning is returned by Run when another daemon instance already
// holds the single-instance lock.
var ErrAlreadyRunning = errors.New("daemon: another instance is already running")

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		var req Request
		if err := readJSONLine(reader, &req); err != nil {
			if err != io.EOF {
				s.log.WithError(err).Debug("client read error")
			}
			return
		}

		resp := s.dispatch(req)
		if err := writeJSONLine(writer, resp); err != nil {
			s.log.WithError(err).Debug("client write error")
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Type {
	case RequestRegisterTask:
		s.reg.Register(registry.TaskInfo{
			ID:        req.ID,
			Command:   req.Command,
			Name:      req.Name,
			PID:       req.PID,
			StartedAt: time.Now(),
		})
		return Response{Type: ResponseOk}

	case RequestCompleteTask:
		s.reg.Complete(req.ID, req.ExitCode, secondsToDuration(req.DurationSecs))
		return Response{Type: ResponseOk}

	case RequestListTasks:
		tasks := s.reg.ListTasks()
		out := make([]TaskInfo, len(tasks))
		for i, t := range tasks {
			out[i] = TaskInfo{ID: t.ID, Command: t.Command, Name: t.Name, PID: t.PID, StartedAt: t.StartedAt}
		}
		return Response{Type: ResponseTasks, Tasks: out}

	case RequestGetHistory:
		entries := s.reg.GetHistory(req.Count)
		out := make([]HistoryEntry, len(entries))
		for i, e := range entries {
			out[i] = HistoryEntry{
				Command: e.Command, Name: e.Name, ExitCode: e.ExitCode,
				Duration: e.Duration, CompletedAt: e.CompletedAt, Success: e.Success,
			}
		}
		return Response{Type: ResponseHistory, History: out}

	case RequestPing:
		return Response{Type: ResponsePong}

	case RequestShutdown:
		s.shutdownOnce.Do(func() { close(s.shutdown) })
		return Response{Type: ResponseOk}

	default:
		return Response{Type: ResponseError, Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
}

// IsRunning reports whether a daemon is reachable at the default socket
// path (spec.md §6).
func IsRunning() bool {
	conn, err := net.Dial("unix", SocketPath())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
