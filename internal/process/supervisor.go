// Package process supervises a single mpv child process and the IPC socket it
// listens on.
package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvctl/internal/ipc"
	"github.com/tr1v3r/mpvctl/internal/monitoring"
)

const (
	SockPrefix = "mpvctl-ipc-sock_"

	NoTerminalFlag = "--no-terminal"
	SocketFlag     = "--input-unix-socket="

	DefaultReadyTimeout = 10 * time.Second

	pollInterval   = 250 * time.Millisecond
	dialRetryDelay = 20 * time.Millisecond
	reapTimeout    = 2 * time.Second
)

var (
	ErrSpawn            = errors.New("process: spawn failed")
	ErrSocketNeverReady = errors.New("process: ipc socket never became ready")
)

// Options configures a Supervisor. Zero values select defaults.
type Options struct {
	SocketDir    string
	ReadyTimeout time.Duration
}

type child struct {
	cmd      *exec.Cmd
	exited   chan struct{}
	sockPath string
}

func (c *child) alive() bool {
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// Supervisor owns at most one player process at a time.
type Supervisor struct {
	opts Options

	mu    sync.Mutex
	child *child
	queue *ipc.Queue
}

func NewSupervisor(opts Options) *Supervisor { return &Supervisor{opts: opts} }

// Start stops any process already owned, spawns executable with the IPC socket
// flags followed by args and waits for the socket before connecting to it.
func (s *Supervisor) Start(ctx context.Context, executable string, args ...string) error {
	if err := s.Kill(); err != nil {
		log.CtxError(ctx, "stopping previous player fail: %v", err)
	}

	metrics := monitoring.GetMetrics()
	sockPath := filepath.Join(s.socketDir(), SockPrefix+uuid.NewString())
	argv := append([]string{NoTerminalFlag, SocketFlag + sockPath}, args...)

	cmd := exec.Command(executable, argv...)
	if err := cmd.Start(); err != nil {
		metrics.RecordSpawnFailure()
		return fmt.Errorf("%w: %s: %w", ErrSpawn, executable, err)
	}
	log.CtxDebug(ctx, "player started: pid=%d args=%v", cmd.Process.Pid, argv)

	c := &child{cmd: cmd, exited: make(chan struct{}), sockPath: sockPath}
	go func() {
		err := cmd.Wait()
		log.Debug("player exited: pid=%d err=%v", cmd.Process.Pid, err)
		close(c.exited)
	}()

	// a concurrent Start may have installed its child since Kill above
	s.mu.Lock()
	prev, prevQueue := s.child, s.queue
	s.child, s.queue = c, nil
	s.mu.Unlock()
	if err := teardown(prev, prevQueue); err != nil {
		log.CtxError(ctx, "stopping previous player fail: %v", err)
	}

	conn, err := s.connect(ctx, c)
	if err != nil {
		metrics.RecordSocketTimeout()
		if relErr := s.release(c); relErr != nil {
			log.CtxError(ctx, "cleaning up failed player fail: %v", relErr)
		}
		return err
	}

	s.mu.Lock()
	if s.child != c {
		s.mu.Unlock()
		_ = conn.Close()
		if err := teardown(c, nil); err != nil {
			log.CtxError(ctx, "cleaning up replaced player fail: %v", err)
		}
		return fmt.Errorf("%w: player killed during startup", ErrSocketNeverReady)
	}
	s.queue = ipc.New(conn)
	s.mu.Unlock()

	metrics.RecordSession()
	log.CtxInfo(ctx, "player ready: pid=%d socket=%s", cmd.Process.Pid, sockPath)
	return nil
}

// IsAlive reports whether a player process is owned and still running.
func (s *Supervisor) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child != nil && s.child.alive()
}

// Queue returns the transaction queue of the current session, or nil.
func (s *Supervisor) Queue() *ipc.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

// SocketPath returns the socket path of the current process, or "".
func (s *Supervisor) SocketPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return ""
	}
	return s.child.sockPath
}

// PID returns the pid of the current process, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return 0
	}
	return s.child.cmd.Process.Pid
}

// Exited returns a channel closed when the current process exits. Without a
// process the channel is already closed.
func (s *Supervisor) Exited() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.child.exited
}

// Kill closes the channel, discarding pending requests, terminates the process
// and removes its socket. It is safe to call in any state.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	c, q := s.child, s.queue
	s.child, s.queue = nil, nil
	s.mu.Unlock()

	return teardown(c, q)
}

// release tears down c only if it is still the current process.
func (s *Supervisor) release(c *child) error {
	s.mu.Lock()
	if s.child != c {
		s.mu.Unlock()
		return nil
	}
	q := s.queue
	s.child, s.queue = nil, nil
	s.mu.Unlock()

	return teardown(c, q)
}

func teardown(c *child, q *ipc.Queue) error {
	var errs []error
	if q != nil {
		if err := q.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c == nil {
		return errors.Join(errs...)
	}

	if c.alive() {
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("killing process: %w", err))
		}
	}
	select {
	case <-c.exited:
	case <-time.After(reapTimeout):
		log.Error("player pid=%d not reaped after %s", c.cmd.Process.Pid, reapTimeout)
	}

	if err := os.Remove(c.sockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("removing socket file: %w", err))
	}
	return errors.Join(errs...)
}

// connect waits for the socket to appear and dials it. The wait ends early
// when the process exits, ctx is done or the ready timeout elapses.
func (s *Supervisor) connect(ctx context.Context, c *child) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout())
	defer cancel()

	if err := waitForSocket(ctx, c); err != nil {
		return nil, err
	}

	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "unix", c.sockPath)
		if err == nil {
			return conn, nil
		}
		// the socket file exists slightly before the player accepts on it
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: dial %s: %w", ErrSocketNeverReady, c.sockPath, err)
		case <-c.exited:
			return nil, fmt.Errorf("%w: player exited before accepting on %s", ErrSocketNeverReady, c.sockPath)
		case <-time.After(dialRetryDelay):
		}
	}
}

func waitForSocket(ctx context.Context, c *child) error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w, err := fsnotify.NewWatcher(); err != nil {
		log.CtxDebug(ctx, "fsnotify unavailable, polling for socket: %v", err)
	} else {
		defer w.Close()
		if err := w.Add(filepath.Dir(c.sockPath)); err != nil {
			log.CtxDebug(ctx, "watching %s fail, polling for socket: %v", filepath.Dir(c.sockPath), err)
		} else {
			events, errs = w.Events, w.Errors
		}
	}

	// fsnotify does the work; the ticker covers filesystems that report nothing
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if socketExists(c.sockPath) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s: %w", ErrSocketNeverReady, c.sockPath, ctx.Err())
		case <-c.exited:
			return fmt.Errorf("%w: player exited before creating %s", ErrSocketNeverReady, c.sockPath)
		case ev, ok := <-events:
			if !ok {
				events = nil
			} else if ev.Name == c.sockPath {
				log.CtxDebug(ctx, "socket event: %s", ev)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
			} else {
				log.CtxDebug(ctx, "fsnotify error: %v", err)
			}
		case <-ticker.C:
		}
	}
}

func socketExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Supervisor) socketDir() string {
	if s.opts.SocketDir != "" {
		return s.opts.SocketDir
	}
	return os.TempDir()
}

func (s *Supervisor) readyTimeout() time.Duration {
	if s.opts.ReadyTimeout > 0 {
		return s.opts.ReadyTimeout
	}
	return DefaultReadyTimeout
}
