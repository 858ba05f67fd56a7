package player

import (
	"context"
	"fmt"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvctl/internal/config"
	"github.com/tr1v3r/mpvctl/internal/ipc"
	"github.com/tr1v3r/mpvctl/internal/process"
	"github.com/tr1v3r/mpvctl/internal/wire"
)

// https://mpv.io/manual/stable/#properties
const (
	PropPlaybackTime = "playback-time"
	PropDuration     = "duration"
	PropPause        = "pause"
)

// Session controls one mpv process. Starting a session that is already
// running replaces the previous process.
type Session struct {
	cfg config.Config
	sup *process.Supervisor
}

func NewSession(cfg config.Config) *Session {
	return &Session{
		cfg: cfg,
		sup: process.NewSupervisor(process.Options{
			SocketDir:    cfg.SocketDir,
			ReadyTimeout: cfg.ReadyTimeout,
		}),
	}
}

// Start launches the configured player with the configured arguments followed
// by args, typically the media path.
func (s *Session) Start(ctx context.Context, args ...string) error {
	argv := append(append([]string(nil), s.cfg.Args...), args...)
	log.CtxDebug(ctx, "Session Start: mpv=%s args=%v", s.cfg.MPVPath, argv)
	if err := s.sup.Start(ctx, s.cfg.MPVPath, argv...); err != nil {
		return fmt.Errorf("starting mpv fail: %w", err)
	}
	return nil
}

func (s *Session) Kill() error { return s.sup.Kill() }

// Close kills the player. The session may be started again afterwards.
func (s *Session) Close() error { return s.Kill() }

func (s *Session) IsAlive() bool { return s.sup.IsAlive() }

// Exited is closed when the current player process exits.
func (s *Session) Exited() <-chan struct{} { return s.sup.Exited() }

func (s *Session) PID() int { return s.sup.PID() }

// Enqueue sends an arbitrary command. See ipc.Queue.Enqueue.
func (s *Session) Enqueue(command []any, cb ipc.Callback, delayed bool) error {
	q := s.sup.Queue()
	if q == nil {
		return ipc.ErrNotConnected
	}
	return q.Enqueue(command, cb, delayed)
}

// QueryProperty asks for a property value; cb receives the raw decoded value.
func (s *Session) QueryProperty(name string, cb ipc.Callback) error {
	return s.Enqueue([]any{"get_property", name}, cb, false)
}

// QueryPlaybackTime asks for the current position in seconds.
func (s *Session) QueryPlaybackTime(cb ipc.Callback) error {
	return s.QueryProperty(PropPlaybackTime, cb)
}

func (s *Session) TogglePause() error {
	return s.Enqueue([]any{"cycle", PropPause}, ignore, false)
}

func (s *Session) SeekAbsolute(seconds float64) error {
	return s.Enqueue([]any{"seek", seconds, "absolute"}, ignore, false)
}

func ignore(any) {}

// Command sends command and waits for its response. A response with an error
// indicator other than "success" is returned as an error.
//
// There is no per-request timeout: when ctx ends first the request stays
// queued until the player answers it or the session is killed.
func (s *Session) Command(ctx context.Context, command ...any) (any, error) {
	q := s.sup.Queue()
	if q == nil {
		return nil, ipc.ErrNotConnected
	}

	ch := make(chan wire.Response, 1)
	if err := q.EnqueueResponse(command, func(resp wire.Response) { ch <- resp }, false); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if !resp.Success() {
			return nil, fmt.Errorf("mpv command %v fail: %s", command, resp.Error)
		}
		return resp.Data, nil
	case <-q.Done():
		return nil, ipc.ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) Property(ctx context.Context, name string) (any, error) {
	return s.Command(ctx, "get_property", name)
}

func (s *Session) SetProperty(ctx context.Context, name string, value any) error {
	_, err := s.Command(ctx, "set_property", name, value)
	return err
}

func (s *Session) Position(ctx context.Context) (float64, error) {
	return s.floatProperty(ctx, PropPlaybackTime)
}

func (s *Session) Duration(ctx context.Context) (float64, error) {
	return s.floatProperty(ctx, PropDuration)
}

func (s *Session) Paused(ctx context.Context) (bool, error) {
	val, err := s.Property(ctx, PropPause)
	if err != nil {
		return false, err
	}
	if v, ok := val.(bool); ok {
		return v, nil
	}
	return false, fmt.Errorf("unexpected type for %s: %T", PropPause, val)
}

func (s *Session) Seek(ctx context.Context, seconds float64) error {
	_, err := s.Command(ctx, "seek", seconds, "absolute")
	return err
}

func (s *Session) floatProperty(ctx context.Context, name string) (float64, error) {
	val, err := s.Property(ctx, name)
	if err != nil {
		return 0, err
	}
	if v, ok := val.(float64); ok {
		return v, nil
	}
	return 0, fmt.Errorf("unexpected type for %s: %T", name, val)
}
