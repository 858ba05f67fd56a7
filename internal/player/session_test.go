package player

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tr1v3r/mpvctl/internal/config"
	"github.com/tr1v3r/mpvctl/internal/ipc"
	"github.com/tr1v3r/mpvctl/internal/testsupport"
)

func TestMain(m *testing.M) {
	testsupport.MaybeRunFakeMPV()
	os.Exit(m.Run())
}

func startFake(t *testing.T) *Session {
	t.Helper()

	cfg := config.Default()
	cfg.MPVPath = testsupport.FakeMPV(t, testsupport.ModeServe)
	cfg.Args = []string{"--keep-open=yes"}
	cfg.ReadyTimeout = 5 * time.Second

	s := NewSession(cfg)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Start(context.Background(), "movie.mkv"))
	return s
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionQueryPlaybackTime(t *testing.T) {
	s := startFake(t)

	got := make(chan any, 1)
	require.NoError(t, s.QueryPlaybackTime(func(v any) { got <- v }))
	select {
	case v := <-got:
		assert.Equal(t, 42.5, v)
	case <-time.After(5 * time.Second):
		t.Fatal("no playback time")
	}
}

func TestSessionTogglePause(t *testing.T) {
	s := startFake(t)
	ctx := withTimeout(t)

	require.NoError(t, s.TogglePause())
	paused, err := s.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, s.TogglePause())
	paused, err = s.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestSessionSeekAbsolute(t *testing.T) {
	s := startFake(t)
	ctx := withTimeout(t)

	require.NoError(t, s.SeekAbsolute(75.25))
	pos, err := s.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75.25, pos)

	require.NoError(t, s.Seek(ctx, 10))
	pos, err = s.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, pos)
}

func TestSessionStartArgs(t *testing.T) {
	s := startFake(t)

	args, err := s.Property(withTimeout(t), testsupport.PropertyArgs)
	require.NoError(t, err)
	list, ok := args.([]any)
	require.True(t, ok)
	require.Len(t, list, 4)
	assert.Equal(t, []any{"--keep-open=yes", "movie.mkv"}, list[2:])
}

func TestSessionBlockingHelpers(t *testing.T) {
	s := startFake(t)
	ctx := withTimeout(t)

	d, err := s.Duration(ctx)
	require.NoError(t, err)
	assert.Equal(t, testsupport.MediaDuration, d)

	require.NoError(t, s.SetProperty(ctx, PropPause, true))
	paused, err := s.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	_, err = s.Property(ctx, "no-such-property")
	assert.ErrorContains(t, err, "property not found")

	_, err = s.Command(ctx, "frobnicate")
	assert.ErrorContains(t, err, "invalid parameter")
}

func TestSessionCommandContextEnds(t *testing.T) {
	s := startFake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.Property(ctx, testsupport.PropertyStall)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionKillUnblocksCommand(t *testing.T) {
	s := startFake(t)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Property(context.Background(), testsupport.PropertyStall)
		errc <- err
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Kill())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ipc.ErrNotConnected)
	case <-time.After(5 * time.Second):
		t.Fatal("command still blocked after kill")
	}
}

func TestSessionKillDiscardsPendingCallback(t *testing.T) {
	s := startFake(t)

	fired := make(chan any, 1)
	require.NoError(t, s.QueryProperty(testsupport.PropertyStall, func(v any) { fired <- v }))

	require.NoError(t, s.Kill())
	assert.False(t, s.IsAlive())
	select {
	case v := <-fired:
		t.Fatalf("callback fired after kill with %v", v)
	case <-time.After(200 * time.Millisecond):
	}

	assert.ErrorIs(t, s.TogglePause(), ipc.ErrNotConnected)
	assert.ErrorIs(t, s.QueryPlaybackTime(func(any) {}), ipc.ErrNotConnected)
	_, err := s.Position(context.Background())
	assert.ErrorIs(t, err, ipc.ErrNotConnected)

	require.NoError(t, s.Kill())
}

func TestSessionNeverStarted(t *testing.T) {
	s := NewSession(config.Default())

	assert.False(t, s.IsAlive())
	assert.ErrorIs(t, s.SeekAbsolute(1), ipc.ErrNotConnected)
	assert.NoError(t, s.Kill())
	assert.NoError(t, s.Kill())
}

func TestSessionRestart(t *testing.T) {
	s := startFake(t)
	first := s.PID()

	require.NoError(t, s.Start(context.Background(), "other.mkv"))
	assert.NotEqual(t, first, s.PID())

	pos, err := s.Position(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, testsupport.PlaybackTime, pos)
}

// Drives a real mpv when MPVCTL_TEST_MEDIA names a playable file.
func TestSessionIntegration(t *testing.T) {
	media := os.Getenv("MPVCTL_TEST_MEDIA")
	if media == "" {
		t.Skip("MPVCTL_TEST_MEDIA not set, skipping integration test")
	}
	if _, err := os.Stat(media); os.IsNotExist(err) {
		t.Skipf("Test file %s not found, skipping integration test", media)
	}

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Args = append(cfg.Args, "--vo=null", "--ao=null", "--pause")

	s := NewSession(cfg)
	ctx := withTimeout(t)
	if err := s.Start(ctx, media); err != nil {
		t.Skipf("mpv not usable: %v", err)
	}
	defer func() {
		t.Log("Stopping...")
		_ = s.Kill()
	}()

	t.Log("Seeking to 1s...")
	require.NoError(t, s.Seek(ctx, 1))

	pos, err := s.Position(ctx)
	require.NoError(t, err)
	t.Logf("Position %s", FormatTimestamp(pos))

	require.NoError(t, s.TogglePause())
}
