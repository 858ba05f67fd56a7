package player

import (
	"context"
	"sync"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvctl/internal/config"
	"github.com/tr1v3r/mpvctl/internal/ipc"
)

var (
	defaultSession *Session
	defaultOnce    sync.Once
)

// Default returns the process wide session, configured from the environment
// on first use.
func Default() *Session {
	defaultOnce.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			log.Error("loading config fail, using defaults: %v", err)
			cfg = config.Default()
		}
		defaultSession = NewSession(cfg)
	})
	return defaultSession
}

func Start(ctx context.Context, args ...string) error { return Default().Start(ctx, args...) }

func Kill() error { return Default().Kill() }

func TogglePause() error { return Default().TogglePause() }

func QueryPlaybackTime(cb ipc.Callback) error { return Default().QueryPlaybackTime(cb) }

func SeekAbsolute(seconds float64) error { return Default().SeekAbsolute(seconds) }
