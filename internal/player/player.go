package player

import (
	"context"

	"github.com/tr1v3r/mpvctl/internal/ipc"
)

// Player is the capability set consumed by editor integrations: lifecycle,
// pause toggling, position queries and absolute seeks.
type Player interface {
	Start(ctx context.Context, args ...string) error
	Kill() error
	IsAlive() bool
	TogglePause() error
	QueryPlaybackTime(cb ipc.Callback) error
	SeekAbsolute(seconds float64) error
}

var _ Player = (*Session)(nil)
