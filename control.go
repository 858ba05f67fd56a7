package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvctl/internal/monitoring"
	"github.com/tr1v3r/mpvctl/internal/player"
)

// control reads one command per line from in until quit, EOF, ctx ending or
// the player exiting.
func control(ctx context.Context, p *player.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	w := &syncWriter{w: out}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.Exited():
			log.Info("mpv exited")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(p, line, w); quit {
				return nil
			}
		}
	}
}

func handleLine(p *player.Session, line string, out io.Writer) (quit bool) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	var err error
	switch verb {
	case "":
	case "p", "pause":
		err = p.TogglePause()
	case "t", "time":
		err = p.QueryPlaybackTime(func(v any) {
			if pos, ok := v.(float64); ok {
				fmt.Fprintln(out, player.FormatTimestamp(pos))
				return
			}
			fmt.Fprintf(out, "no playback time (%v)\n", v)
		})
	case "s", "seek":
		var pos float64
		if pos, err = player.ParseTimestamp(arg); err == nil {
			err = p.SeekAbsolute(pos)
		}
	case "m", "metrics":
		monitoring.GetMetrics().LogMetrics()
	case "q", "quit":
		return true
	default:
		err = fmt.Errorf("unknown command %q", verb)
	}
	if err != nil {
		log.Error("%s: %v", verb, err)
	}
	return false
}

// syncWriter serialises writes from callbacks, which run on the IPC reader.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
