// Package testsupport provides a fake mpv player for tests. The fake is the
// test binary itself, re-executed with EnvFakeMPV set; packages that spawn it
// call MaybeRunFakeMPV from TestMain.
package testsupport

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

const EnvFakeMPV = "MPVCTL_FAKE_MPV"

// Fake player behaviours.
const (
	// ModeServe listens on the socket after a short delay and answers commands.
	ModeServe = "serve"
	// ModeExit exits without ever creating the socket.
	ModeExit = "exit"
	// ModeHang stays alive without ever creating the socket.
	ModeHang = "hang"
)

// Properties with fixed answers in ModeServe.
const (
	PlaybackTime  = 42.5
	MediaDuration = 120.0

	// PropertyArgs answers with the fake's command line arguments.
	PropertyArgs = "test-args"
	// PropertyStall is never answered.
	PropertyStall = "test-stall"
)

const serveDelay = 100 * time.Millisecond

// FakeMPV arranges for the test binary to act as a player in mode and returns
// the executable path to spawn.
func FakeMPV(t testing.TB, mode string) string {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test executable: %v", err)
	}
	t.Setenv(EnvFakeMPV, mode)
	return exe
}

// MaybeRunFakeMPV turns the process into the fake player when EnvFakeMPV is
// set, and never returns in that case.
func MaybeRunFakeMPV() {
	mode := os.Getenv(EnvFakeMPV)
	if mode == "" {
		return
	}
	os.Exit(runFakeMPV(mode, os.Args[1:]))
}

func runFakeMPV(mode string, args []string) int {
	var sockPath string
	terminal := true
	for _, arg := range args {
		switch {
		case arg == "--no-terminal":
			terminal = false
		case strings.HasPrefix(arg, "--input-unix-socket="):
			sockPath = strings.TrimPrefix(arg, "--input-unix-socket=")
		}
	}
	if sockPath == "" || terminal {
		fmt.Fprintf(os.Stderr, "fake mpv: missing ipc flags in %v\n", args)
		return 3
	}

	switch mode {
	case ModeExit:
		time.Sleep(50 * time.Millisecond)
		return 0
	case ModeHang:
		time.Sleep(time.Hour)
		return 0
	case ModeServe:
	default:
		fmt.Fprintf(os.Stderr, "fake mpv: unknown mode %q\n", mode)
		return 3
	}

	time.Sleep(serveDelay)
	l, err := net.Listen("unix", sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake mpv: listen: %v\n", err)
		return 1
	}
	defer l.Close()

	conn, err := l.Accept()
	if err != nil {
		return 1
	}
	defer conn.Close()

	p := &fakePlayer{conn: conn, args: args, position: PlaybackTime}
	return p.serve()
}

type fakePlayer struct {
	conn     net.Conn
	args     []string
	position float64
	paused   bool
}

func (p *fakePlayer) serve() int {
	dec := json.NewDecoder(p.conn)
	for {
		var req struct {
			Command []any `json:"command"`
		}
		if err := dec.Decode(&req); err != nil {
			return 0
		}
		if quit := p.handle(req.Command); quit {
			return 0
		}
	}
}

func (p *fakePlayer) handle(command []any) bool {
	if len(command) == 0 {
		p.reply("invalid parameter", nil)
		return false
	}
	name, _ := command[0].(string)
	switch {
	case name == "get_property" && len(command) == 2:
		switch command[1] {
		case "playback-time":
			p.event(`{"event":"property-change","name":"playback-time"}`)
			p.split(fmt.Sprintf(`{"error":"success","data":%v}`, p.position))
		case "duration":
			p.reply("success", MediaDuration)
		case "pause":
			p.reply("success", p.paused)
		case PropertyArgs:
			p.reply("success", p.args)
		case PropertyStall:
		default:
			p.reply("property not found", nil)
		}
	case name == "cycle" && len(command) == 2 && command[1] == "pause":
		p.paused = !p.paused
		p.event(`{"event":"pause"}`)
		p.reply("success", nil)
	case name == "set_property" && len(command) == 3:
		if command[1] == "pause" {
			p.paused, _ = command[2].(bool)
		}
		p.reply("success", nil)
	case name == "seek" && len(command) >= 2:
		if pos, ok := command[1].(float64); ok {
			p.position = pos
		}
		p.event(`{"event":"seek"}`)
		p.reply("success", nil)
		p.event(`{"event":"playback-restart"}`)
	case name == "quit":
		p.reply("success", nil)
		return true
	default:
		p.reply("invalid parameter", nil)
	}
	return false
}

func (p *fakePlayer) reply(status string, data any) {
	b, _ := json.Marshal(map[string]any{"error": status, "data": data})
	p.write(string(b) + "\n")
}

func (p *fakePlayer) event(line string) { p.write(line + "\n") }

// split writes msg in two chunks so readers see a partial value.
func (p *fakePlayer) split(msg string) {
	half := len(msg) / 2
	p.write(msg[:half])
	time.Sleep(5 * time.Millisecond)
	p.write(msg[half:] + "\n")
}

func (p *fakePlayer) write(s string) { _, _ = p.conn.Write([]byte(s)) }
