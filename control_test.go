package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tr1v3r/mpvctl/internal/config"
	"github.com/tr1v3r/mpvctl/internal/player"
)

func TestHandleLine(t *testing.T) {
	p := player.NewSession(config.Default())

	for _, line := range []string{"", "p", "t", "s 1:30", "s nonsense", "m", "bogus"} {
		assert.False(t, handleLine(p, line, io.Discard), "line %q", line)
	}
	assert.True(t, handleLine(p, "q", io.Discard))
	assert.True(t, handleLine(p, "  quit  ", io.Discard))
}

func TestControlReturnsWithoutPlayer(t *testing.T) {
	p := player.NewSession(config.Default())

	done := make(chan error, 1)
	go func() { done <- control(context.Background(), p, strings.NewReader(""), io.Discard) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("control did not return")
	}
}
