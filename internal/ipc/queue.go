// Package ipc correlates requests written to an mpv IPC channel with the
// responses read back from it.
//
// mpv answers requests in the order it receives them, so a response always
// belongs to the oldest request still waiting. Event notifications can arrive
// between any two responses and are never matched.
package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvctl/internal/monitoring"
	"github.com/tr1v3r/mpvctl/internal/wire"
)

const readBufSize = 4096

// ErrNotConnected is returned when enqueueing on a closed channel.
var ErrNotConnected = errors.New("ipc: not connected")

// Callback receives the data payload of the response to a request.
type Callback func(data any)

// ResponseFunc receives the full response, error indicator included.
type ResponseFunc func(wire.Response)

type pending struct {
	command []any
	payload []byte
	reply   ResponseFunc
	delayed bool
	sent    bool
}

// Queue is the transaction queue of a single IPC channel.
type Queue struct {
	conn io.ReadWriteCloser

	mu      sync.Mutex
	pending []*pending
	closed  bool
	done    chan struct{}

	// writeMu is taken before mu is released so bytes leave in queue order
	writeMu sync.Mutex
	// dispatchMu is held from popping a head until its reply returns
	dispatchMu sync.Mutex

	parser  wire.Parser
	metrics *monitoring.Metrics
}

// New starts routing messages read from conn. The queue owns conn from now on.
func New(conn io.ReadWriteCloser) *Queue {
	q := &Queue{
		conn:    conn,
		done:    make(chan struct{}),
		metrics: monitoring.GetMetrics(),
	}
	go q.readLoop()
	return q
}

// Enqueue registers cb for the response to command. A delayed command is held
// back until every earlier request has been answered.
//
// Requests always leave in queue order, so a non-delayed command enqueued
// behind a delayed one that is still held back waits for it too.
func (q *Queue) Enqueue(command []any, cb Callback, delayed bool) error {
	var reply ResponseFunc
	if cb != nil {
		reply = func(resp wire.Response) { cb(resp.Data) }
	}
	return q.EnqueueResponse(command, reply, delayed)
}

// EnqueueResponse is Enqueue with the error indicator passed through.
func (q *Queue) EnqueueResponse(command []any, reply ResponseFunc, delayed bool) error {
	payload, err := wire.EncodeRequest(command)
	if err != nil {
		return fmt.Errorf("encode command %v: %w", command, err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrNotConnected
	}
	q.pending = append(q.pending, &pending{
		command: command,
		payload: payload,
		reply:   reply,
		delayed: delayed,
	})
	if err := q.flushAndUnlock(); err != nil {
		_ = q.shutdown()
		return err
	}
	return nil
}

// Len returns the number of requests not yet answered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Done is closed once the queue is closed.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Close discards every pending request without invoking it and closes the
// channel. It is safe to call more than once. A reply already being delivered
// completes before Close returns, so Close must not be called from a callback.
func (q *Queue) Close() error {
	err := q.shutdown()
	// wait out a reply popped before closed was set
	q.dispatchMu.Lock()
	q.dispatchMu.Unlock()
	return err
}

// shutdown is Close without waiting for a reply in progress.
func (q *Queue) shutdown() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	discarded := len(q.pending)
	q.pending = nil
	close(q.done)
	q.mu.Unlock()

	if discarded > 0 {
		q.metrics.RecordRequestsDiscarded(discarded)
		log.Debug("ipc closed, discarded %d pending requests", discarded)
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("closing ipc channel fail: %w", err)
	}
	return nil
}

// flushAndUnlock writes every request that may be transmitted now. It must be
// called with mu held and returns with it released.
//
// Requests are written in queue order. A delayed request goes out only once it
// is the head, and nothing behind an unsent request is written before it.
func (q *Queue) flushAndUnlock() error {
	var batch []*pending
	for i, p := range q.pending {
		if p.sent {
			continue
		}
		if p.delayed && i > 0 {
			break
		}
		p.sent = true
		batch = append(batch, p)
	}
	if len(batch) == 0 {
		q.mu.Unlock()
		return nil
	}

	q.writeMu.Lock()
	q.mu.Unlock()
	defer q.writeMu.Unlock()

	for _, p := range batch {
		if _, err := q.conn.Write(p.payload); err != nil {
			return fmt.Errorf("writing command %v to ipc channel fail: %w", p.command, err)
		}
		q.metrics.RecordRequestSent()
		log.Debug("ipc sent: %s", p.payload[:len(p.payload)-1])
	}
	return nil
}

func (q *Queue) readLoop() {
	defer func() { _ = q.shutdown() }()

	buf := make([]byte, readBufSize)
	for {
		n, err := q.conn.Read(buf)
		if n > 0 {
			_, _ = q.parser.Write(buf[:n])
			// drain everything complete before reading again
			for msg := range q.parser.Messages() {
				q.route(msg)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				log.Error("reading from ipc channel fail: %v", err)
			}
			return
		}
	}
}

func (q *Queue) route(msg wire.Message) {
	if msg.IsEvent() {
		q.metrics.RecordNotificationDropped()
		log.Debug("ipc event dropped: %s", msg)
		return
	}

	q.dispatchMu.Lock()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.dispatchMu.Unlock()
		return
	}
	if len(q.pending) == 0 {
		q.mu.Unlock()
		q.dispatchMu.Unlock()
		q.metrics.RecordUnmatchedResponse()
		log.Debug("ipc response without pending request dropped: %s", msg)
		return
	}
	head := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.mu.Unlock()

	q.metrics.RecordResponseMatched()
	log.Debug("ipc response for %v: %s", head.command, msg)
	if head.reply != nil {
		head.reply(msg.Response())
	}
	q.dispatchMu.Unlock()

	// a delayed request may have become the head
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if err := q.flushAndUnlock(); err != nil {
		log.Error("%v", err)
		_ = q.shutdown()
	}
}
