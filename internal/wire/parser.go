// Package wire frames the byte stream read from an mpv IPC socket into JSON
// messages.
//
// Framing is by structural completeness rather than by newlines: bytes are
// appended to a buffer and every complete object at its head is decoded and
// removed. Whatever is left is the start of a value still in flight.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
)

// Parser accumulates raw bytes and yields decoded messages. It is not safe for
// concurrent use; a single reader goroutine owns it.
type Parser struct {
	buf     []byte
	skipped int
	scan    scanState
}

// scanState tracks nesting over the bytes of the value at the head of the
// buffer so each byte is looked at once while the value is still arriving.
type scanState struct {
	active  bool
	pos     int
	depth   int
	inStr   bool
	escaped bool
}

// Write appends p to the buffer. It never fails.
func (p *Parser) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// Buffered returns the number of bytes retained for a value not yet complete.
func (p *Parser) Buffered() int { return len(p.buf) }

// Skipped returns the number of stray bytes dropped so far.
func (p *Parser) Skipped() int { return p.skipped }

// Next decodes one message from the head of the buffer. It returns false when
// no complete message is buffered, leaving the remaining bytes untouched.
//
// The decoder only runs once the value's brackets balance or a newline shows
// up outside a string, so a large value arriving in many reads is decoded
// once and not once per read.
func (p *Parser) Next() (Message, bool) {
	for {
		start := bytes.IndexByte(p.buf, '{')
		if start < 0 {
			// nothing here can start a value
			p.consume(len(p.buf), len(p.buf))
			return Message{}, false
		}

		if !p.mayBeComplete(start) {
			return Message{}, false
		}

		dec := json.NewDecoder(bytes.NewReader(p.buf[start:]))
		var fields map[string]json.RawMessage
		err := dec.Decode(&fields)
		if err == nil {
			end := start + int(dec.InputOffset())
			msg := Message{
				raw:    append(json.RawMessage(nil), p.buf[start:end]...),
				fields: fields,
			}
			p.consume(end, start)
			return msg, true
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			// a newline inside the value; keep scanning what is buffered
			continue
		}

		// malformed object: drop its opening brace and resync on the next one
		p.consume(start+1, start+1)
	}
}

// Messages returns a lazy sequence over the messages currently complete in
// the buffer. It can be ranged over again after more bytes are written.
func (p *Parser) Messages() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for {
			msg, ok := p.Next()
			if !ok || !yield(msg) {
				return
			}
		}
	}
}

// mayBeComplete scans the bytes written since the last call and reports
// whether the value starting at start could now be complete.
func (p *Parser) mayBeComplete(start int) bool {
	sc := &p.scan
	if !sc.active {
		*sc = scanState{active: true, pos: start}
	}
	for sc.pos < len(p.buf) {
		c := p.buf[sc.pos]
		sc.pos++
		switch {
		case sc.escaped:
			sc.escaped = false
		case sc.inStr:
			if c == '\\' {
				sc.escaped = true
			} else if c == '"' {
				sc.inStr = false
			}
		case c == '"':
			sc.inStr = true
		case c == '{' || c == '[':
			sc.depth++
		case c == '}' || c == ']':
			sc.depth--
			if sc.depth <= 0 {
				return true
			}
		case c == '\n':
			// lets the decoder reject garbage that never closes
			return true
		}
	}
	return false
}

// consume drops the first n bytes of the buffer, of which stray were not part
// of any decoded value.
func (p *Parser) consume(n, stray int) {
	if n == 0 {
		return
	}
	p.skipped += stray
	p.scan = scanState{}
	rest := copy(p.buf, p.buf[n:])
	p.buf = p.buf[:rest]
}
