package wire

import (
	"encoding/json"
	"fmt"
)

// docs: https://mpv.io/manual/stable/#json-ipc

// StatusSuccess is the error indicator mpv sends for a successful command.
const StatusSuccess = "success"

type Request struct {
	Command []any `json:"command"` // https://mpv.io/manual/stable/#list-of-input-commands
}

// Response is the structured outcome of a command: the error indicator and
// the decoded data payload.
type Response struct {
	Error string `json:"error"`
	Data  any    `json:"data"`
}

func (r Response) Success() bool { return r.Error == StatusSuccess }

// EncodeRequest serializes command into a newline terminated request envelope.
func EncodeRequest(command []any) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	data, err := json.Marshal(Request{Command: command})
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	return append(data, '\n'), nil
}

// Message is one decoded JSON object read from the player.
type Message struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// Raw returns the exact bytes the message was decoded from.
func (m Message) Raw() json.RawMessage { return m.raw }

// IsEvent reports whether the message is an unsolicited notification, ie
// whether it carries an "event" field at all.
func (m Message) IsEvent() bool {
	_, ok := m.fields["event"]
	return ok
}

// Event returns the event name, or "" for responses.
func (m Message) Event() string {
	var name string
	if raw, ok := m.fields["event"]; ok {
		_ = json.Unmarshal(raw, &name)
	}
	return name
}

// Response decodes the error indicator and data payload. Absent fields
// decode to their zero values.
func (m Message) Response() Response {
	var resp Response
	if raw, ok := m.fields["error"]; ok {
		_ = json.Unmarshal(raw, &resp.Error)
	}
	if raw, ok := m.fields["data"]; ok {
		_ = json.Unmarshal(raw, &resp.Data)
	}
	return resp
}

func (m Message) String() string { return string(m.raw) }
