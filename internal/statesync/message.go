package statesync

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message is a decoded inbound frame. It is either JSON (the frame parsed as
// JSON) or Raw (it did not, and the original text is kept as-is).
//
// Consumers that need to distinguish the two use a type switch:
//
//	switch m := msg.(type) {
//	case statesync.JSON:
//		// m.Value
//	case statesync.Raw:
//		// string(m)
//	}
type Message interface {
	// Text returns the frame as text: the original bytes for Raw, the JSON
	// re-encoding of the value for JSON.
	Text() string
	// Command splits the frame into the colon-protocol command and its
	// argument.
	Command() (command, argument string)

	isMessage()
}

// JSON is a frame that parsed as JSON.
type JSON struct {
	Value any
}

// Raw is a frame that was not valid JSON, byte-for-byte.
type Raw string

var (
	_ Message = JSON{}
	_ Message = Raw("")
)

// Decode classifies a frame. It never fails: anything that is not valid JSON
// is returned as Raw.
func Decode(text string) Message {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Raw(text)
	}
	return JSON{Value: v}
}

// Split separates "<command>:<argument>" at the first colon. The argument is
// everything after that colon, verbatim, or "" when there is no colon.
func Split(text string) (command, argument string) {
	command, argument, _ = strings.Cut(text, ":")
	return command, argument
}

func (m JSON) Text() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.Value); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Command splits a JSON string frame on the string itself; any other JSON value
// is split on its re-encoding.
func (m JSON) Command() (string, string) {
	if s, ok := m.Value.(string); ok {
		return Split(s)
	}
	return Split(m.Text())
}

func (JSON) isMessage() {}

func (m Raw) Text() string { return string(m) }

func (m Raw) Command() (string, string) { return Split(string(m)) }

func (Raw) isMessage() {}
