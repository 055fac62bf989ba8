// Package relay decodes messages posted by injected agents and folds them
// into the hub's console buffer and note registry.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/playtrace/internal/console"
)

// Wire discriminants.
const (
	TypeLog  = "playtrace:log"
	TypeNote = "playtrace:note"
)

var (
	ErrNotObject   = errors.New("relay: message is not an object")
	ErrUnknownType = errors.New("relay: unknown message type")
)

// Message is one of LogRelay or NoteRelay.
type Message interface {
	messageType() string
}

// LogRelay is a console entry captured inside a child window.
type LogRelay struct {
	Level   console.Level
	Message string
	Source  string
}

func (LogRelay) messageType() string { return TypeLog }

// Text is the hub-side entry text: the message prefixed with its source.
func (m LogRelay) Text() string {
	return "[" + m.Source + "] " + m.Message
}

// NoteRelay is a note saved inside a child window.
type NoteRelay struct {
	Key   string
	Title string
	Text  string
}

func (NoteRelay) messageType() string { return TypeNote }

type wireMessage struct {
	Type    *string `json:"type"`
	Level   *string `json:"level"`
	Message *string `json:"message"`
	Source  *string `json:"source"`
	Key     *string `json:"key"`
	Title   *string `json:"title"`
	Text    *string `json:"text"`
}

func (w wireMessage) validateLog() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Level, validation.NotNil, validation.By(knownLevel)),
		validation.Field(&w.Message, validation.NotNil),
		validation.Field(&w.Source, validation.NotNil),
	)
}

func (w wireMessage) validateNote() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Key, validation.NotNil, validation.Required),
		validation.Field(&w.Title, validation.NotNil),
		validation.Field(&w.Text, validation.NotNil),
	)
}

func knownLevel(v any) error {
	s, ok := v.(*string)
	if !ok || s == nil {
		return nil
	}
	if _, ok := console.ParseLevel(*s); !ok {
		return fmt.Errorf("unknown level %q", *s)
	}
	return nil
}

// Decode validates data against the wire contract. Anything that is not a
// JSON object with a recognized type and fully typed fields is rejected.
func Decode(data []byte) (Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, ErrNotObject
	}
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	if w.Type == nil {
		return nil, ErrUnknownType
	}

	switch *w.Type {
	case TypeLog:
		if err := w.validateLog(); err != nil {
			return nil, fmt.Errorf("relay: %w", err)
		}
		level, _ := console.ParseLevel(*w.Level)
		return LogRelay{Level: level, Message: *w.Message, Source: *w.Source}, nil
	case TypeNote:
		if err := w.validateNote(); err != nil {
			return nil, fmt.Errorf("relay: %w", err)
		}
		return NoteRelay{Key: *w.Key, Title: *w.Title, Text: *w.Text}, nil
	default:
		return nil, ErrUnknownType
	}
}
