package relay

import (
	"strings"

	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/notes"
)

// LogSink receives relayed console entries.
type LogSink interface {
	Relayed(level console.Level, message string) console.Entry
}

// NoteSink receives relayed notes.
type NoteSink interface {
	ApplyRemote(key, title, text string) notes.Record
}

// Relay is the single consumer of inbound agent messages.
type Relay struct {
	logs    LogSink
	notes   NoteSink
	origins map[string]struct{}
}

// New creates a relay. An empty allowedOrigins accepts every origin.
func New(logs LogSink, notes NoteSink, allowedOrigins []string) *Relay {
	r := &Relay{logs: logs, notes: notes}
	if len(allowedOrigins) > 0 {
		r.origins = make(map[string]struct{}, len(allowedOrigins))
		for _, o := range allowedOrigins {
			r.origins[normalizeOrigin(o)] = struct{}{}
		}
	}
	return r
}

// Allowed reports whether messages from origin are accepted.
func (r *Relay) Allowed(origin string) bool {
	if r.origins == nil {
		return true
	}
	_, ok := r.origins[normalizeOrigin(origin)]
	return ok
}

// Receive filters, decodes and dispatches one message. It reports whether
// the message was applied; rejected input is dropped without logging.
func (r *Relay) Receive(origin string, data []byte) bool {
	if !r.Allowed(origin) {
		return false
	}
	msg, err := Decode(data)
	if err != nil {
		return false
	}
	r.Dispatch(msg)
	return true
}

// Dispatch applies an already decoded message.
func (r *Relay) Dispatch(msg Message) {
	switch m := msg.(type) {
	case LogRelay:
		r.logs.Relayed(m.Level, m.Text())
	case NoteRelay:
		r.notes.ApplyRemote(m.Key, m.Title, m.Text)
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
}
