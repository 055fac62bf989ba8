package console

import (
	"sync"

	"github.com/starford/playtrace/internal/sse"
)

// EventConsoleUpdated is the SSE event carrying the visible window.
const EventConsoleUpdated = "console.updated"

// DefaultWindow is the number of entries a View shows.
const DefaultWindow = 100

// Publisher is the event feed a View renders into.
type Publisher interface {
	ClientCount() int
	Publish(event sse.Event)
}

// View is a Display that shows the newest entries matching an optional
// level filter, pushed to SSE subscribers.
type View struct {
	pub    Publisher
	window int

	mu     sync.RWMutex
	filter Level
}

// NewView creates a view showing at most window entries.
func NewView(pub Publisher, window int) *View {
	if window <= 0 {
		window = DefaultWindow
	}
	return &View{pub: pub, window: window}
}

// Visible reports whether any subscriber is connected.
func (v *View) Visible() bool {
	return v.pub.ClientCount() > 0
}

// Accepts reports whether entries of level pass the current filter.
func (v *View) Accepts(level Level) bool {
	f := v.Filter()
	return f == "" || f == level
}

// Filter returns the active level filter; "" means unfiltered.
func (v *View) Filter() Level {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter
}

// SetFilter changes the level filter; "" clears it.
func (v *View) SetFilter(level Level) {
	v.mu.Lock()
	v.filter = level
	v.mu.Unlock()
}

// Window returns the maximum number of entries shown.
func (v *View) Window() int {
	return v.window
}

// Select applies the filter to entries and keeps the newest window of
// them, oldest first.
func (v *View) Select(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if v.Accepts(e.Level) {
			out = append(out, e)
		}
	}
	if len(out) > v.window {
		out = out[len(out)-v.window:]
	}
	return out
}

// Refresh publishes the current window.
func (v *View) Refresh(entries []Entry) {
	v.pub.Publish(sse.Event{Type: EventConsoleUpdated, Data: v.Select(entries)})
}
