package console

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrInstalled is returned when installing an interceptor that already
// wraps a surface.
var ErrInstalled = errors.New("console: interceptor already installed")

// Display is a rendering surface that mirrors the buffer.
type Display interface {
	// Visible reports whether anything is currently looking at the display.
	Visible() bool
	// Accepts reports whether entries of level are shown by the current filter.
	Accepts(level Level) bool
	// Refresh redraws from the full buffer contents, oldest first.
	Refresh(entries []Entry)
}

// Interceptor wraps a Surface (and optionally the default slog logger) so
// that every call is passed through to the original handler and also
// captured into a Buffer.
type Interceptor struct {
	buffer *Buffer
	now    func() time.Time

	mu         sync.Mutex
	surface    *Surface
	originals  map[Level]HandlerFunc
	prevLogger *slog.Logger
	display    Display
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) InterceptorOption {
	return func(i *Interceptor) {
		i.now = now
	}
}

// NewInterceptor creates an interceptor feeding buffer. Nothing is wrapped
// until Install or InstallSlog is called.
func NewInterceptor(buffer *Buffer, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{buffer: buffer, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Buffer returns the buffer entries are captured into.
func (i *Interceptor) Buffer() *Buffer {
	return i.buffer
}

// Install wraps every level handler of s. The originals are kept and keep
// receiving the exact arguments, before capture happens.
func (i *Interceptor) Install(s *Surface) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.surface != nil {
		return ErrInstalled
	}
	i.originals = make(map[Level]HandlerFunc, len(Levels))
	for _, l := range Levels {
		orig := s.Handler(l)
		i.originals[l] = orig
		s.SetHandler(l, i.wrap(l, orig))
	}
	i.surface = s
	return nil
}

// Uninstall restores the original handlers on the wrapped surface.
func (i *Interceptor) Uninstall() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.surface == nil {
		return
	}
	for l, h := range i.originals {
		i.surface.SetHandler(l, h)
	}
	i.surface = nil
	i.originals = nil
}

// InstallSlog wraps the current default slog logger. Records still reach
// the original handler and are captured as entries.
func (i *Interceptor) InstallSlog() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.prevLogger != nil {
		return
	}
	prev := slog.Default()
	i.prevLogger = prev
	slog.SetDefault(slog.New(&captureHandler{next: prev.Handler(), ic: i}))
}

// UninstallSlog restores the default logger seen by InstallSlog.
func (i *Interceptor) UninstallSlog() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.prevLogger == nil {
		return
	}
	slog.SetDefault(i.prevLogger)
	i.prevLogger = nil
}

// Attach sets the display refreshed after each capture.
func (i *Interceptor) Attach(d Display) {
	i.mu.Lock()
	i.display = d
	i.mu.Unlock()
}

// Detach removes the attached display.
func (i *Interceptor) Detach() {
	i.Attach(nil)
}

// Record captures a locally produced entry and refreshes a visible display.
func (i *Interceptor) Record(level Level, message string) Entry {
	e := NewEntry(level, message, i.now())
	i.buffer.Append(e)
	if d := i.currentDisplay(); d != nil && d.Visible() {
		d.Refresh(i.buffer.Entries())
	}
	return e
}

// Relayed captures an entry received from another context. The display is
// refreshed only when it currently shows entries of that level.
func (i *Interceptor) Relayed(level Level, message string) Entry {
	e := NewEntry(level, message, i.now())
	i.buffer.Append(e)
	if d := i.currentDisplay(); d != nil && d.Visible() && d.Accepts(level) {
		d.Refresh(i.buffer.Entries())
	}
	return e
}

func (i *Interceptor) currentDisplay() Display {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.display
}

func (i *Interceptor) wrap(level Level, orig HandlerFunc) HandlerFunc {
	return func(args ...any) {
		if orig != nil {
			orig(args...)
		}
		i.Record(level, Format(args...))
	}
}
