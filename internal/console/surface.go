package console

import (
	"fmt"
	"io"
	"sync"
)

// HandlerFunc handles one logging call.
type HandlerFunc func(args ...any)

// Surface is a logging facility with one replaceable handler per level.
// Code logs through it the way scripts log through a console object.
type Surface struct {
	mu       sync.RWMutex
	handlers map[Level]HandlerFunc
}

// NewSurface returns a Surface whose handlers print "[level] message" lines
// to w.
func NewSurface(w io.Writer) *Surface {
	var writeMu sync.Mutex
	s := &Surface{handlers: make(map[Level]HandlerFunc, len(Levels))}
	for _, l := range Levels {
		level := l
		s.handlers[level] = func(args ...any) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_, _ = fmt.Fprintf(w, "[%s] %s\n", level, Format(args...))
		}
	}
	return s
}

// Handler returns the current handler for level.
func (s *Surface) Handler(level Level) HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[level]
}

// SetHandler replaces the handler for level and returns the previous one.
func (s *Surface) SetHandler(level Level, h HandlerFunc) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.handlers[level]
	s.handlers[level] = h
	return prev
}

// Emit dispatches args to the handler for level.
func (s *Surface) Emit(level Level, args ...any) {
	if h := s.Handler(level); h != nil {
		h(args...)
	}
}

func (s *Surface) Log(args ...any)   { s.Emit(LevelLog, args...) }
func (s *Surface) Info(args ...any)  { s.Emit(LevelInfo, args...) }
func (s *Surface) Warn(args ...any)  { s.Emit(LevelWarn, args...) }
func (s *Surface) Error(args ...any) { s.Emit(LevelError, args...) }
func (s *Surface) Debug(args ...any) { s.Emit(LevelDebug, args...) }
