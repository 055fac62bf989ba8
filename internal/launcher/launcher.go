// Package launcher holds the host's child-window document factory.
package launcher

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/starford/playtrace/internal/apperr"
)

// Factory builds the markup of a game window.
type Factory func(title, src string, autoplay bool) string

// Slot is the swappable reference through which the host publishes its
// factory. It is empty until the host registers one.
type Slot struct {
	mu sync.RWMutex
	fn Factory
}

// Load returns the current factory, or nil.
func (s *Slot) Load() Factory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fn
}

// Store replaces the current factory.
func (s *Slot) Store(fn Factory) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

// Build invokes the current factory.
func (s *Slot) Build(title, src string, autoplay bool) (string, error) {
	fn := s.Load()
	if fn == nil {
		return "", apperr.ErrFactoryMissing
	}
	return fn(title, src, autoplay), nil
}

// BuildWindow is the host's default game window: a full-bleed iframe
// titled after the game.
func BuildWindow(title, src string, autoplay bool) string {
	allow := ""
	if autoplay {
		allow = ` allow="autoplay; fullscreen; gamepad"`
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>html,body{margin:0;height:100%;background:#000}iframe{border:0;width:100%;height:100%}</style>\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<iframe src=\"%s\"%s></iframe>\n", html.EscapeString(src), allow)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
