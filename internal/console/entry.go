// Package console captures log output into a bounded, persisted buffer.
package console

import (
	"time"
)

// Level is one of the five console levels.
type Level string

// Console levels.
const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

// Levels lists every level in display order.
var Levels = []Level{LevelLog, LevelInfo, LevelWarn, LevelError, LevelDebug}

// Valid reports whether l is one of the five known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelLog, LevelInfo, LevelWarn, LevelError, LevelDebug:
		return true
	}
	return false
}

// ParseLevel converts s to a Level.
func ParseLevel(s string) (Level, bool) {
	l := Level(s)
	return l, l.Valid()
}

// Entry is a single captured log line. Entries are never mutated after
// creation.
type Entry struct {
	Timestamp int64  `json:"timestamp"` // unix millis
	Level     Level  `json:"level"`
	Message   string `json:"message"`
}

// NewEntry stamps message with at.
func NewEntry(level Level, message string, at time.Time) Entry {
	return Entry{Timestamp: at.UnixMilli(), Level: level, Message: message}
}

// Time returns the capture time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
