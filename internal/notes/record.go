// Package notes keeps per-game progress notes with debounced persistence.
package notes

import "time"

// Record is the note filed under Key.
type Record struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	UpdatedAt int64  `json:"updatedAt"` // unix millis
}

// Updated returns the last edit time.
func (r Record) Updated() time.Time {
	return time.UnixMilli(r.UpdatedAt)
}

// Entity is a selectable item from the host catalog.
type Entity struct {
	Key   string
	Title string
}

// Catalog enumerates entities notes can be attached to. It is consulted
// read-only.
type Catalog interface {
	Entities() []Entity
}

// Timer is a pending scheduled persistence.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
