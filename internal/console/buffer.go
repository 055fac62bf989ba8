package console

import (
	"sync"

	"github.com/starford/playtrace/internal/store"
)

// BufferKey is the store key holding the persisted log sequence.
const BufferKey = "playtrace.consoleLogs"

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 400

// Buffer is a bounded, ordered sequence of entries, oldest first. Every
// mutation is written through to the store.
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	store    *store.Store
}

// NewBuffer loads the persisted sequence from s. Absent or corrupt data
// yields an empty buffer; an oversized sequence keeps its newest entries.
func NewBuffer(s *store.Store, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	loaded := store.Get(s, BufferKey, []Entry{})
	if len(loaded) > capacity {
		loaded = loaded[len(loaded)-capacity:]
	}
	return &Buffer{entries: loaded, capacity: capacity, store: s}
}

// Append adds e, evicts from the front until the buffer is back at
// capacity, and persists.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, e)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
	b.persistLocked()
}

// Entries returns a copy of the whole buffer, oldest first.
func (b *Buffer) Entries() []Entry {
	return b.Recent(-1)
}

// Recent returns a copy of the newest n entries, oldest first. n <= 0
// returns everything.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]Entry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Capacity returns the maximum number of entries kept.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear drops every entry and persists the empty sequence.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = []Entry{}
	b.persistLocked()
}

// Replace swaps the whole sequence, keeping the newest entries if it is
// over capacity, and persists.
func (b *Buffer) Replace(entries []Entry) {
	if len(entries) > b.capacity {
		entries = entries[len(entries)-b.capacity:]
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = cp
	b.persistLocked()
}

func (b *Buffer) persistLocked() {
	b.store.Set(BufferKey, b.entries)
}
