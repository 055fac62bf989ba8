package notes

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/store"
)

// StoreKey is the store key holding the whole registry.
const StoreKey = "playtrace.notes"

// DefaultDebounce is the quiescence window before an edit is persisted.
const DefaultDebounce = 500 * time.Millisecond

// Registry maps entity keys to note records. Local edits are persisted
// after a quiescence window; remote, imported and cleared state is
// persisted immediately.
type Registry struct {
	store     *store.Store
	catalog   Catalog
	debounce  time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	onChange  func(Record)

	mu      sync.Mutex
	records map[string]Record
	active  string
	pending Timer
	gen     uint64 // invalidates timers that lost a race with Stop
}

// Option configures a Registry.
type Option func(*Registry)

// WithDebounce sets the quiescence window.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithAfterFunc replaces the timer factory used for debouncing.
func WithAfterFunc(f AfterFunc) Option {
	return func(r *Registry) {
		r.afterFunc = f
	}
}

// WithClock overrides the updatedAt source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithChangeHook registers fn to be called after any record changes.
func WithChangeHook(fn func(Record)) Option {
	return func(r *Registry) {
		r.onChange = fn
	}
}

// NewRegistry loads the persisted registry from s. catalog may be nil.
func NewRegistry(s *store.Store, catalog Catalog, opts ...Option) *Registry {
	r := &Registry{
		store:     s,
		catalog:   catalog,
		debounce:  DefaultDebounce,
		afterFunc: realAfterFunc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	loaded := store.Get(s, StoreKey, map[string]Record{})
	r.records = make(map[string]Record, len(loaded))
	for k, rec := range loaded {
		rec.Key = k
		r.records[k] = rec
	}
	return r
}

// Select makes key the active entity. A pending write for the previous key
// is flushed immediately. Selecting never creates a record.
func (r *Registry) Select(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key == r.active {
		return
	}
	r.flushLocked()
	r.active = key
}

// Active returns the active key, or "" if nothing is selected.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Edit replaces the text of the active entity's note, creating the record
// on first edit, and schedules persistence.
func (r *Registry) Edit(text string) (Record, error) {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		return Record{}, apperr.ErrNoActiveKey
	}
	rec, ok := r.records[r.active]
	if !ok {
		rec = Record{Key: r.active, Title: r.titleFor(r.active)}
	}
	rec.Text = text
	rec.UpdatedAt = r.now().UnixMilli()
	r.records[r.active] = rec
	r.scheduleLocked()
	r.mu.Unlock()

	r.changed(rec)
	return rec, nil
}

// Update selects key and edits its text.
func (r *Registry) Update(key, text string) (Record, error) {
	r.Select(key)
	return r.Edit(text)
}

// Get returns the record for key.
func (r *Registry) Get(key string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	return rec, ok
}

// List returns every record sorted by key.
func (r *Registry) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Snapshot returns a copy of the whole mapping.
func (r *Registry) Snapshot() map[string]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Candidates lists catalog entities that have no record yet, in catalog
// order.
func (r *Registry) Candidates() []Entity {
	if r.catalog == nil {
		return []Entity{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Entity{}
	for _, e := range r.catalog.Entities() {
		if _, ok := r.records[e.Key]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// ApplyRemote stores a note received from another context. The remote text
// always wins; a missing record is created with the relayed title.
func (r *Registry) ApplyRemote(key, title, text string) Record {
	r.mu.Lock()
	rec, ok := r.records[key]
	if !ok {
		rec = Record{Key: key, Title: title}
	}
	rec.Text = text
	rec.UpdatedAt = r.now().UnixMilli()
	r.records[key] = rec
	r.persistLocked()
	r.mu.Unlock()

	r.changed(rec)
	return rec
}

// Merge overwrites records by key and persists immediately.
func (r *Registry) Merge(records map[string]Record) {
	r.mu.Lock()
	for k, rec := range records {
		rec.Key = k
		r.records[k] = rec
	}
	r.persistLocked()
	r.mu.Unlock()

	for k := range records {
		if rec, ok := r.Get(k); ok {
			r.changed(rec)
		}
	}
}

// Clear removes every record and persists the empty registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]Record)
	r.persistLocked()
}

// Flush writes a pending debounced edit now.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

// Close flushes pending state. The registry stays usable.
func (r *Registry) Close() error {
	r.Flush()
	return nil
}

func (r *Registry) titleFor(key string) string {
	if r.catalog != nil {
		for _, e := range r.catalog.Entities() {
			if e.Key == key && e.Title != "" {
				return e.Title
			}
		}
	}
	return key
}

// scheduleLocked (re)starts the quiescence timer.
func (r *Registry) scheduleLocked() {
	if r.pending != nil {
		r.pending.Stop()
	}
	r.gen++
	gen := r.gen
	r.pending = r.afterFunc(r.debounce, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen || r.pending == nil {
			return
		}
		r.pending = nil
		r.persistLocked()
	})
}

func (r *Registry) flushLocked() {
	if r.pending == nil {
		return
	}
	r.pending.Stop()
	r.pending = nil
	r.gen++
	r.persistLocked()
}

// persistLocked writes the whole mapping and supersedes any pending timer.
func (r *Registry) persistLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
		r.gen++
	}
	r.store.Set(StoreKey, r.snapshotLocked())
}

func (r *Registry) snapshotLocked() map[string]Record {
	out := make(map[string]Record, len(r.records))
	for k, v := range r.records {
		out[k] = v
	}
	return out
}

func (r *Registry) changed(rec Record) {
	if r.onChange != nil {
		r.onChange(rec)
	}
}
