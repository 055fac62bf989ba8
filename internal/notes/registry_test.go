package notes

import (
	"sync"
	"testing"
	"time"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/store"
)

// manualTimers is a deterministic AfterFunc: timers fire only when the
// test advances the clock.
type manualTimers struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{at: m.now + d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// advance moves time forward by d and runs every due timer in order.
func (m *manualTimers) advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && t.at <= m.now {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// countingBackend counts writes of the registry key.
type countingBackend struct {
	*store.Memory
	mu     sync.Mutex
	writes int
}

func (c *countingBackend) Write(key string, data []byte) error {
	if key == StoreKey {
		c.mu.Lock()
		c.writes++
		c.mu.Unlock()
	}
	return c.Memory.Write(key, data)
}

func (c *countingBackend) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type fakeCatalog []Entity

func (c fakeCatalog) Entities() []Entity { return c }

const window = 500 * time.Millisecond

func newTestRegistry(t *testing.T, catalog Catalog) (*Registry, *store.Store, *countingBackend, *manualTimers) {
	t.Helper()
	backend := &countingBackend{Memory: store.NewMemory()}
	s := store.New(backend, nil)
	timers := &manualTimers{}
	r := NewRegistry(s, catalog, WithDebounce(window), WithAfterFunc(timers.afterFunc))
	return r, s, backend, timers
}

func persisted(s *store.Store) map[string]Record {
	return store.Get(s, StoreKey, map[string]Record{})
}

func TestEditsWithinWindowCollapse(t *testing.T) {
	r, s, backend, timers := newTestRegistry(t, nil)
	r.Select("pong")

	for _, text := range []string{"l", "le", "lev", "level 2"} {
		if _, err := r.Edit(text); err != nil {
			t.Fatalf("Edit: %v", err)
		}
		timers.advance(100 * time.Millisecond)
	}
	if backend.count() != 0 {
		t.Fatalf("writes before quiescence = %d, want 0", backend.count())
	}

	timers.advance(window)
	if backend.count() != 1 {
		t.Fatalf("writes = %d, want 1", backend.count())
	}
	if got := persisted(s)["pong"].Text; got != "level 2" {
		t.Errorf("persisted text = %q, want %q", got, "level 2")
	}
}

func TestEditsSpanningWindowsWriteEach(t *testing.T) {
	r, s, backend, timers := newTestRegistry(t, nil)
	r.Select("pong")

	_, _ = r.Edit("first")
	timers.advance(window + time.Millisecond)
	if got := persisted(s)["pong"].Text; got != "first" {
		t.Errorf("after first window text = %q", got)
	}

	_, _ = r.Edit("second")
	timers.advance(window + time.Millisecond)
	if backend.count() != 2 {
		t.Errorf("writes = %d, want 2", backend.count())
	}
	if got := persisted(s)["pong"].Text; got != "second" {
		t.Errorf("after second window text = %q", got)
	}
}

func TestSwitchingKeyFlushesPendingEdit(t *testing.T) {
	r, s, _, timers := newTestRegistry(t, nil)
	r.Select("pong")
	_, _ = r.Edit("draft")
	_, _ = r.Edit("final pong text")

	r.Select("tetris")
	if got := persisted(s)["pong"].Text; got != "final pong text" {
		t.Fatalf("pong text after switch = %q, want last in-memory value", got)
	}

	// The cancelled timer must not fire a stale write later.
	_, _ = r.Edit("tetris text")
	timers.advance(10 * window)
	p := persisted(s)
	if p["pong"].Text != "final pong text" || p["tetris"].Text != "tetris text" {
		t.Errorf("persisted = %+v", p)
	}
}

func TestSelectDoesNotCreateRecord(t *testing.T) {
	r, s, backend, _ := newTestRegistry(t, fakeCatalog{{Key: "pong", Title: "Pong"}})
	r.Select("pong")
	r.Select("tetris")
	if _, ok := r.Get("pong"); ok {
		t.Error("selection created a record")
	}
	if backend.count() != 0 || len(persisted(s)) != 0 {
		t.Error("selection wrote to the store")
	}
}

func TestEditWithoutSelection(t *testing.T) {
	r, _, _, _ := newTestRegistry(t, nil)
	if _, err := r.Edit("x"); err != apperr.ErrNoActiveKey {
		t.Errorf("err = %v, want ErrNoActiveKey", err)
	}
}

func TestFirstEditResolvesTitle(t *testing.T) {
	r, _, _, _ := newTestRegistry(t, fakeCatalog{{Key: "g-1", Title: "Asteroids"}})

	rec, _ := r.Update("g-1", "wave 4")
	if rec.Title != "Asteroids" || rec.Key != "g-1" {
		t.Errorf("record = %+v", rec)
	}
	rec, _ = r.Update("unknown", "x")
	if rec.Title != "unknown" {
		t.Errorf("fallback title = %q, want key", rec.Title)
	}
}

func TestEditKeepsTitle(t *testing.T) {
	r, _, _, _ := newTestRegistry(t, nil)
	r.ApplyRemote("pong", "Pong Deluxe", "remote")
	rec, _ := r.Update("pong", "local")
	if rec.Title != "Pong Deluxe" || rec.Text != "local" {
		t.Errorf("record = %+v", rec)
	}
}

func TestApplyRemote(t *testing.T) {
	r, s, _, _ := newTestRegistry(t, nil)

	rec := r.ApplyRemote("asteroids", "Asteroids", "hi")
	if rec.Title != "Asteroids" || rec.Text != "hi" {
		t.Errorf("created = %+v", rec)
	}
	rec = r.ApplyRemote("asteroids", "Other Title", "overwritten")
	if rec.Title != "Asteroids" || rec.Text != "overwritten" {
		t.Errorf("overwritten = %+v", rec)
	}
	if got := persisted(s)["asteroids"].Text; got != "overwritten" {
		t.Errorf("persisted text = %q", got)
	}
}

func TestRemoteWinsOverPendingLocalEdit(t *testing.T) {
	r, s, _, timers := newTestRegistry(t, nil)
	r.Select("pong")
	_, _ = r.Edit("local")
	r.ApplyRemote("pong", "Pong", "remote")
	timers.advance(2 * window)
	if got := persisted(s)["pong"].Text; got != "remote" {
		t.Errorf("persisted = %q, want remote", got)
	}
}

func TestCandidates(t *testing.T) {
	r, _, _, _ := newTestRegistry(t, fakeCatalog{
		{Key: "a", Title: "A"}, {Key: "b", Title: "B"}, {Key: "c", Title: "C"},
	})
	_, _ = r.Update("b", "note")
	got := r.Candidates()
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "c" {
		t.Errorf("candidates = %+v", got)
	}
}

func TestLoadRepairsKeys(t *testing.T) {
	s := store.New(store.NewMemory(), nil)
	s.Set(StoreKey, map[string]Record{"pong": {Key: "wrong", Title: "Pong", Text: "t"}})
	r := NewRegistry(s, nil)
	rec, ok := r.Get("pong")
	if !ok || rec.Key != "pong" {
		t.Errorf("record = %+v", rec)
	}
}

func TestMergeAndClear(t *testing.T) {
	r, s, _, _ := newTestRegistry(t, nil)
	r.ApplyRemote("a", "A", "old")
	r.Merge(map[string]Record{
		"a": {Title: "A", Text: "new"},
		"b": {Title: "B", Text: "b"},
	})
	if rec, _ := r.Get("a"); rec.Text != "new" || rec.Key != "a" {
		t.Errorf("merged a = %+v", rec)
	}
	if len(persisted(s)) != 2 {
		t.Errorf("persisted %d records, want 2", len(persisted(s)))
	}

	r.Clear()
	if r.Len() != 0 || len(persisted(s)) != 0 {
		t.Error("clear did not empty registry and store")
	}
}

func TestChangeHook(t *testing.T) {
	var got []string
	r := NewRegistry(store.New(store.NewMemory(), nil), nil,
		WithAfterFunc((&manualTimers{}).afterFunc),
		WithChangeHook(func(rec Record) { got = append(got, rec.Key+":"+rec.Text) }))
	_, _ = r.Update("pong", "x")
	r.ApplyRemote("tetris", "Tetris", "y")
	if len(got) != 2 || got[0] != "pong:x" || got[1] != "tetris:y" {
		t.Errorf("hook calls = %v", got)
	}
}

func TestCloseFlushes(t *testing.T) {
	r, s, _, _ := newTestRegistry(t, nil)
	_, _ = r.Update("pong", "unsaved")
	_ = r.Close()
	if got := persisted(s)["pong"].Text; got != "unsaved" {
		t.Errorf("persisted = %q after Close", got)
	}
}

func TestRealTimerDebounce(t *testing.T) {
	s := store.New(store.NewMemory(), nil)
	r := NewRegistry(s, nil, WithDebounce(20*time.Millisecond))
	_, _ = r.Update("pong", "eventually")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if persisted(s)["pong"].Text == "eventually" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("debounced write never landed")
}
