// Package hub wires the capture pipeline into a single service.
package hub

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/catalog"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/inject"
	"github.com/starford/playtrace/internal/launcher"
	"github.com/starford/playtrace/internal/notes"
	"github.com/starford/playtrace/internal/relay"
	"github.com/starford/playtrace/internal/sse"
	"github.com/starford/playtrace/internal/store"
	"github.com/starford/playtrace/internal/transfer"
)

// Events is the live feed the hub publishes to.
type Events interface {
	console.Publisher
	PublishNote(key string, data any)
}

// Settings tunes the pipeline. Zero values fall back to package defaults.
type Settings struct {
	ConsoleCapacity int
	DisplayWindow   int
	NoteDebounce    time.Duration
	AgentCapacity   int
	InjectEnabled   bool
	AllowedOrigins  []string
	// Output receives pass-through console output. Nil means stdout.
	Output io.Writer
	// CaptureSlog also captures records logged through slog.Default.
	CaptureSlog bool
}

// Service owns every stateful component of one hub context.
type Service struct {
	store       *store.Store
	catalog     *catalog.Catalog
	events      Events
	buffer      *console.Buffer
	surface     *console.Surface
	interceptor *console.Interceptor
	view        *console.View
	registry    *notes.Registry
	slot        *launcher.Slot
	patcher     *inject.Patcher
	relay       *relay.Relay
}

// New builds the pipeline on top of s. cat and events may be nil.
func New(s *store.Store, cat *catalog.Catalog, events Events, cfg Settings) (*Service, error) {
	if cat == nil {
		cat = catalog.FromItems(nil)
	}
	if events == nil {
		events = nopEvents{}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	svc := &Service{
		store:   s,
		catalog: cat,
		events:  events,
		surface: console.NewSurface(out),
		slot:    &launcher.Slot{},
	}

	svc.buffer = console.NewBuffer(s, cfg.ConsoleCapacity)
	svc.interceptor = console.NewInterceptor(svc.buffer)
	if err := svc.interceptor.Install(svc.surface); err != nil {
		return nil, fmt.Errorf("hub: install interceptor: %w", err)
	}
	if cfg.CaptureSlog {
		svc.interceptor.InstallSlog()
	}
	svc.view = console.NewView(events, cfg.DisplayWindow)
	svc.interceptor.Attach(svc.view)

	svc.registry = notes.NewRegistry(s, cat,
		notes.WithDebounce(cfg.NoteDebounce),
		notes.WithChangeHook(func(rec notes.Record) {
			events.PublishNote(rec.Key, rec)
		}),
	)

	agent := inject.NewAgent(cfg.AgentCapacity, svc.NoteKeyFor)
	svc.patcher = inject.NewPatcher(svc.slot, s, agent, cfg.InjectEnabled,
		inject.WithStateHook(func(enabled bool, state inject.State) {
			events.Publish(sse.Event{Type: sse.EventInjectionChanged, Data: map[string]any{
				"enabled": enabled,
				"state":   state.String(),
			}})
		}),
	)
	// The window factory is registered after the patcher exists, so an
	// enabled flag is applied at the second checkpoint.
	svc.patcher.Ready()
	svc.slot.Store(launcher.BuildWindow)
	svc.patcher.Ready()

	svc.relay = relay.New(svc.interceptor, svc.registry, cfg.AllowedOrigins)
	return svc, nil
}

// Buffer returns the console log buffer.
func (s *Service) Buffer() *console.Buffer { return s.buffer }

// Surface returns the captured logging surface.
func (s *Service) Surface() *console.Surface { return s.surface }

// View returns the live console display.
func (s *Service) View() *console.View { return s.view }

// Notes returns the note registry.
func (s *Service) Notes() *notes.Registry { return s.registry }

// Patcher returns the injection patcher.
func (s *Service) Patcher() *inject.Patcher { return s.patcher }

// Relay returns the inbound agent message relay.
func (s *Service) Relay() *relay.Relay { return s.relay }

// Catalog returns the game catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// NoteKeyFor maps a window title to a note key: the catalog id of the game
// with that title, else a slug of the title.
func (s *Service) NoteKeyFor(title string) string {
	if it, ok := s.catalog.ByTitle(title); ok {
		return it.ID
	}
	return inject.NoteKey(title)
}

// Log writes message at level through the captured surface.
func (s *Service) Log(level console.Level, message string) {
	s.surface.Emit(level, message)
}

// Tail returns up to limit of the newest entries, optionally restricted to
// one level. limit <= 0 returns every match.
func (s *Service) Tail(level console.Level, limit int) []console.Entry {
	entries := s.buffer.Entries()
	if level != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// ClearLogs empties the console buffer.
func (s *Service) ClearLogs() {
	s.buffer.Clear()
	s.refresh()
}

// ClearAll empties the console buffer and the note registry and persists
// both as empty.
func (s *Service) ClearAll() {
	s.registry.Clear()
	s.buffer.Clear()
	s.events.Publish(sse.Event{Type: sse.EventNotesCleared, Data: map[string]any{}})
	s.refresh()
}

// SetInjection toggles the injection patcher.
func (s *Service) SetInjection(on bool) inject.State {
	return s.patcher.SetEnabled(on)
}

// Export snapshots notes and logs. Pending note edits are flushed first.
func (s *Service) Export(now time.Time) transfer.Document {
	s.registry.Flush()
	return transfer.Export(s.registry, s.buffer, now)
}

// Import applies an export file. Nothing changes unless the whole file is
// valid.
func (s *Service) Import(data []byte) error {
	imp, err := transfer.Parse(data)
	if err != nil {
		return err
	}
	s.registry.Flush()
	transfer.Apply(imp, s.registry, s.buffer)
	s.refresh()
	return nil
}

// Play builds the window document for catalog game id.
func (s *Service) Play(id string, autoplay bool) (string, error) {
	it, ok := s.catalog.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", apperr.ErrUnknownGame, id)
	}
	s.patcher.Ready()
	return s.slot.Build(it.Title, it.Src, autoplay)
}

// Close flushes pending notes, removes the interceptor and closes the
// store.
func (s *Service) Close() error {
	_ = s.registry.Close()
	s.interceptor.Detach()
	s.interceptor.UninstallSlog()
	s.interceptor.Uninstall()
	return s.store.Close()
}

// PublishSnapshot pushes the current console window and injection state
// to the event feed.
func (s *Service) PublishSnapshot() {
	s.view.Refresh(s.buffer.Entries())
	s.events.Publish(sse.Event{Type: sse.EventInjectionChanged, Data: map[string]any{
		"enabled": s.patcher.Enabled(),
		"state":   s.patcher.State().String(),
	}})
}

func (s *Service) refresh() {
	if s.view.Visible() {
		s.view.Refresh(s.buffer.Entries())
	}
}

type nopEvents struct{}

func (nopEvents) ClientCount() int               { return 0 }
func (nopEvents) Publish(sse.Event)              {}
func (nopEvents) PublishNote(key string, _ any) {}
