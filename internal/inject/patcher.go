package inject

import (
	"strings"
	"sync"

	"github.com/starford/playtrace/internal/launcher"
	"github.com/starford/playtrace/internal/store"
)

// EnabledKey is the store key of the persisted injection flag.
const EnabledKey = "playtrace.injectionEnabled"

// Marker is the structural marker the agent is inserted before.
const Marker = "</body>"

// State is the patcher state.
type State int

const (
	Unpatched State = iota
	Patched
)

func (s State) String() string {
	if s == Patched {
		return "patched"
	}
	return "unpatched"
}

// Renderer produces the agent payload for a window title.
type Renderer interface {
	Render(title string) (string, error)
}

// Patcher decorates the factory published in a launcher.Slot so that every
// document it builds carries the capture agent.
//
// The factory found in the slot at the first successful patch is captured
// once; it is the only function ever wrapped or restored.
type Patcher struct {
	slot     *launcher.Slot
	store    *store.Store
	agent    Renderer
	onChange func(enabled bool, state State)

	mu       sync.Mutex
	enabled  bool
	original launcher.Factory
	state    State
}

// PatcherOption configures a Patcher.
type PatcherOption func(*Patcher)

// WithStateHook registers fn to be called after SetEnabled or a successful
// Ready.
func WithStateHook(fn func(enabled bool, state State)) PatcherOption {
	return func(p *Patcher) {
		p.onChange = fn
	}
}

// NewPatcher creates a patcher. The enabled flag is loaded from s, falling
// back to defaultEnabled. Nothing is patched until SetEnabled or Ready.
func NewPatcher(slot *launcher.Slot, s *store.Store, agent Renderer, defaultEnabled bool, opts ...PatcherOption) *Patcher {
	p := &Patcher{
		slot:    slot,
		store:   s,
		agent:   agent,
		enabled: store.Get(s, EnabledKey, defaultEnabled),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports the persisted injection flag.
func (p *Patcher) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// State reports whether the slot currently holds the wrapped factory.
func (p *Patcher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetEnabled persists the flag and patches or restores the factory. When
// enabling before the host registered its factory, the patch is deferred
// to the next Ready.
func (p *Patcher) SetEnabled(on bool) State {
	p.mu.Lock()
	p.enabled = on
	p.store.Set(EnabledKey, on)
	if on {
		p.patchLocked()
	} else {
		p.restoreLocked()
	}
	state := p.state
	p.mu.Unlock()

	p.notify(on, state)
	return state
}

// Ready is the lifecycle checkpoint at which a deferred patch is retried.
// It is a no-op while disabled, already patched, or the slot is empty.
func (p *Patcher) Ready() State {
	p.mu.Lock()
	enabled := p.enabled
	before := p.state
	if enabled {
		p.patchLocked()
	}
	state := p.state
	p.mu.Unlock()

	if state != before {
		p.notify(enabled, state)
	}
	return state
}

func (p *Patcher) patchLocked() {
	if p.state == Patched {
		return
	}
	if p.original == nil {
		fn := p.slot.Load()
		if fn == nil {
			return
		}
		p.original = fn
	}
	orig, agent := p.original, p.agent
	p.slot.Store(func(title, src string, autoplay bool) string {
		doc := orig(title, src, autoplay)
		payload, err := agent.Render(title)
		if err != nil {
			return doc
		}
		return Embed(doc, payload)
	})
	p.state = Patched
}

func (p *Patcher) restoreLocked() {
	if p.state != Patched {
		return
	}
	p.slot.Store(p.original)
	p.state = Unpatched
}

func (p *Patcher) notify(enabled bool, state State) {
	if p.onChange != nil {
		p.onChange(enabled, state)
	}
}

// Embed inserts payload immediately before the last Marker in doc. A
// document without the marker is returned unchanged.
func Embed(doc, payload string) string {
	i := strings.LastIndex(doc, Marker)
	if i < 0 {
		return doc
	}
	return doc[:i] + payload + doc[i:]
}
