// Package inject embeds a console capture agent into game windows.
package inject

import (
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"unicode"

	"github.com/starford/playtrace/internal/relay"
)

// DefaultAgentCapacity is the number of lines the in-window display keeps.
const DefaultAgentCapacity = 50

//go:embed agent.js.tmpl
var agentSource string

var agentTmpl = template.Must(template.New("agent").Parse(agentSource))

// Agent renders the capture script for one window.
type Agent struct {
	capacity int
	keyFor   func(title string) string
}

// NewAgent creates an agent renderer. keyFor maps a window title to the
// note key the agent files its note under; nil uses NoteKey.
func NewAgent(capacity int, keyFor func(title string) string) *Agent {
	if capacity <= 0 {
		capacity = DefaultAgentCapacity
	}
	if keyFor == nil {
		keyFor = NoteKey
	}
	return &Agent{capacity: capacity, keyFor: keyFor}
}

// Render returns the self-contained <script> element for a window titled
// title.
func (a *Agent) Render(title string) (string, error) {
	key := a.keyFor(title)
	data := struct {
		Title, NoteKey, StorageKey, LogType, NoteType string
		Capacity                                     int
	}{
		Title:      jsString(title),
		NoteKey:    jsString(key),
		StorageKey: jsString(StorageKey(key)),
		LogType:    jsString(relay.TypeLog),
		NoteType:   jsString(relay.TypeNote),
		Capacity:   a.capacity,
	}
	var b strings.Builder
	if err := agentTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// NoteKey derives a stable note key from a window title: lower-cased, with
// every run of non-alphanumerics collapsed to a single dash.
func NoteKey(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(b.String(), "-")
	if key == "" {
		return "untitled"
	}
	return key
}

// StorageKey is the window-local storage key for a note key.
func StorageKey(noteKey string) string {
	return "playtrace.agentNote." + noteKey
}

// jsString encodes s as a JavaScript string literal safe inside <script>.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
