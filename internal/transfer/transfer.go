// Package transfer serializes hub state to and from export files.
package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/notes"
)

// Version is the export format version written by Export.
const Version = 1

// Document is the export file layout.
type Document struct {
	ExportedAt  string                  `json:"exportedAt"`
	Version     int                     `json:"version"`
	Notes       map[string]notes.Record `json:"notes"`
	ConsoleLogs []console.Entry         `json:"consoleLogs"`
}

// NoteSource is the registry side of an export or import.
type NoteSource interface {
	Snapshot() map[string]notes.Record
	Merge(records map[string]notes.Record)
}

// LogSource is the console buffer side of an export or import.
type LogSource interface {
	Entries() []console.Entry
	Replace(entries []console.Entry)
}

// Export captures the current notes and console logs.
func Export(reg NoteSource, buf LogSource, now time.Time) Document {
	return Document{
		ExportedAt:  now.UTC().Format(time.RFC3339),
		Version:     Version,
		Notes:       reg.Snapshot(),
		ConsoleLogs: buf.Entries(),
	}
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Import is a validated import payload. A nil field was absent from the
// file and leaves that side of the hub untouched.
type Import struct {
	Notes       map[string]notes.Record
	ConsoleLogs []console.Entry
}

type wireImport struct {
	ExportedAt  *string                  `json:"exportedAt"`
	Version     *int                     `json:"version"`
	Notes       *map[string]notes.Record `json:"notes"`
	ConsoleLogs *[]console.Entry         `json:"consoleLogs"`
}

// Parse decodes and validates an import file. Every failure wraps
// apperr.ErrMalformedImport.
func Parse(data []byte) (*Import, error) {
	var w wireImport
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, malformed(err)
	}
	if w.Notes == nil && w.ConsoleLogs == nil {
		return nil, malformed(fmt.Errorf("neither notes nor consoleLogs present"))
	}
	if w.Version != nil {
		if err := validation.Validate(*w.Version, validation.Min(1)); err != nil {
			return nil, malformed(fmt.Errorf("version: %w", err))
		}
	}

	imp := &Import{}
	if w.Notes != nil {
		recs := make(map[string]notes.Record, len(*w.Notes))
		for key, rec := range *w.Notes {
			if err := validation.Validate(key, validation.Required); err != nil {
				return nil, malformed(fmt.Errorf("notes: key: %w", err))
			}
			if err := validateRecord(rec); err != nil {
				return nil, malformed(fmt.Errorf("notes[%s]: %w", key, err))
			}
			rec.Key = key
			recs[key] = rec
		}
		imp.Notes = recs
	}
	if w.ConsoleLogs != nil {
		logs := make([]console.Entry, len(*w.ConsoleLogs))
		for i, e := range *w.ConsoleLogs {
			if err := validateEntry(e); err != nil {
				return nil, malformed(fmt.Errorf("consoleLogs[%d]: %w", i, err))
			}
			logs[i] = e
		}
		imp.ConsoleLogs = logs
	}
	return imp, nil
}

// Apply merges notes by key and replaces the console log wholesale.
func Apply(imp *Import, reg NoteSource, buf LogSource) {
	if imp.Notes != nil {
		reg.Merge(imp.Notes)
	}
	if imp.ConsoleLogs != nil {
		buf.Replace(imp.ConsoleLogs)
	}
}

// Load parses data and applies it only when the whole file is valid.
func Load(data []byte, reg NoteSource, buf LogSource) error {
	imp, err := Parse(data)
	if err != nil {
		return err
	}
	Apply(imp, reg, buf)
	return nil
}

var levelValues = func() []any {
	out := make([]any, len(console.Levels))
	for i, l := range console.Levels {
		out[i] = l
	}
	return out
}()

func validateEntry(e console.Entry) error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Timestamp, validation.Min(int64(0))),
		validation.Field(&e.Level, validation.Required, validation.In(levelValues...)),
	)
}

func validateRecord(r notes.Record) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UpdatedAt, validation.Min(int64(0))),
	)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrMalformedImport, err)
}
