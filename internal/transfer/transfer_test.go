package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/notes"
	"github.com/starford/playtrace/internal/testutil"
)

func seeded(t *testing.T) (*notes.Registry, *console.Buffer) {
	t.Helper()
	s := testutil.MemStore()
	buf := console.NewBuffer(s, 10)
	buf.Append(console.Entry{Timestamp: 1, Level: console.LevelLog, Message: "boot"})
	reg := notes.NewRegistry(s, nil)
	t.Cleanup(func() { _ = reg.Close() })
	reg.ApplyRemote("g1", "Asteroids", "level 2")
	return reg, buf
}

func TestExportEncode(t *testing.T) {
	reg, buf := seeded(t)
	doc := Export(reg, buf, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	var out bytes.Buffer
	if err := Encode(&out, doc); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out.Bytes(), &back); err != nil {
		t.Fatalf("exported file is not JSON: %v", err)
	}
	if back["exportedAt"] != "2024-05-01T12:00:00Z" || back["version"] != float64(1) {
		t.Errorf("header = %v / %v", back["exportedAt"], back["version"])
	}
	if _, ok := back["notes"].(map[string]any)["g1"]; !ok {
		t.Error("notes missing g1")
	}
	if logs := back["consoleLogs"].([]any); len(logs) != 1 {
		t.Errorf("consoleLogs = %v", logs)
	}
}

func TestExportThenImportRestores(t *testing.T) {
	reg, buf := seeded(t)
	var out bytes.Buffer
	_ = Encode(&out, Export(reg, buf, time.Now()))

	reg.Clear()
	buf.Clear()
	if err := Load(out.Bytes(), reg, buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec, ok := reg.Get("g1"); !ok || rec.Text != "level 2" {
		t.Errorf("note = %+v, %v", rec, ok)
	}
	if buf.Len() != 1 {
		t.Errorf("logs = %d", buf.Len())
	}
}

func TestImportMissingLogsKeepsBuffer(t *testing.T) {
	reg, buf := seeded(t)
	err := Load([]byte(`{"notes":{"g2":{"title":"Pong","text":"x","updatedAt":5}}}`), reg, buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Len() != 1 || buf.Entries()[0].Message != "boot" {
		t.Error("buffer changed by notes-only import")
	}
	if rec, _ := reg.Get("g2"); rec.Key != "g2" || rec.Title != "Pong" {
		t.Errorf("imported record = %+v", rec)
	}
	if _, ok := reg.Get("g1"); !ok {
		t.Error("merge dropped existing record")
	}
}

func TestImportMissingNotesKeepsRegistry(t *testing.T) {
	reg, buf := seeded(t)
	err := Load([]byte(`{"consoleLogs":[{"timestamp":9,"level":"warn","message":"a"},{"timestamp":10,"level":"info","message":"b"}]}`), reg, buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Len() != 1 {
		t.Error("registry changed by logs-only import")
	}
	entries := buf.Entries()
	if len(entries) != 2 || entries[0].Message != "a" {
		t.Errorf("logs not replaced wholesale: %+v", entries)
	}
}

func TestImportMalformedLeavesBoth(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"notes":`,
		"array":          `[]`,
		"empty object":   `{}`,
		"null fields":    `{"notes":null,"consoleLogs":null}`,
		"bad level":      `{"consoleLogs":[{"timestamp":1,"level":"trace","message":"m"}]}`,
		"mistyped logs":  `{"consoleLogs":"nope"}`,
		"empty note key": `{"notes":{"":{"text":"x"}}}`,
		"bad version":    `{"version":0,"notes":{}}`,
		"partly bad": `{"notes":{"g9":{"text":"x"}},
			"consoleLogs":[{"timestamp":-1,"level":"log","message":"m"}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			reg, buf := seeded(t)
			err := Load([]byte(in), reg, buf)
			if !errors.Is(err, apperr.ErrMalformedImport) {
				t.Fatalf("err = %v, want ErrMalformedImport", err)
			}
			if reg.Len() != 1 || buf.Len() != 1 {
				t.Error("state changed by rejected import")
			}
		})
	}
}

func TestImportRepairsRecordKeys(t *testing.T) {
	imp, err := Parse([]byte(`{"notes":{"g3":{"key":"other","title":"T","text":"x"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if imp.Notes["g3"].Key != "g3" {
		t.Errorf("key = %q", imp.Notes["g3"].Key)
	}
	if imp.ConsoleLogs != nil {
		t.Error("absent consoleLogs should stay nil")
	}
}
