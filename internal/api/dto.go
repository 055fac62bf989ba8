package api

import (
	"github.com/starford/playtrace/internal/catalog"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/notes"
)

// LogEntry is a console entry (aliased from the domain layer).
type LogEntry = console.Entry

// NoteRecord is a note (aliased from the domain layer).
type NoteRecord = notes.Record

// Game is a catalog item (aliased from the domain layer).
type Game = catalog.Item

// WriteConsoleRequest is the request body for logging a line.
type WriteConsoleRequest struct {
	Level   string `json:"level" example:"info"`
	Message string `json:"message" example:"level loaded" validate:"required"`
}

// ConsoleResponse wraps a console listing.
type ConsoleResponse struct {
	Entries  []LogEntry `json:"entries" validate:"required"`
	Total    int        `json:"total" example:"120" validate:"required"`
	Capacity int        `json:"capacity" example:"400" validate:"required"`
}

// ConsoleViewResponse is the display window shown to the hub panel.
type ConsoleViewResponse struct {
	Entries []LogEntry `json:"entries" validate:"required"`
	Filter  string     `json:"filter" example:"error"`
	Window  int        `json:"window" example:"100" validate:"required"`
}

// FilterRequest sets the console display filter; an empty level clears it.
type FilterRequest struct {
	Level string `json:"level" example:"warn"`
}

// NoteListResponse wraps the note registry.
type NoteListResponse struct {
	Notes  []NoteRecord `json:"notes" validate:"required"`
	Active string       `json:"active" example:"asteroids"`
}

// CandidatesResponse lists catalog games without a note.
type CandidatesResponse struct {
	Candidates []notes.Entity `json:"candidates" validate:"required"`
}

// UpdateNoteRequest is the request body for editing a note.
type UpdateNoteRequest struct {
	Text string `json:"text" example:"Reached wave 7"`
}

// InjectionResponse reports the injection flag and patch state.
type InjectionResponse struct {
	Enabled bool   `json:"enabled" validate:"required"`
	State   string `json:"state" example:"patched" validate:"required"`
}

// InjectionRequest toggles injection.
type InjectionRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// GamesResponse wraps the catalog.
type GamesResponse struct {
	Games []Game `json:"games" validate:"required"`
}

// ImportResponse summarizes an applied import.
type ImportResponse struct {
	Notes       int `json:"notes" example:"3"`
	ConsoleLogs int `json:"consoleLogs" example:"250"`
}
