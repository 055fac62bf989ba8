package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/playtrace/internal/apperr"
	"github.com/starford/playtrace/internal/checksum"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/hub"
	"github.com/starford/playtrace/internal/transfer"
)

// RelayOriginHeader carries the origin of a forwarded window message.
const RelayOriginHeader = "X-Relay-Origin"

const maxRelayBytes = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	svc *hub.Service
	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(svc *hub.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// ListConsole handles GET /api/console.
//
//	@Summary		List captured console entries, oldest first
//	@Tags			console
//	@Produce		json
//	@Param			level	query		string	false	"Only entries of this level"	Enums(log, info, warn, error, debug)
//	@Param			limit	query		int		false	"Newest N entries"
//	@Success		200		{object}	ConsoleResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/console [get]
func (h *Handler) ListConsole(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level, ok := parseOptionalLevel(q.Get("level"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown level"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	buf := h.svc.Buffer()
	writeJSON(w, http.StatusOK, ConsoleResponse{
		Entries:  h.svc.Tail(level, limit),
		Total:    buf.Len(),
		Capacity: buf.Capacity(),
	})
}

// WriteConsole handles POST /api/console.
//
//	@Summary		Log a line through the captured console
//	@Tags			console
//	@Accept			json
//	@Param			body	body	WriteConsoleRequest	true	"Line to log"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/console [post]
func (h *Handler) WriteConsole(w http.ResponseWriter, r *http.Request) {
	var req WriteConsoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	level := console.LevelLog
	if req.Level != "" {
		var ok bool
		if level, ok = console.ParseLevel(req.Level); !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown level"))
			return
		}
	}
	h.svc.Log(level, req.Message)
	w.WriteHeader(http.StatusNoContent)
}

// ClearConsole handles DELETE /api/console.
//
//	@Summary		Clear the console buffer
//	@Tags			console
//	@Success		204
//	@Security		BearerAuth
//	@Router			/console [delete]
func (h *Handler) ClearConsole(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

// ConsoleView handles GET /api/console/view.
func (h *Handler) ConsoleView(w http.ResponseWriter, _ *http.Request) {
	v := h.svc.View()
	writeJSON(w, http.StatusOK, ConsoleViewResponse{
		Entries: v.Select(h.svc.Buffer().Entries()),
		Filter:  string(v.Filter()),
		Window:  v.Window(),
	})
}

// SetConsoleFilter handles PUT /api/console/filter.
func (h *Handler) SetConsoleFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	level, ok := parseOptionalLevel(req.Level)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown level"))
		return
	}
	v := h.svc.View()
	v.SetFilter(level)
	if v.Visible() {
		v.Refresh(h.svc.Buffer().Entries())
	}
	h.ConsoleView(w, r)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List every note, sorted by key
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	reg := h.svc.Notes()
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: reg.List(), Active: reg.Active()})
}

// NoteCandidates handles GET /api/notes/candidates.
func (h *Handler) NoteCandidates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CandidatesResponse{Candidates: h.svc.Notes().Candidates()})
}

// GetNote handles GET /api/notes/{key}.
//
//	@Summary		Get the note filed under a key
//	@Tags			notes
//	@Produce		json
//	@Param			key	path		string	true	"Note key"
//	@Success		200	{object}	NoteRecord
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{key} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.svc.Notes().Get(chi.URLParam(r, "key"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateNote handles PUT /api/notes/{key}.
//
//	@Summary		Select a key and replace its note text
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string				true	"Note key"
//	@Param			body	body		UpdateNoteRequest	true	"New text"
//	@Success		200		{object}	NoteRecord
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{key} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Notes().Update(chi.URLParam(r, "key"), req.Text)
	if err != nil {
		h.noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SelectNote handles POST /api/notes/{key}/select.
func (h *Handler) SelectNote(w http.ResponseWriter, r *http.Request) {
	h.svc.Notes().Select(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// EditActiveNote handles PUT /api/active-note.
func (h *Handler) EditActiveNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Notes().Edit(req.Text)
	if err != nil {
		h.noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) noteError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrNoActiveKey) {
		writeJSON(w, http.StatusConflict, errorBody("no note selected"))
		return
	}
	slog.Error("note edit failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// GetInjection handles GET /api/injection.
func (h *Handler) GetInjection(w http.ResponseWriter, _ *http.Request) {
	p := h.svc.Patcher()
	writeJSON(w, http.StatusOK, InjectionResponse{Enabled: p.Enabled(), State: p.State().String()})
}

// SetInjection handles PUT /api/injection.
//
//	@Summary		Enable or disable agent injection into game windows
//	@Tags			injection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InjectionRequest	true	"Desired flag"
//	@Success		200		{object}	InjectionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/injection [put]
func (h *Handler) SetInjection(w http.ResponseWriter, r *http.Request) {
	var req InjectionRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("enabled is required"))
		return
	}
	state := h.svc.SetInjection(*req.Enabled)
	writeJSON(w, http.StatusOK, InjectionResponse{Enabled: *req.Enabled, State: state.String()})
}

// Relay handles POST /api/relay. The hub page forwards every window
// message here; anything that is not a valid agent message is dropped and
// the response never tells the difference.
func (h *Handler) Relay(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRelayBytes))
	if err == nil {
		origin := r.Header.Get(RelayOriginHeader)
		if origin == "" {
			origin = r.Header.Get("Origin")
		}
		h.svc.Relay().Receive(origin, data)
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListGames handles GET /api/games.
func (h *Handler) ListGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, GamesResponse{Games: h.svc.Catalog().Items()})
}

// Play handles GET /api/play/{id}. It returns the game window document,
// carrying the capture agent when injection is enabled.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	autoplay, _ := strconv.ParseBool(r.URL.Query().Get("autoplay"))
	doc, err := h.svc.Play(chi.URLParam(r, "id"), autoplay)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownGame):
			writeJSON(w, http.StatusNotFound, errorBody("unknown game"))
		case errors.Is(err, apperr.ErrFactoryMissing):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("window factory not registered"))
		default:
			slog.Error("play failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Export handles GET /api/export.
//
//	@Summary		Download notes and console logs as one JSON file
//	@Tags			transfer
//	@Produce		json
//	@Success		200
//	@Success		304
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	doc := h.svc.Export(now)

	etag, err := exportETag(doc)
	if err != nil {
		slog.Error("export checksum failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var body bytes.Buffer
	if err := transfer.Encode(&body, doc); err != nil {
		slog.Error("export encode failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="playtrace-export-%s.json"`, now.UTC().Format("20060102-150405")))
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}

// exportETag hashes the exported content, ignoring the export time.
func exportETag(doc transfer.Document) (string, error) {
	doc.ExportedAt = ""
	return checksum.ETag(doc)
}

// Import handles POST /api/import.
//
//	@Summary		Merge notes and replace console logs from an export file
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.ErrMalformedImport.Error()))
		return
	}
	if err := h.svc.Import(data); err != nil {
		if errors.Is(err, apperr.ErrMalformedImport) {
			writeJSON(w, http.StatusBadRequest, errorBody(apperr.ErrMalformedImport.Error()))
			return
		}
		slog.Error("import failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Notes:       h.svc.Notes().Len(),
		ConsoleLogs: h.svc.Buffer().Len(),
	})
}

// ClearAll handles POST /api/clear.
func (h *Handler) ClearAll(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func parseOptionalLevel(s string) (console.Level, bool) {
	if s == "" {
		return "", true
	}
	return console.ParseLevel(s)
}
