package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/playtrace/internal/hub"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *hub.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// The bridge script is loaded by a plain <script> tag.
	r.Get("/bridge.js", ServeBridge)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Console.
		r.Get("/console", h.ListConsole)
		r.Post("/console", h.WriteConsole)
		r.Delete("/console", h.ClearConsole)
		r.Get("/console/view", h.ConsoleView)
		r.Put("/console/filter", h.SetConsoleFilter)

		// Notes.
		r.Get("/notes", h.ListNotes)
		r.Get("/notes/candidates", h.NoteCandidates)
		r.Get("/notes/{key}", h.GetNote)
		r.Put("/notes/{key}", h.UpdateNote)
		r.Post("/notes/{key}/select", h.SelectNote)
		r.Put("/active-note", h.EditActiveNote)

		// Injection.
		r.Get("/injection", h.GetInjection)
		r.Put("/injection", h.SetInjection)

		// Agent relay.
		r.Post("/relay", h.Relay)

		// Games.
		r.Get("/games", h.ListGames)
		r.Get("/play/{id}", h.Play)

		// Transfer.
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/clear", h.ClearAll)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
