package api

import (
	_ "embed"
	"net/http"
)

//go:embed bridge.js
var bridgeScript []byte

// ServeBridge handles GET /api/bridge.js, the hub-page script that forwards
// window messages to POST /api/relay.
func ServeBridge(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bridgeScript)
}
