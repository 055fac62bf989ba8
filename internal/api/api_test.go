package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/playtrace/internal/hub"
	"github.com/starford/playtrace/internal/testutil"
)

// testEnv sets up an in-memory hub and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*hub.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*hub.Service, http.Handler) {
	t.Helper()
	svc, err := hub.New(testutil.MemStore(), testutil.Games(), nil, hub.Settings{Output: io.Discard})
	if err != nil {
		t.Fatalf("hub.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConsoleWriteAndList(t *testing.T) {
	_, router := testEnv(t, "")

	for _, line := range []map[string]string{
		{"level": "info", "message": "boot"},
		{"level": "error", "message": "crash"},
		{"message": "plain"},
	} {
		if w := do(t, router, http.MethodPost, "/console", line); w.Code != http.StatusNoContent {
			t.Fatalf("write = %d, body = %s", w.Code, w.Body.String())
		}
	}

	w := do(t, router, http.MethodGet, "/console", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp ConsoleResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || resp.Capacity != 400 || len(resp.Entries) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Entries[2].Level != "log" || resp.Entries[2].Message != "plain" {
		t.Errorf("last entry = %+v", resp.Entries[2])
	}

	w = do(t, router, http.MethodGet, "/console?level=error&limit=5", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].Message != "crash" {
		t.Errorf("filtered = %+v", resp.Entries)
	}
}

func TestConsoleRejectsUnknownLevel(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/console", map[string]string{"level": "trace", "message": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("write = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/console?level=trace", nil); w.Code != http.StatusBadRequest {
		t.Errorf("list = %d, want 400", w.Code)
	}
}

func TestConsoleClear(t *testing.T) {
	svc, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/console", map[string]string{"message": "x"})
	if w := do(t, router, http.MethodDelete, "/console", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	if svc.Buffer().Len() != 0 {
		t.Error("buffer not cleared")
	}
}

func TestConsoleFilter(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/console", map[string]string{"level": "warn", "message": "w"})
	do(t, router, http.MethodPost, "/console", map[string]string{"level": "info", "message": "i"})

	w := do(t, router, http.MethodPut, "/console/filter", map[string]string{"level": "warn"})
	if w.Code != http.StatusOK {
		t.Fatalf("filter = %d", w.Code)
	}
	var view ConsoleViewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Filter != "warn" || len(view.Entries) != 1 || view.Window != 100 {
		t.Errorf("view = %+v", view)
	}

	if w := do(t, router, http.MethodPut, "/console/filter", map[string]string{"level": "loud"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter = %d", w.Code)
	}
}

func TestNotesLifecycle(t *testing.T) {
	svc, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/notes/asteroids", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get before edit = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes/asteroids/select", nil); w.Code != http.StatusNoContent {
		t.Fatalf("select = %d", w.Code)
	}
	if svc.Notes().Len() != 0 {
		t.Fatal("select created a record")
	}

	w := do(t, router, http.MethodPut, "/active-note", map[string]string{"text": "wave 3"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit active = %d", w.Code)
	}
	var rec NoteRecord
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Key != "asteroids" || rec.Title != "Asteroids" || rec.Text != "wave 3" {
		t.Errorf("record = %+v", rec)
	}

	w = do(t, router, http.MethodPut, "/notes/pong", map[string]string{"text": "11-3"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes", nil)
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Notes) != 2 || list.Active != "pong" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/notes/candidates", nil)
	var cands CandidatesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cands)
	if len(cands.Candidates) != 0 {
		t.Errorf("candidates = %+v", cands.Candidates)
	}
}

func TestEditActiveWithoutSelection(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPut, "/active-note", map[string]string{"text": "x"}); w.Code != http.StatusConflict {
		t.Errorf("edit = %d, want 409", w.Code)
	}
}

func TestInjectionToggle(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/injection", map[string]bool{"enabled": true})
	if w.Code != http.StatusOK {
		t.Fatalf("enable = %d", w.Code)
	}
	var inj InjectionResponse
	_ = json.Unmarshal(w.Body.Bytes(), &inj)
	if !inj.Enabled || inj.State != "patched" {
		t.Errorf("resp = %+v", inj)
	}

	w = do(t, router, http.MethodGet, "/play/asteroids?autoplay=true", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "data-playtrace-agent") {
		t.Errorf("play = %d, agent missing", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	do(t, router, http.MethodPut, "/injection", map[string]bool{"enabled": false})
	w = do(t, router, http.MethodGet, "/play/asteroids", nil)
	if strings.Contains(w.Body.String(), "data-playtrace-agent") {
		t.Error("agent present after disable")
	}

	if w := do(t, router, http.MethodPut, "/injection", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing flag = %d, want 400", w.Code)
	}
}

func TestPlayUnknownGame(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/play/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("play = %d, want 404", w.Code)
	}
}

func TestRelayAlwaysAccepted(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/relay",
		`{"type":"playtrace:log","level":"info","message":"hi","source":"Asteroids"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("relay = %d", w.Code)
	}
	entries := svc.Buffer().Entries()
	if len(entries) != 1 || entries[0].Message != "[Asteroids] hi" {
		t.Errorf("entries = %+v", entries)
	}

	w = do(t, router, http.MethodPost, "/relay", `{"type":"webpackHot"}`)
	if w.Code != http.StatusAccepted {
		t.Errorf("noise = %d, want 202", w.Code)
	}
	if svc.Buffer().Len() != 1 {
		t.Error("noise reached the buffer")
	}
}

func TestExportImport(t *testing.T) {
	svc, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/console", map[string]string{"message": "one"})
	do(t, router, http.MethodPut, "/notes/pong", map[string]string{"text": "x"})

	w := do(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" || !strings.Contains(w.Header().Get("Content-Disposition"), "playtrace-export-") {
		t.Errorf("headers = %v", w.Header())
	}
	exported := w.Body.Bytes()

	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional export = %d, want 304", rec.Code)
	}

	if w := do(t, router, http.MethodPost, "/clear", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	if svc.Buffer().Len() != 0 || svc.Notes().Len() != 0 {
		t.Fatal("clear left state")
	}

	w = do(t, router, http.MethodPost, "/import", string(exported))
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	var imp ImportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &imp)
	if imp.Notes != 1 || imp.ConsoleLogs != 1 {
		t.Errorf("import resp = %+v", imp)
	}
}

func TestImportMalformed(t *testing.T) {
	svc, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/console", map[string]string{"message": "keep"})

	w := do(t, router, http.MethodPost, "/import", `{"consoleLogs": [{"level": 3}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("import = %d, want 400", w.Code)
	}
	var e errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Error != "malformed import file" {
		t.Errorf("error = %q", e.Error)
	}
	if svc.Buffer().Len() != 1 {
		t.Error("rejected import touched the buffer")
	}
}

func TestGames(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/games", nil)
	var resp GamesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Games) != 2 || resp.Games[1].ID != "pong" {
		t.Errorf("games = %+v", resp.Games)
	}
}

func TestBridgeScriptIsPublic(t *testing.T) {
	_, router := testEnv(t, "secret")
	w := do(t, router, http.MethodGet, "/bridge.js", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bridge = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "X-Relay-Origin") {
		t.Error("bridge script does not forward the origin")
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/console", strings.NewReader(`{"message":"m"}`))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("authed write = %d, want 204", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGET(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/play/pong?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/clear?access_token=secret123", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE())
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
