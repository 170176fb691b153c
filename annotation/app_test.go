package annotation

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"

	"github.com/lewtec/anotador/internal/capture"
	"github.com/lewtec/anotador/internal/domain"
	"github.com/lewtec/anotador/internal/repository"
)

type testEnv struct {
	db      *sql.DB
	config  *Config
	images  *ImageStore
	exports *ExportStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := repository.SetupTestDB(t)
	t.Cleanup(func() { repository.CleanupTestDB(t, db) })
	config := DefaultConfig()
	config.Viewport = ConfigViewport{Width: 800, Height: 600}
	config.Capture.Ignore = []string{"*/favicon.ico"}
	return &testEnv{
		db:      db,
		config:  config,
		images:  NewImageStore(memfs.New()),
		exports: NewExportStore(memfs.New()),
	}
}

// app returns a fresh app over the shared stores, with nothing in memory
func (env *testEnv) app() http.Handler {
	app := &AnnotatorApp{
		Config:   env.config,
		Sessions: NewSessionManager(env.config, repository.NewSessionRepository(env.db), env.images, env.exports),
	}
	return app.GetHTTPHandler()
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}
	return data
}

func createSession(t *testing.T, h http.Handler) domain.Session {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions", testPNG(t, 1000, 800))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /sessions status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[domain.Session](t, rec)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := env.app()

	s := createSession(t, h)
	if s.Width != 750 || s.Height != 600 {
		t.Errorf("session size = %dx%d, want 750x600", s.Width, s.Height)
	}
	if s.NativeWidth != 1000 || s.NativeHeight != 800 {
		t.Errorf("native size = %dx%d, want 1000x800", s.NativeWidth, s.NativeHeight)
	}
	base := "/sessions/" + s.ID

	rec := do(t, h, http.MethodPost, base+"/events", mustJSON(t, Event{Type: EventDrag, At: at(100, 100), To: at(200, 100)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST events status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[EventResponse](t, rec)
	if resp.Result.Prompt == nil {
		t.Fatal("Expected label prompt after drawing an arrow")
	}
	if len(resp.Session.Shapes) != 1 {
		t.Fatalf("len(Shapes) = %d, want 1", len(resp.Session.Shapes))
	}

	rec = do(t, h, http.MethodPost, base+"/events", mustJSON(t, Event{Type: EventLabel, Text: "submit is disabled"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST label status = %d, body = %s", rec.Code, rec.Body.String())
	}

	t.Run("annotations are persisted on every mutation", func(t *testing.T) {
		shapes, err := repository.NewSessionRepository(env.db).LoadAnnotations(t.Context(), s.ID)
		if err != nil {
			t.Fatalf("LoadAnnotations() error = %v", err)
		}
		if len(shapes) != 1 || shapes[0].LabelText() != "submit is disabled" {
			t.Errorf("stored shapes = %+v", shapes)
		}
	})

	t.Run("composite is served and exported", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, base+"/composite.png", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET composite status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %v, want image/png", ct)
		}
		img, err := png.Decode(rec.Body)
		if err != nil {
			t.Fatalf("failed to decode composite: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 750 || b.Dy() != 600 {
			t.Errorf("composite size = %dx%d, want 750x600", b.Dx(), b.Dy())
		}
		if _, err := env.exports.fs.Stat(s.ID + ".png"); err != nil {
			t.Errorf("expected export to be written: %v", err)
		}
	})

	t.Run("resumes from storage", func(t *testing.T) {
		fresh := env.app()
		rec := do(t, fresh, http.MethodGet, base, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET session status = %d, body = %s", rec.Code, rec.Body.String())
		}
		view := decode[SessionView](t, rec)
		if len(view.Shapes) != 1 || view.Shapes[0].LabelText() != "submit is disabled" {
			t.Errorf("resumed shapes = %+v", view.Shapes)
		}
		if view.State.Width != 750 || view.State.Height != 600 {
			t.Errorf("resumed size = %dx%d, want 750x600", view.State.Width, view.State.Height)
		}
		if view.State.UndoDepth != 0 {
			t.Errorf("resumed UndoDepth = %d, want 0", view.State.UndoDepth)
		}
	})

	t.Run("lists sessions", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/sessions", nil)
		sessions := decode[[]domain.Session](t, rec)
		if len(sessions) != 1 || sessions[0].ID != s.ID {
			t.Errorf("GET /sessions = %+v", sessions)
		}
	})

	t.Run("deletes", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, base, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("DELETE status = %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET after delete status = %d, want 404", rec.Code)
		}
		if rec := do(t, h, http.MethodDelete, base, nil); rec.Code != http.StatusNotFound {
			t.Errorf("second DELETE status = %d, want 404", rec.Code)
		}
	})
}

func TestSessionContext(t *testing.T) {
	env := newTestEnv(t)
	h := env.app()
	s := createSession(t, h)
	path := "/sessions/" + s.ID + "/context"

	push := ContextPush{
		Console: []capture.Entry{{Level: "error", Message: "TypeError: x is undefined"}},
		Network: []capture.Entry{
			{URL: "https://example.com/api", Status: 500},
			{URL: "https://example.com/ok", Status: 200},
			{URL: "https://example.com/favicon.ico", Status: 404},
		},
		Environment: map[string]string{"url": "https://example.com/checkout"},
	}
	rec := do(t, h, http.MethodPost, path, mustJSON(t, push))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST context status = %d, body = %s", rec.Code, rec.Body.String())
	}

	snap := decode[capture.Snapshot](t, do(t, h, http.MethodGet, path, nil))
	if len(snap.Console) != 1 || snap.Console[0].Level != capture.LevelError {
		t.Errorf("Console = %+v", snap.Console)
	}
	if len(snap.Network) != 1 || snap.Network[0].Status != 500 {
		t.Errorf("Network = %+v, want only the 500", snap.Network)
	}
	if snap.Environment["url"] != "https://example.com/checkout" {
		t.Errorf("Environment = %+v", snap.Environment)
	}
}

func TestHTTPErrors(t *testing.T) {
	env := newTestEnv(t)
	h := env.app()
	s := createSession(t, h)
	events := "/sessions/" + s.ID + "/events"

	testCases := []struct {
		name   string
		method string
		path   string
		body   []byte
		status int
	}{
		{"undecodable upload", http.MethodPost, "/sessions", []byte("not an image"), http.StatusUnprocessableEntity},
		{"unknown session", http.MethodGet, "/sessions/missing", nil, http.StatusNotFound},
		{"event on unknown session", http.MethodPost, "/sessions/missing/events", []byte(`{"type":"undo"}`), http.StatusNotFound},
		{"malformed event", http.MethodPost, events, []byte(`{"type":`), http.StatusBadRequest},
		{"unknown event", http.MethodPost, events, []byte(`{"type":"explode"}`), http.StatusBadRequest},
		{"color outside palette", http.MethodPost, events, []byte(`{"type":"color","color":"#010203"}`), http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/sessions", nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	env.config.Meta.Description = "Checkout bugs"
	h := env.app()
	createSession(t, h)

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Welcome to anotador</h1>") {
		t.Errorf("welcome page does not render markdown: %s", body)
	}
	if !strings.Contains(body, "Checkout bugs") || !strings.Contains(body, "composite.png") {
		t.Errorf("welcome page misses description or sessions: %s", body)
	}

	rec = do(t, h, http.MethodGet, "/help", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /help status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "#ef4444") {
		t.Error("help page does not list the palette")
	}

	if rec := do(t, h, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}
}

func TestUndoAfterEviction(t *testing.T) {
	env := newTestEnv(t)
	env.config.Server.LiveSessions = 1
	h := env.app()

	a := createSession(t, h)
	events := "/sessions/" + a.ID + "/events"
	do(t, h, http.MethodPost, events, mustJSON(t, Event{Type: EventTool, Tool: "rectangle"}))
	rec := do(t, h, http.MethodPost, events, mustJSON(t, Event{Type: EventDrag, At: at(10, 10), To: at(100, 100)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST drag status = %d, body = %s", rec.Code, rec.Body.String())
	}

	createSession(t, h)

	rec = do(t, h, http.MethodPost, events, []byte(`{"type":"undo"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST undo status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[EventResponse](t, rec)
	if !resp.Result.Changed {
		t.Error("undo after eviction did not change anything")
	}
	if len(resp.Session.Shapes) != 0 || resp.Session.State.UndoDepth != 0 || resp.Session.State.RedoDepth != 1 {
		t.Errorf("after undo: shapes = %d, undo = %d, redo = %d, want 0, 0, 1",
			len(resp.Session.Shapes), resp.Session.State.UndoDepth, resp.Session.State.RedoDepth)
	}
}
