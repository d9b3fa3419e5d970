package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newRunningApp(t *testing.T, s *store.Store) *app.App {
	t.Helper()
	a := app.New(app.Config{Store: s, Logger: quietLogger()})
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Run("without an app", func(t *testing.T) {
		rec := get(New(Config{Logger: quietLogger()}), "/api/health")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, ok := response["uptime"]; !ok {
			t.Error("expected 'uptime' field in response")
		}
		if _, ok := response["session_id"]; ok {
			t.Error("no session without an app")
		}
	})

	t.Run("reports the gesture session", func(t *testing.T) {
		a := newRunningApp(t, nil)
		rec := get(New(Config{App: a, Logger: quietLogger()}), "/api/health")

		var response struct {
			Running   bool   `json:"running"`
			SessionID string `json:"session_id"`
		}
		json.NewDecoder(rec.Body).Decode(&response)
		if !response.Running || response.SessionID != a.SessionID() {
			t.Errorf("unexpected health %+v, want session %s", response, a.SessionID())
		}
	})

	t.Run("only allows GET", func(t *testing.T) {
		s := New(Config{Logger: quietLogger()})
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_RoutesFollowConfig(t *testing.T) {
	st := newStore(t)
	withStore := New(Config{Store: st, Logger: quietLogger()})
	withApp := New(Config{App: newRunningApp(t, st), Logger: quietLogger()})
	storeless := New(Config{App: newRunningApp(t, nil), Logger: quietLogger()})
	bare := New(Config{Logger: quietLogger()})

	tests := []struct {
		name   string
		server *Server
		path   string
		want   int
	}{
		{"bare strokes", bare, "/api/strokes", http.StatusNotFound},
		{"bare state", bare, "/api/state", http.StatusNotFound},
		{"bare session", bare, "/api/session", http.StatusNotFound},

		{"store strokes", withStore, "/api/strokes", http.StatusOK},
		{"store actions", withStore, "/api/actions", http.StatusOK},
		{"store events", withStore, "/api/events", http.StatusOK},
		{"store unknown stroke", withStore, "/api/strokes/missing", http.StatusNotFound},
		{"store config", withStore, "/api/config", http.StatusNotFound},
		{"store plugins", withStore, "/api/plugins", http.StatusNotFound},

		{"app strokes", withApp, "/api/strokes", http.StatusOK},
		{"app config", withApp, "/api/config", http.StatusOK},
		{"app state", withApp, "/api/state", http.StatusOK},
		{"app plugins", withApp, "/api/plugins", http.StatusOK},
		// a plain GET is not a websocket handshake
		{"app session", withApp, "/api/session", http.StatusBadRequest},

		{"storeless app strokes", storeless, "/api/strokes", http.StatusNotFound},
		{"storeless app state", storeless, "/api/state", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(tt.server, tt.path); rec.Code != tt.want {
				t.Errorf("GET %s: expected status %d, got %d", tt.path, tt.want, rec.Code)
			}
		})
	}
}

func TestServer_StoreFromApp(t *testing.T) {
	st := newStore(t)
	s := New(Config{App: newRunningApp(t, st)})

	if s.config.Store != st {
		t.Error("server should use the app's store")
	}
}

func TestServer_StaticBesideAPI(t *testing.T) {
	tmpDir := t.TempDir()
	page := "<html><body>mudra</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(page), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Logger: quietLogger()})

	t.Run("serves the settings page at root", func(t *testing.T) {
		rec := get(s, "/")
		if rec.Code != http.StatusOK || rec.Body.String() != page {
			t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("health is not shadowed", func(t *testing.T) {
		rec := get(s, "/api/health")
		if ct := rec.Header().Get("Content-Type"); rec.Code != http.StatusOK || ct != "application/json" {
			t.Errorf("GET /api/health = %d %s", rec.Code, ct)
		}
	})

	t.Run("unconfigured API falls through to missing files", func(t *testing.T) {
		if rec := get(s, "/api/strokes"); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}
