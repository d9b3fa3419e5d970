package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// serve sends a request with an optional JSON body through h.
func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// fakeTrainer records reloads and trains with the real trainer.
type fakeTrainer struct {
	store   *store.Store
	reloads int
}

func (f *fakeTrainer) TrainStroke(id string, samples []json.RawMessage) ([]gesture.PathPoint, error) {
	path, err := gesture.NewTrainer().TrainStroke(samples)
	if err != nil {
		return nil, err
	}
	if err := f.store.Samples().Create(id, samples); err != nil {
		return nil, err
	}
	if err := f.store.Strokes().SetPath(id, path); err != nil {
		return nil, err
	}
	f.reloads++
	return path, nil
}

func (f *fakeTrainer) LoadStrokes() error {
	f.reloads++
	return nil
}

func seedStroke(t *testing.T, s *store.Store, id, name string) {
	t.Helper()
	if err := s.Strokes().Create(&store.Stroke{ID: id, Name: name}); err != nil {
		t.Fatalf("failed to create stroke: %v", err)
	}
}

func TestStrokeHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewStrokeHandler(s, nil)
	seedStroke(t, s, "stroke-1", "zigzag")

	rec := serve(handler, http.MethodGet, "/api/strokes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listStrokesResponse
	decode(t, rec, &response)
	if len(response.Strokes) != 1 {
		t.Fatalf("expected 1 stroke, got %d", len(response.Strokes))
	}
	got := response.Strokes[0]
	if got.ID != "stroke-1" || got.Name != "zigzag" || got.Gesture != "custom:zigzag" {
		t.Errorf("unexpected stroke %+v", got)
	}
	if got.Tolerance != store.DefaultTolerance {
		t.Errorf("expected default tolerance, got %f", got.Tolerance)
	}
}

func TestStrokeHandler_Create(t *testing.T) {
	s := newTestStore(t)
	handler := NewStrokeHandler(s, nil)

	rec := serve(handler, http.MethodPost, "/api/strokes", `{"name":"circle","tolerance":0.2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response strokeResponse
	decode(t, rec, &response)
	if response.ID == "" {
		t.Error("expected non-empty ID in response")
	}
	if response.Name != "circle" || response.Tolerance != 0.2 {
		t.Errorf("unexpected stroke %+v", response)
	}

	created, err := s.Strokes().GetByID(response.ID)
	if err != nil {
		t.Fatalf("failed to get created stroke: %v", err)
	}
	if created.Name != "circle" {
		t.Errorf("stored stroke name mismatch: got %q", created.Name)
	}

	rec = serve(handler, http.MethodPost, "/api/strokes", `{"name":"circle"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate name: expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestStrokeHandler_Create_BadRequests(t *testing.T) {
	s := newTestStore(t)
	handler := NewStrokeHandler(s, nil)

	for name, body := range map[string]string{
		"invalid json":    "invalid json",
		"missing name":    `{"tolerance":0.1}`,
		"name with colon": `{"name":"a:b"}`,
		"negative tol":    `{"name":"x","tolerance":-1}`,
		"unknown field":   `{"name":"x","type":"static"}`,
	} {
		rec := serve(handler, http.MethodPost, "/api/strokes", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", name, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestStrokeHandler_GetIncludesPath(t *testing.T) {
	s := newTestStore(t)
	handler := NewStrokeHandler(s, nil)
	seedStroke(t, s, "stroke-1", "flick")

	path := []gesture.PathPoint{{X: 0, Y: 0}, {X: 5, Y: 5, Timestamp: 10}}
	if err := s.Strokes().SetPath("stroke-1", path); err != nil {
		t.Fatalf("failed to set path: %v", err)
	}

	rec := serve(handler, http.MethodGet, "/api/strokes/stroke-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response strokeResponse
	decode(t, rec, &response)
	if len(response.Path) != 2 || response.Path[1].X != 5 {
		t.Errorf("unexpected path %+v", response.Path)
	}

	rec = serve(handler, http.MethodGet, "/api/strokes/non-existent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestStrokeHandler_UpdateReloads(t *testing.T) {
	s := newTestStore(t)
	trainer := &fakeTrainer{store: s}
	handler := NewStrokeHandler(s, trainer)
	seedStroke(t, s, "stroke-1", "flick")
	seedStroke(t, s, "stroke-2", "hook")

	rec := serve(handler, http.MethodPut, "/api/strokes/stroke-1", `{"name":"flick_v2","tolerance":0.3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	updated, _ := s.Strokes().GetByID("stroke-1")
	if updated.Name != "flick_v2" || updated.Tolerance != 0.3 {
		t.Errorf("stroke not updated: %+v", updated)
	}
	if trainer.reloads != 1 {
		t.Errorf("expected matcher reload, got %d", trainer.reloads)
	}

	rec = serve(handler, http.MethodPut, "/api/strokes/stroke-1", `{"name":"hook"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("rename onto existing: expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	rec = serve(handler, http.MethodPut, "/api/strokes/non-existent", `{"name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestStrokeHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	trainer := &fakeTrainer{store: s}
	handler := NewStrokeHandler(s, trainer)
	seedStroke(t, s, "stroke-1", "flick")

	rec := serve(handler, http.MethodDelete, "/api/strokes/stroke-1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if trainer.reloads != 1 {
		t.Errorf("expected matcher reload, got %d", trainer.reloads)
	}

	rec = serve(handler, http.MethodGet, "/api/strokes/stroke-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d after delete, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/api/strokes/stroke-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestStrokeHandler_MethodNotAllowed(t *testing.T) {
	handler := NewStrokeHandler(newTestStore(t), nil)

	rec := serve(handler, http.MethodPatch, "/api/strokes", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

const lineSamples = `{"samples":[
  {"path":[{"x":0,"y":0,"timestamp":0},{"x":10,"y":0,"timestamp":50},{"x":20,"y":0,"timestamp":100}],"timestamp":1},
  {"path":[{"x":0,"y":2,"timestamp":0},{"x":10,"y":2,"timestamp":50},{"x":20,"y":2,"timestamp":100}],"timestamp":2}
]}`

func TestSamplesHandler_TrainAndList(t *testing.T) {
	s := newTestStore(t)
	trainer := &fakeTrainer{store: s}
	handler := NewSamplesHandler(s, trainer)
	seedStroke(t, s, "stroke-1", "line")

	rec := serve(handler, http.MethodPost, "/api/strokes/stroke-1/samples", lineSamples)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var trained trainResponse
	decode(t, rec, &trained)
	if trained.Samples != 2 || len(trained.Path) != 3 {
		t.Errorf("unexpected train response %+v", trained)
	}
	if trained.Path[1].Y != 1 {
		t.Errorf("expected averaged y=1, got %v", trained.Path[1].Y)
	}

	rec = serve(handler, http.MethodGet, "/api/strokes/stroke-1/samples", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var listed listSamplesResponse
	decode(t, rec, &listed)
	if len(listed.Samples) != 2 || listed.Samples[1].SampleIndex != 1 || listed.Samples[0].StrokeID != "stroke-1" {
		t.Errorf("unexpected samples %+v", listed.Samples)
	}
}

func TestSamplesHandler_Errors(t *testing.T) {
	s := newTestStore(t)
	handler := NewSamplesHandler(s, &fakeTrainer{store: s})
	seedStroke(t, s, "stroke-1", "line")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown stroke", http.MethodPost, "/api/strokes/nope/samples", lineSamples, http.StatusNotFound},
		{"list unknown stroke", http.MethodGet, "/api/strokes/nope/samples", "", http.StatusNotFound},
		{"no samples", http.MethodPost, "/api/strokes/stroke-1/samples", `{"samples":[]}`, http.StatusBadRequest},
		{"untrainable", http.MethodPost, "/api/strokes/stroke-1/samples", `{"samples":[{"path":[{"x":0,"y":0}]}]}`, http.StatusBadRequest},
		{"bad path", http.MethodGet, "/api/strokes/stroke-1/other", "", http.StatusNotFound},
		{"bad method", http.MethodDelete, "/api/strokes/stroke-1/samples", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(handler, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSamplesHandler_WithoutTrainer(t *testing.T) {
	s := newTestStore(t)
	handler := NewSamplesHandler(s, nil)
	seedStroke(t, s, "stroke-1", "line")

	rec := serve(handler, http.MethodPost, "/api/strokes/stroke-1/samples", lineSamples)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	st, _ := s.Strokes().GetByID("stroke-1")
	if st.Samples != 2 {
		t.Errorf("expected 2 stored samples, got %d", st.Samples)
	}
}
