// Package api provides the HTTP handlers of the mudra gesture service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// Trainer turns recorded samples into stroke templates and reloads the
// matcher. *app.App implements it.
type Trainer interface {
	TrainStroke(strokeID string, samples []json.RawMessage) ([]gesture.PathPoint, error)
	LoadStrokes() error
}

// StrokeHandler handles HTTP requests for stroke resources.
type StrokeHandler struct {
	store   *store.Store
	trainer Trainer
}

// NewStrokeHandler creates a new StrokeHandler. trainer may be nil, in which
// case edits are not pushed to a running matcher.
func NewStrokeHandler(s *store.Store, trainer Trainer) *StrokeHandler {
	return &StrokeHandler{store: s, trainer: trainer}
}

// ServeHTTP routes /api/strokes and /api/strokes/{id}.
func (h *StrokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/strokes")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type strokeRequest struct {
	Name      string  `json:"name"`
	Tolerance float64 `json:"tolerance"`
}

type strokeResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Gesture   string              `json:"gesture"`
	Tolerance float64             `json:"tolerance"`
	Samples   int                 `json:"samples"`
	Path      []gesture.PathPoint `json:"path,omitempty"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

type listStrokesResponse struct {
	Strokes []strokeResponse `json:"strokes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toStrokeResponse(st *store.Stroke) strokeResponse {
	return strokeResponse{
		ID:        st.ID,
		Name:      st.Name,
		Gesture:   "custom:" + st.Name,
		Tolerance: st.Tolerance,
		Samples:   st.Samples,
		CreatedAt: st.CreatedAt.Format(timeLayout),
		UpdatedAt: st.UpdatedAt.Format(timeLayout),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// validStrokeName reports whether name can follow "custom:" in a gesture key.
func validStrokeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ": \t\n/")
}

func (h *StrokeHandler) reload() {
	if h.trainer == nil {
		return
	}
	if err := h.trainer.LoadStrokes(); err != nil {
		slog.Error("failed to reload strokes", "error", err)
	}
}

// list handles GET /api/strokes.
func (h *StrokeHandler) list(w http.ResponseWriter, r *http.Request) {
	strokes, err := h.store.Strokes().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list strokes")
		return
	}

	response := listStrokesResponse{
		Strokes: make([]strokeResponse, 0, len(strokes)),
	}
	for _, st := range strokes {
		response.Strokes = append(response.Strokes, toStrokeResponse(st))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/strokes/{id} and includes the trained path.
func (h *StrokeHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.store.Strokes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get stroke")
		return
	}

	path, err := h.store.Strokes().GetPath(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get stroke path")
		return
	}

	resp := toStrokeResponse(st)
	resp.Path = path
	writeJSON(w, http.StatusOK, resp)
}

// create handles POST /api/strokes.
func (h *StrokeHandler) create(w http.ResponseWriter, r *http.Request) {
	var req strokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if !validStrokeName(req.Name) {
		writeError(w, http.StatusBadRequest, "Name must not contain spaces, colons or slashes")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must be positive")
		return
	}

	if _, err := h.store.Strokes().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Stroke name already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check stroke name")
		return
	}

	st := &store.Stroke{Name: req.Name, Tolerance: req.Tolerance}
	if err := h.store.Strokes().Create(st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create stroke")
		return
	}

	writeJSON(w, http.StatusCreated, toStrokeResponse(st))
}

// update handles PUT /api/strokes/{id}.
func (h *StrokeHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.store.Strokes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get stroke")
		return
	}

	var req strokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" && req.Name != st.Name {
		if !validStrokeName(req.Name) {
			writeError(w, http.StatusBadRequest, "Name must not contain spaces, colons or slashes")
			return
		}
		if _, err := h.store.Strokes().GetByName(req.Name); err == nil {
			writeError(w, http.StatusConflict, "Stroke name already exists")
			return
		}
		st.Name = req.Name
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must be positive")
		return
	}
	if req.Tolerance != 0 {
		st.Tolerance = req.Tolerance
	}

	if err := h.store.Strokes().Update(st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update stroke")
		return
	}
	h.reload()

	writeJSON(w, http.StatusOK, toStrokeResponse(st))
}

// delete handles DELETE /api/strokes/{id}.
func (h *StrokeHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Strokes().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete stroke")
		return
	}
	h.reload()

	w.WriteHeader(http.StatusNoContent)
}
