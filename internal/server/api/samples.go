package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// SamplesHandler handles HTTP requests for stroke sample resources.
type SamplesHandler struct {
	store   *store.Store
	trainer Trainer
}

// NewSamplesHandler creates a new SamplesHandler. Posted samples are trained
// into the stroke's template by trainer.
func NewSamplesHandler(s *store.Store, trainer Trainer) *SamplesHandler {
	return &SamplesHandler{store: s, trainer: trainer}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/strokes/{id}/samples
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/strokes/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[0] == "" || parts[1] != "samples" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	strokeID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, strokeID)
	case http.MethodPost:
		h.create(w, r, strokeID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	StrokeID    string          `json:"stroke_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type trainResponse struct {
	Samples int                 `json:"samples"`
	Path    []gesture.PathPoint `json:"path"`
}

// list handles GET /api/strokes/{id}/samples
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request, strokeID string) {
	if _, err := h.store.Strokes().GetByID(strokeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify stroke")
		return
	}

	samples, err := h.store.Samples().GetByStrokeID(strokeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			StrokeID:    s.StrokeID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(timeLayout),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/strokes/{id}/samples. The samples replace the
// stroke's previous ones and are averaged into its template.
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request, strokeID string) {
	if _, err := h.store.Strokes().GetByID(strokeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify stroke")
		return
	}

	var req createSamplesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}

	if h.trainer == nil {
		if err := h.store.Samples().Create(strokeID, req.Samples); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save samples")
			return
		}
		writeJSON(w, http.StatusCreated, trainResponse{Samples: len(req.Samples)})
		return
	}

	path, err := h.trainer.TrainStroke(strokeID, req.Samples)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stroke not found")
			return
		}
		if errors.Is(err, gesture.ErrInvalidSamples) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to train stroke")
		return
	}

	writeJSON(w, http.StatusCreated, trainResponse{Samples: len(req.Samples), Path: path})
}
