package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
)

// Service is the running gesture session the engine endpoints drive.
// *app.App implements it.
type Service interface {
	Status() app.Status
	Config() (gesture.Config, error)
	SetConfig(cfg gesture.Config) error
	SetEnabled(enabled bool) error
	SetShowFeedback(show bool) error
	Reset() error
}

// writeServiceError maps session errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, "Gesture session is not running")
	case errors.Is(err, config.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ConfigHandler serves /api/config: the engine tunables with durations in
// milliseconds.
type ConfigHandler struct {
	svc Service
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(svc Service) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// ServeHTTP handles GET and PUT. A PUT body may set any subset of the
// tunables; the rest keep their current values.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.svc.Config()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, config.FromEngine(cfg))
	case http.MethodPut:
		var overrides config.EngineOverrides
		if err := decodeJSON(r, &overrides); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		current, err := h.svc.Config()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		next := overrides.Apply(current)
		if err := h.svc.SetConfig(next); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, config.FromEngine(next))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// StateHandler serves /api/state: the session flags.
type StateHandler struct {
	svc Service
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(svc Service) *StateHandler {
	return &StateHandler{svc: svc}
}

type stateRequest struct {
	Enabled      *bool `json:"enabled"`
	ShowFeedback *bool `json:"show_feedback"`
	Reset        bool  `json:"reset"`
}

// ServeHTTP handles GET and POST. A POST with "reset": true resets the
// session before any flags in the same body are applied.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req stateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Reset {
			if err := h.svc.Reset(); err != nil {
				writeServiceError(w, err)
				return
			}
		}
		if req.Enabled != nil {
			if err := h.svc.SetEnabled(*req.Enabled); err != nil {
				writeServiceError(w, err)
				return
			}
		}
		if req.ShowFeedback != nil {
			if err := h.svc.SetShowFeedback(*req.ShowFeedback); err != nil {
				writeServiceError(w, err)
				return
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Status())
}
