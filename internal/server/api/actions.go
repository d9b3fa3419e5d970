package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginResolver finds the plugin serving an action. *plugin.Manager
// implements it.
type PluginResolver interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// ActionHandler handles HTTP requests for action resources.
type ActionHandler struct {
	store   *store.Store
	plugins PluginResolver
}

// NewActionHandler creates a new ActionHandler. When plugins is non-nil,
// bindings to unknown plugins or actions are rejected.
func NewActionHandler(s *store.Store, plugins PluginResolver) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/actions or /api/actions/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/actions")
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

type createActionRequest struct {
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
}

type updateActionRequest struct {
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		Gesture:    a.Gesture,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(timeLayout),
	}
}

// validGestureKey accepts a built-in kind name such as "swipe_left" or a
// named custom gesture "custom:<name>".
func validGestureKey(key string) bool {
	if name, ok := strings.CutPrefix(key, "custom:"); ok {
		return validStrokeName(name)
	}
	kind, err := gesture.ParseKind(key)
	return err == nil && kind != gesture.KindCustom
}

// checkPlugin writes a 400 and returns false when the binding names a plugin
// action that is not installed.
func (h *ActionHandler) checkPlugin(w http.ResponseWriter, pluginName, actionName string) bool {
	if h.plugins == nil {
		return true
	}
	_, err := h.plugins.Resolve(pluginName, actionName)
	switch {
	case err == nil:
		return true
	case errors.Is(err, plugin.ErrPluginNotFound):
		writeError(w, http.StatusBadRequest, "Plugin not found")
	case errors.Is(err, plugin.ErrActionNotSupported):
		writeError(w, http.StatusBadRequest, "Plugin does not support action")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to resolve plugin")
	}
	return false
}

// list handles GET /api/actions and returns all actions.
func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	actions, err := h.store.Actions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	response := listActionsResponse{
		Actions: make([]actionResponse, 0, len(actions)),
	}
	for _, a := range actions {
		response.Actions = append(response.Actions, toActionResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/actions/{id} and returns a single action.
func (h *ActionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// create handles POST /api/actions and binds a gesture key to a plugin action.
func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Gesture == "" {
		writeError(w, http.StatusBadRequest, "gesture is required")
		return
	}
	if !validGestureKey(req.Gesture) {
		writeError(w, http.StatusBadRequest, "Unknown gesture")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}
	if !h.checkPlugin(w, req.PluginName, req.ActionName) {
		return
	}

	existing, err := h.store.Actions().GetByGesture(req.Gesture)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing action")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Action already bound to this gesture")
		return
	}

	config := req.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	action := &store.Action{
		Gesture:    req.Gesture,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     config,
		Enabled:    true,
	}

	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}

	writeJSON(w, http.StatusCreated, toActionResponse(action))
}

// update handles PUT /api/actions/{id} and updates an existing action.
func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	var req updateActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Gesture != "" && req.Gesture != action.Gesture {
		if !validGestureKey(req.Gesture) {
			writeError(w, http.StatusBadRequest, "Unknown gesture")
			return
		}
		existing, err := h.store.Actions().GetByGesture(req.Gesture)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check existing action")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Action already bound to this gesture")
			return
		}
		action.Gesture = req.Gesture
	}
	if req.PluginName != "" {
		action.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		action.ActionName = req.ActionName
	}
	if (req.PluginName != "" || req.ActionName != "") && !h.checkPlugin(w, action.PluginName, action.ActionName) {
		return
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// delete handles DELETE /api/actions/{id} and removes an action.
func (h *ActionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Actions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
