package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

const maxEventLimit = 1000

// EventHandler serves the gesture journal at /api/events.
type EventHandler struct {
	store *store.Store
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

type listEventsResponse struct {
	Events []*store.Event `json:"events"`
}

// ServeHTTP handles GET /api/events?limit=N, newest first.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.store.Events().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}

	writeJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

// PluginLister lists discovered plugins. *plugin.Manager implements it.
type PluginLister interface {
	List() []*plugin.Plugin
}

// PluginHandler serves the installed plugins at /api/plugins.
type PluginHandler struct {
	plugins PluginLister
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(plugins PluginLister) *PluginHandler {
	return &PluginHandler{plugins: plugins}
}

type listPluginsResponse struct {
	Plugins []plugin.Manifest `json:"plugins"`
}

// ServeHTTP handles GET /api/plugins.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := h.plugins.List()
	response := listPluginsResponse{Plugins: make([]plugin.Manifest, 0, len(plugins))}
	for _, p := range plugins {
		response.Plugins = append(response.Plugins, p.Manifest)
	}

	writeJSON(w, http.StatusOK, response)
}
