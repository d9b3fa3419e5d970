// Package plugin discovers and runs the external action plugins bound to
// recognized gestures.
package plugin

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// GestureParams describes the gesture that triggered an action. Payload
// values arrive as JSON numbers, booleans, strings and {"x","y"} objects.
type GestureParams struct {
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	Confidence float64         `json:"confidence"`
	DurationMs float64         `json:"duration_ms"`
	Payload    gesture.Payload `json:"payload,omitempty"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  GestureParams   `json:"params"`
}

// NewRequest builds the request for running action in response to res.
// config is the action binding's configuration.
func NewRequest(action string, config json.RawMessage, res gesture.Result) *Request {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	return &Request{
		Action:  action,
		Gesture: res.Key(),
		Config:  config,
		Params: GestureParams{
			Kind:       res.Kind.String(),
			Key:        res.Key(),
			Confidence: res.Confidence,
			DurationMs: float64(res.Duration) / float64(time.Millisecond),
			Payload:    res.Payload,
		},
	}
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the plugin declares action.
func (p *Plugin) Supports(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}
