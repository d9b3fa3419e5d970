// Package main provides a keyboard plugin for macOS.
// It sends the keystroke configured on a gesture binding via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
)

// KeystrokeConfig is the binding configuration for keystroke and shortcut
// actions.
type KeystrokeConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	plugin.Serve(handle)
}

func handle(req *plugin.Request) (json.RawMessage, error) {
	switch req.Action {
	case "keystroke", "shortcut":
		var c KeystrokeConfig
		if err := json.Unmarshal(req.Config, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if c.Key == "" {
			return nil, fmt.Errorf("key is required")
		}
		if err := runAppleScript(buildKeystrokeScript(c.Key, c.Modifiers)); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"gesture": req.Gesture, "key": c.Key})
	default:
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}

	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`,
		key, strings.Join(appleModifiers, ", "))
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
