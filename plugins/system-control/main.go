// Package main provides a system control plugin for macOS.
// It handles volume, brightness and media playback controls via AppleScript.
// The volume-scale action follows a pinch: zooming in raises the volume.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os/exec"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
)

// keyCodes are the System Events key codes of the media and brightness keys.
var keyCodes = map[string]int{
	"brightness-up":    144,
	"brightness-down":  145,
	"media-play-pause": 100,
	"media-next":       101,
	"media-prev":       98,
}

type volumeConfig struct {
	Step int `json:"step"`
}

func main() {
	plugin.Serve(handle)
}

func handle(req *plugin.Request) (json.RawMessage, error) {
	var cfg volumeConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Step <= 0 {
		cfg.Step = 10
	}

	switch req.Action {
	case "volume-up":
		return nil, changeVolume(cfg.Step)
	case "volume-down":
		return nil, changeVolume(-cfg.Step)
	case "volume-mute":
		return nil, runAppleScript(`set volume output muted (not (output muted of (get volume settings)))`)
	case "volume-scale":
		step := pinchStep(req.Params.Payload, cfg.Step)
		if step == 0 {
			return nil, fmt.Errorf("gesture %s carries no scale factor", req.Gesture)
		}
		if err := changeVolume(step); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"step": step})
	}

	code, ok := keyCodes[req.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
	return nil, runAppleScript(fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code))
}

// pinchStep scales the configured step by how far the pinch moved away from
// a scale factor of 1.
func pinchStep(p gesture.Payload, step int) int {
	scale, ok := p.Float(gesture.KeyScaleFactor)
	if !ok || scale <= 0 {
		return 0
	}
	return int(math.Round(math.Log2(scale) * float64(step)))
}

func changeVolume(delta int) error {
	return runAppleScript(fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, delta))
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
