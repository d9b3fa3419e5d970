package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/script"
	"github.com/ayusman/mudra/internal/session"
)

// ErrNoStore is returned by operations that need persistence when the app
// has no store.
var ErrNoStore = errors.New("no store configured")

// LoadStrokes loads the trained stroke templates from the store into the
// matcher, replacing any loaded before.
func (a *App) LoadStrokes() error {
	if a.config.Store == nil {
		return nil
	}

	templates, err := a.config.Store.Strokes().Templates()
	if err != nil {
		return fmt.Errorf("failed to load strokes: %w", err)
	}
	a.matcher.SetTemplates(templates)

	a.log.Info("loaded stroke templates", "count", len(templates))
	return nil
}

// TrainStroke stores samples for a stroke, averages them into its template
// path and reloads the matcher.
func (a *App) TrainStroke(strokeID string, samples []json.RawMessage) ([]gesture.PathPoint, error) {
	s := a.config.Store
	if s == nil {
		return nil, ErrNoStore
	}

	path, err := gesture.NewTrainer().TrainStroke(samples)
	if err != nil {
		return nil, err
	}
	if err := s.Samples().Create(strokeID, samples); err != nil {
		return nil, fmt.Errorf("failed to save samples: %w", err)
	}
	if err := s.Strokes().SetPath(strokeID, path); err != nil {
		return nil, fmt.Errorf("failed to save path: %w", err)
	}

	return path, a.LoadStrokes()
}

// LoadScripts loads every Lua recognizer in the script directory, replacing
// the ones loaded before. The loop must be running.
func (a *App) LoadScripts() error {
	if a.config.ScriptDir == "" {
		return nil
	}

	recs, err := script.LoadDir(a.config.ScriptDir, script.WithLogger(a.log))
	if err != nil {
		return err
	}

	err = a.Do(func(c *session.Controller) {
		for _, h := range a.scriptHandles {
			h.Remove()
		}
		for _, r := range a.scripts {
			r.Close()
		}
		a.scripts = recs
		a.scriptHandles = a.scriptHandles[:0]
		for _, r := range recs {
			a.scriptHandles = append(a.scriptHandles, c.AddCustomRecognizer(r))
		}
	})
	if err != nil {
		for _, r := range recs {
			r.Close()
		}
		return err
	}

	a.log.Info("loaded script recognizers", "count", len(recs))
	return nil
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	a.log.Info("discovered plugins", "count", len(a.pluginMgr.List()))
	return nil
}
