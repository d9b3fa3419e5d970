package app

import (
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
)

// onResult runs on the loop for every recognized gesture. Subscribers get
// the result at once; journaling and plugin actions happen on the dispatch
// goroutine so the loop never waits on I/O.
func (a *App) onResult(res gesture.Result) {
	a.lastGesture = res.Key()
	a.log.Debug("gesture recognized", "gesture", res.Key(), "confidence", res.Confidence)

	a.broadcast(res)

	select {
	case a.results <- res:
	default:
		a.log.Warn("dispatch queue full, dropping result", "gesture", res.Key())
	}
}

// dispatch journals results in order and starts their bound actions.
func (a *App) dispatch(results <-chan gesture.Result) {
	defer a.workWG.Done()
	for res := range results {
		a.journal(res)
		a.executeAction(res)
	}
}

func (a *App) journal(res gesture.Result) {
	s := a.config.Store
	if s == nil || !a.config.Journal {
		return
	}
	if _, err := s.Events().Append(a.sessionID, res); err != nil {
		a.log.Error("failed to journal gesture", "gesture", res.Key(), "error", err)
	}
}

// executeAction runs the plugin action bound to the result's gesture key, if
// any. Unbound gestures are skipped silently.
func (a *App) executeAction(res gesture.Result) {
	s := a.config.Store
	if s == nil {
		return
	}

	action, err := s.Actions().GetByGesture(res.Key())
	if err != nil {
		a.log.Error("failed to look up action", "gesture", res.Key(), "error", err)
		return
	}
	if action == nil || !action.Enabled {
		return
	}

	p, err := a.pluginMgr.Resolve(action.PluginName, action.ActionName)
	if err != nil {
		a.log.Warn("cannot run bound action", "gesture", res.Key(), "error", err)
		return
	}

	req := plugin.NewRequest(action.ActionName, action.Config, res)
	a.actions.Add(1)
	go func() {
		defer a.actions.Done()
		resp, err := a.pluginExec.Execute(a.ctx, p, req)
		if err != nil {
			a.log.Error("plugin execution failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
			return
		}
		if !resp.Success {
			a.log.Warn("plugin reported failure", "plugin", p.Manifest.Name, "action", req.Action, "error", resp.Error)
			return
		}
		a.log.Info("action executed", "gesture", req.Gesture, "plugin", p.Manifest.Name, "action", req.Action)
	}()
}
