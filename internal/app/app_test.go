package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

type harness struct {
	app   *App
	clock *session.ManualClock
	store *store.Store
	dir   string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, dir string) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(dir, "mudra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newHarness(t *testing.T, dir string) *harness {
	t.Helper()
	clock := session.NewManualClock(0)
	s := openStore(t, dir)
	a := New(Config{
		Store:     s,
		PluginDir: filepath.Join(dir, "plugins"),
		ScriptDir: filepath.Join(dir, "scripts"),
		Journal:   true,
		Logger:    quietLogger(),
		Clock:     clock,
		Scheduler: clock,
	})
	t.Cleanup(a.Stop)
	return &harness{app: a, clock: clock, store: s, dir: dir}
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, t.TempDir())
	require.NoError(t, h.app.Start())
	return h
}

// send moves the clock to at, submits ev and waits until the loop has
// handled it.
func (h *harness) send(t *testing.T, at time.Duration, ev session.Event) {
	t.Helper()
	h.clock.AdvanceTo(at)
	require.NoError(t, h.app.Submit(ev))
	h.sync(t)
}

func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, h.app.Do(func(*session.Controller) {}))
}

func drain(ch <-chan gesture.Result) []string {
	var keys []string
	for {
		select {
		case res, ok := <-ch:
			if !ok {
				return keys
			}
			keys = append(keys, res.Key())
		default:
			return keys
		}
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func TestApp_NotRunning(t *testing.T) {
	h := newHarness(t, t.TempDir())

	assert.ErrorIs(t, h.app.Submit(session.Down(0, gesture.Vec2{}, 1, 0)), ErrNotRunning)
	assert.ErrorIs(t, h.app.Do(func(*session.Controller) {}), ErrNotRunning)
	assert.ErrorIs(t, h.app.SetEnabled(false), ErrNotRunning)
	assert.False(t, h.app.Running())
	assert.False(t, h.app.Status().Running)

	require.NoError(t, h.app.Start())
	assert.True(t, h.app.Running())
	require.NoError(t, h.app.Start(), "second Start is a no-op")

	h.app.Stop()
	h.app.Stop()
	assert.ErrorIs(t, h.app.Submit(session.Up(0, 0)), ErrNotRunning)
}

func TestApp_TapIsBroadcast(t *testing.T) {
	h := startHarness(t)
	results, cancel := h.app.Subscribe()
	defer cancel()

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 100, Y: 100}, 1, 0))
	h.send(t, ms(80), session.Up(1, 0))

	assert.Equal(t, []string{"tap"}, drain(results))
	st := h.app.Status()
	assert.Equal(t, "tap", st.LastGesture)
	assert.True(t, st.Running)
	assert.Zero(t, st.ActiveCount)
}

func TestApp_SubmitUsesAppClock(t *testing.T) {
	h := startHarness(t)
	results, cancel := h.app.Subscribe()
	defer cancel()

	// client timestamps are ignored, so a bogus one cannot turn a tap into
	// a long press
	h.send(t, ms(1000), session.Down(1, gesture.Vec2{X: 10, Y: 10}, 1, 0))
	h.send(t, ms(1050), session.Up(1, time.Hour))

	assert.Equal(t, []string{"tap"}, drain(results))
}

func TestApp_LongPressTimerRunsOnLoop(t *testing.T) {
	h := startHarness(t)
	results, cancel := h.app.Subscribe()
	defer cancel()

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 50, Y: 50}, 1, 0))
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.AdvanceTo(ms(500))
	h.sync(t)
	assert.Equal(t, []string{"long_press"}, drain(results))

	h.send(t, ms(900), session.Up(1, 0))
	assert.Empty(t, drain(results), "long press fires once")
}

func TestApp_JournalsGestures(t *testing.T) {
	h := startHarness(t)

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 10, Y: 10}, 1, 0))
	h.send(t, ms(50), session.Up(1, 0))
	h.send(t, ms(2000), session.Down(2, gesture.Vec2{X: 300, Y: 300}, 1, 0))
	h.send(t, ms(2050), session.Up(2, 0))
	h.app.Stop()

	n, err := h.store.Events().CountBySession(h.app.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := h.store.Events().Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "tap", events[0].Gesture)
	assert.Equal(t, h.app.SessionID(), events[0].SessionID)
}

func TestApp_SubscriptionClosedOnStop(t *testing.T) {
	h := startHarness(t)
	results, _ := h.app.Subscribe()
	h.app.Stop()

	_, ok := <-results
	assert.False(t, ok)
}

func TestApp_SetConfigPersists(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	require.NoError(t, h.app.Start())

	cfg := gesture.DefaultConfig()
	cfg.LongPressTime = 800 * time.Millisecond
	cfg.MinSwipeDistance = 120
	require.NoError(t, h.app.SetConfig(cfg))

	got, err := h.app.Config()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	bad := cfg
	bad.MaxTouchPoints = 0
	err = h.app.SetConfig(bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	got, err = h.app.Config()
	require.NoError(t, err)
	assert.Equal(t, cfg, got, "rejected config leaves the old one active")
	h.app.Stop()

	restored := New(Config{Store: h.store, Logger: quietLogger(), Clock: session.NewManualClock(0), Scheduler: session.NewManualClock(0)})
	require.NoError(t, restored.Start())
	defer restored.Stop()

	got, err = restored.Config()
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, got.LongPressTime)
	assert.Equal(t, 120.0, got.MinSwipeDistance)
}

func TestApp_FlagsPersistAndReset(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	require.NoError(t, h.app.Start())

	require.NoError(t, h.app.SetEnabled(false))
	require.NoError(t, h.app.SetShowFeedback(true))
	st := h.app.Status()
	assert.False(t, st.Enabled)
	assert.True(t, st.ShowFeedback)

	results, cancel := h.app.Subscribe()
	defer cancel()
	h.send(t, ms(0), session.Down(1, gesture.Vec2{}, 1, 0))
	h.send(t, ms(40), session.Up(1, 0))
	assert.Empty(t, drain(results), "disabled session emits nothing")
	h.app.Stop()

	again := New(Config{Store: h.store, Logger: quietLogger(), Clock: session.NewManualClock(0), Scheduler: session.NewManualClock(0)})
	require.NoError(t, again.Start())
	defer again.Stop()

	st = again.Status()
	assert.False(t, st.Enabled)
	assert.True(t, st.ShowFeedback)

	require.NoError(t, again.Reset())
	st = again.Status()
	assert.True(t, st.Enabled)
	assert.False(t, st.ShowFeedback)

	v, err := h.store.Settings().Get(store.SettingEnabled)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func lineSample(t *testing.T) json.RawMessage {
	t.Helper()
	path := make([]gesture.PathPoint, 10)
	for i := range path {
		path[i] = gesture.PathPoint{X: float64(i * 10), Y: 0, Timestamp: int64(i * 50)}
	}
	raw, err := json.Marshal(gesture.StrokeSample{Path: path, Timestamp: 1})
	require.NoError(t, err)
	return raw
}

func TestApp_TrainedStrokeIsRecognized(t *testing.T) {
	h := startHarness(t)

	st := &store.Stroke{Name: "flat"}
	require.NoError(t, h.store.Strokes().Create(st))

	path, err := h.app.TrainStroke(st.ID, []json.RawMessage{lineSample(t), lineSample(t)})
	require.NoError(t, err)
	assert.Len(t, path, 10)
	assert.Equal(t, 1, h.app.Matcher().Len())

	samples, err := h.store.Samples().GetByStrokeID(st.ID)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	// a fresh app picks the template up from the store
	other := New(Config{Store: h.store, Logger: quietLogger()})
	require.NoError(t, other.LoadStrokes())
	assert.Equal(t, 1, other.Matcher().Len())

	results, cancel := h.app.Subscribe()
	defer cancel()

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 0, Y: 0}, 1, 0))
	for i := 1; i < 10; i++ {
		h.send(t, ms(i*50), session.Move(1, gesture.Vec2{X: float64(i * 10), Y: 0}, 1, 0))
	}
	h.send(t, ms(450), session.Up(1, 0))

	keys := drain(results)
	require.NotEmpty(t, keys)
	assert.Equal(t, "custom:flat", keys[len(keys)-1])
	assert.NotContains(t, keys, "swipe_right", "too slow to swipe")
}

func TestApp_TrainStrokeErrors(t *testing.T) {
	h := startHarness(t)

	_, err := h.app.TrainStroke("missing", []json.RawMessage{lineSample(t)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.app.TrainStroke("missing", nil)
	assert.Error(t, err)

	bare := New(Config{Logger: quietLogger()})
	_, err = bare.TrainStroke("x", []json.RawMessage{lineSample(t)})
	assert.ErrorIs(t, err, ErrNoStore)
}

const holdScript = `
function recognize(h)
  if h.phase ~= "up" then return nil end
  local p = h.pointers[1]
  if #p.samples >= 3 then
    return {name = "three_step", confidence = 0.5}
  end
  return nil
end
`

func TestApp_LoadScripts(t *testing.T) {
	h := startHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Join(h.dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "scripts", "three_step.lua"), []byte(holdScript), 0o644))

	require.NoError(t, h.app.LoadScripts())
	assert.Equal(t, 1, h.app.Status().Scripts)

	results, cancel := h.app.Subscribe()
	defer cancel()

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 0, Y: 0}, 1, 0))
	h.send(t, ms(400), session.Move(1, gesture.Vec2{X: 0, Y: 20}, 1, 0))
	h.send(t, ms(800), session.Move(1, gesture.Vec2{X: 0, Y: 40}, 1, 0))
	h.send(t, ms(1200), session.Up(1, 0))

	assert.Contains(t, drain(results), "custom:three_step")

	// reloading replaces instead of stacking
	require.NoError(t, h.app.LoadScripts())
	assert.Equal(t, 1, h.app.Status().Scripts)
}

func TestApp_ExecutesBoundAction(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell plugins need a POSIX shell")
	}

	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "plugins", "recorder")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.json"),
		[]byte(`{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["record"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "run.sh"),
		[]byte("#!/bin/sh\ncat > request.tmp && mv request.tmp request.json\necho '{\"success\":true}'\n"), 0o755))

	h := newHarness(t, dir)
	require.NoError(t, h.app.DiscoverPlugins())
	require.NoError(t, h.store.Actions().Create(&store.Action{
		Gesture:    "tap",
		PluginName: "recorder",
		ActionName: "record",
		Config:     json.RawMessage(`{"note":"hi"}`),
		Enabled:    true,
	}))
	require.NoError(t, h.app.Start())

	h.send(t, ms(0), session.Down(1, gesture.Vec2{X: 5, Y: 5}, 1, 0))
	h.send(t, ms(30), session.Up(1, 0))

	// Stop cancels running actions, so wait for the plugin to record first
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(pluginDir, "request.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	h.app.Stop()

	data, err := os.ReadFile(filepath.Join(pluginDir, "request.json"))
	require.NoError(t, err)

	var req struct {
		Action  string          `json:"action"`
		Gesture string          `json:"gesture"`
		Config  json.RawMessage `json:"config"`
	}
	require.NoError(t, json.Unmarshal(data, &req), fmt.Sprintf("request %q", data))
	assert.Equal(t, "record", req.Action)
	assert.Equal(t, "tap", req.Gesture)
	assert.JSONEq(t, `{"note":"hi"}`, string(req.Config))
}
