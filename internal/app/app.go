// Package app wires the gesture session to storage, scripts, plugins and
// subscribers. Every controller call happens on a single loop goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/script"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

const (
	// JournalRetention is how long journaled gestures are kept.
	JournalRetention = 30 * 24 * time.Hour
	// DefaultPluginTimeout bounds a plugin run when Config leaves it unset.
	DefaultPluginTimeout = 5 * time.Second

	eventBuffer  = 256
	resultBuffer = 256
	subBuffer    = 64
)

// ErrNotRunning is returned by loop operations before Start or after Stop.
var ErrNotRunning = errors.New("app is not running")

// Config holds configuration options for the application.
type Config struct {
	Store         *store.Store // optional; nothing is persisted without it
	PluginDir     string
	ScriptDir     string
	PluginTimeout time.Duration
	Engine        gesture.Config
	Journal       bool
	Logger        *slog.Logger

	// Clock and Scheduler default to the wall clock. A session.ManualClock
	// may be given as both for deterministic runs.
	Clock     session.Clock
	Scheduler session.Scheduler
}

// Status is a snapshot of the session flags.
type Status struct {
	Running      bool   `json:"running"`
	Enabled      bool   `json:"enabled"`
	ShowFeedback bool   `json:"show_feedback"`
	ActiveCount  int    `json:"active_count"`
	SessionID    string `json:"session_id"`
	LastGesture  string `json:"last_gesture,omitempty"`
	Strokes      int    `json:"strokes"`
	Scripts      int    `json:"scripts"`
}

// App is the gesture service: it owns the session controller and reacts to
// its results.
type App struct {
	config    Config
	log       *slog.Logger
	clock     session.Clock
	sessionID string

	ctrl          *session.Controller
	matcher       *gesture.StrokeMatcher
	scripts       []*script.Recognizer
	scriptHandles []session.Handle
	lastGesture   string

	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	events  chan func()
	results chan gesture.Result

	mu       sync.Mutex
	stopCh   chan struct{}
	loopDone chan struct{}
	workWG   sync.WaitGroup
	actions  sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	subs     map[int]chan gesture.Result
	nextSub  int
}

// New creates a new App instance with the given configuration.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PluginTimeout <= 0 {
		cfg.PluginTimeout = DefaultPluginTimeout
	}
	if cfg.Engine == (gesture.Config{}) {
		cfg.Engine = gesture.DefaultConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = session.NewSystemClock()
	}

	a := &App{
		config:     cfg,
		log:        cfg.Logger,
		clock:      cfg.Clock,
		sessionID:  store.NewSessionID(),
		matcher:    gesture.NewStrokeMatcher(),
		pluginMgr:  plugin.NewManager(cfg.PluginDir, plugin.WithLogger(cfg.Logger)),
		pluginExec: plugin.NewExecutor(cfg.PluginTimeout),
		subs:       make(map[int]chan gesture.Result),
	}

	var inner session.Scheduler = afterFuncScheduler{}
	if cfg.Scheduler != nil {
		inner = cfg.Scheduler
	}

	a.ctrl = session.New(cfg.Engine,
		session.WithClock(cfg.Clock),
		session.WithScheduler(loopScheduler{inner: inner, post: a.post}),
		session.WithLogger(cfg.Logger),
	)
	a.ctrl.AddCustomRecognizer(a.matcher)
	a.ctrl.OnAny(a.onResult)

	return a
}

// SessionID identifies this run in the gesture journal.
func (a *App) SessionID() string {
	return a.sessionID
}

// Clock returns the clock that stamps submitted events.
func (a *App) Clock() session.Clock {
	return a.clock
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Matcher returns the stroke template matcher.
func (a *App) Matcher() *gesture.StrokeMatcher {
	return a.matcher
}

// Start restores persisted settings and starts the event loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	a.restoreSettings()
	a.pruneJournal()

	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	a.events = make(chan func(), eventBuffer)
	a.results = make(chan gesture.Result, resultBuffer)
	a.ctx, a.cancel = context.WithCancel(context.Background())

	go a.loop(a.stopCh, a.loopDone, a.events)
	a.workWG.Add(1)
	go a.dispatch(a.results)

	a.log.Info("gesture session started", "session", a.sessionID)
	return nil
}

// Stop halts the event loop, finishes journaling queued results, cancels
// running plugin actions and closes every subscription.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	loopDone := a.loopDone
	a.mu.Unlock()

	<-loopDone
	close(a.results)
	a.workWG.Wait()
	a.cancel()
	a.actions.Wait()

	// the loop has exited, so the registry can be touched here
	for _, h := range a.scriptHandles {
		h.Remove()
	}
	for _, r := range a.scripts {
		r.Close()
	}
	a.scripts = nil
	a.scriptHandles = nil

	a.mu.Lock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.mu.Unlock()

	a.log.Info("gesture session stopped", "session", a.sessionID)
}

// Running reports whether the loop is running.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Submit stamps ev with the app clock and queues it for the controller.
func (a *App) Submit(ev session.Event) error {
	ev.Timestamp = a.clock.Now()
	if !a.post(func() { a.ctrl.Handle(ev) }) {
		return ErrNotRunning
	}
	return nil
}

// Do runs fn on the loop with the controller and waits for it to return.
// fn must not call back into the App's loop operations.
func (a *App) Do(fn func(c *session.Controller)) error {
	done := make(chan struct{})
	loopDone, ok := a.enqueue(func() {
		defer close(done)
		fn(a.ctrl)
	})
	if !ok {
		return ErrNotRunning
	}

	select {
	case <-done:
		return nil
	case <-loopDone:
		select {
		case <-done:
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// Status returns the current session flags.
func (a *App) Status() Status {
	st := Status{SessionID: a.sessionID, Strokes: a.matcher.Len()}
	err := a.Do(func(c *session.Controller) {
		st.Enabled = c.Enabled()
		st.ShowFeedback = c.ShowFeedback()
		st.ActiveCount = c.ActiveCount()
		st.LastGesture = a.lastGesture
		st.Scripts = len(a.scripts)
	})
	st.Running = err == nil
	return st
}

// Config returns the active engine configuration.
func (a *App) Config() (gesture.Config, error) {
	var cfg gesture.Config
	err := a.Do(func(c *session.Controller) { cfg = c.Config() })
	return cfg, err
}

// SetEnabled turns recognition on or off and persists the flag.
func (a *App) SetEnabled(enabled bool) error {
	if err := a.Do(func(c *session.Controller) { c.SetEnabled(enabled) }); err != nil {
		return err
	}
	a.saveSetting(store.SettingEnabled, strconv.FormatBool(enabled))
	a.log.Info("recognition toggled", "enabled", enabled)
	return nil
}

// SetShowFeedback sets the touch indicator flag and persists it.
func (a *App) SetShowFeedback(show bool) error {
	if err := a.Do(func(c *session.Controller) { c.SetShowFeedback(show) }); err != nil {
		return err
	}
	a.saveSetting(store.SettingFeedback, strconv.FormatBool(show))
	return nil
}

// SetConfig validates and applies cfg, then persists it.
func (a *App) SetConfig(cfg gesture.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	var applyErr error
	if err := a.Do(func(c *session.Controller) { applyErr = c.SetConfig(cfg) }); err != nil {
		return err
	}
	if applyErr != nil {
		return applyErr
	}

	if s := a.config.Store; s != nil {
		if err := s.Settings().SetJSON(store.SettingEngineConfig, config.FromEngine(cfg)); err != nil {
			a.log.Error("failed to persist engine config", "error", err)
		}
	}
	a.log.Info("engine config updated")
	return nil
}

// Reset drops the session state, re-enables recognition and hides feedback.
func (a *App) Reset() error {
	if err := a.Do(func(c *session.Controller) { c.Reset() }); err != nil {
		return err
	}
	a.saveSetting(store.SettingEnabled, "true")
	a.saveSetting(store.SettingFeedback, "false")
	return nil
}

// Subscribe returns a channel receiving every recognized gesture and a
// function ending the subscription. Results are dropped for a subscriber
// that falls behind. The channel is closed on cancel or Stop.
func (a *App) Subscribe() (<-chan gesture.Result, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan gesture.Result, subBuffer)
	a.subs[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			close(c)
			delete(a.subs, id)
		}
	}
}

func (a *App) broadcast(res gesture.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.subs {
		select {
		case ch <- res:
		default:
			a.log.Debug("subscriber behind, dropping result", "subscriber", id, "gesture", res.Key())
		}
	}
}

func (a *App) saveSetting(key, value string) {
	s := a.config.Store
	if s == nil {
		return
	}
	if err := s.Settings().Set(key, value); err != nil {
		a.log.Error("failed to persist setting", "key", key, "error", err)
	}
}

// restoreSettings applies persisted flags and engine config. It runs before
// the loop starts, so it may touch the controller directly.
func (a *App) restoreSettings() {
	s := a.config.Store
	if s == nil {
		return
	}

	var overrides config.EngineOverrides
	ok, err := s.Settings().GetJSON(store.SettingEngineConfig, &overrides)
	switch {
	case err != nil:
		a.log.Warn("ignoring stored engine config", "error", err)
	case ok:
		if err := a.ctrl.SetConfig(overrides.Apply(a.config.Engine)); err != nil {
			a.log.Warn("ignoring invalid stored engine config", "error", err)
		}
	}

	if v, err := s.Settings().Get(store.SettingEnabled); err == nil {
		if enabled, err := strconv.ParseBool(v); err == nil {
			a.ctrl.SetEnabled(enabled)
		}
	}
	if v, err := s.Settings().Get(store.SettingFeedback); err == nil {
		if show, err := strconv.ParseBool(v); err == nil {
			a.ctrl.SetShowFeedback(show)
		}
	}
}

func (a *App) pruneJournal() {
	s := a.config.Store
	if s == nil || !a.config.Journal {
		return
	}
	n, err := s.Events().Prune(time.Now().Add(-JournalRetention))
	if err != nil {
		a.log.Warn("failed to prune gesture journal", "error", err)
		return
	}
	if n > 0 {
		a.log.Info("pruned gesture journal", "events", n)
	}
}
