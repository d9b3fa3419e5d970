// Package tray provides a system tray menu for the mudra gesture service.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

// Controls is the part of the app the menu drives.
type Controls interface {
	Status() app.Status
	SetEnabled(enabled bool) error
	SetShowFeedback(show bool) error
	Reset() error
}

// Tray represents the system tray application.
type Tray struct {
	controls   Controls
	onSettings func()
	onQuit     func()
	onError    func(error)
	mu         sync.RWMutex

	enabled  bool
	feedback bool
	last     string

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuFeedback    *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a new Tray reflecting the current flags of controls.
func New(controls Controls) *Tray {
	st := controls.Status()
	return &Tray{
		controls: controls,
		enabled:  st.Enabled,
		feedback: st.ShowFeedback,
		last:     st.LastGesture,
	}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// OnError sets the callback for failed menu actions.
func (t *Tray) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the menu and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Follow shows every result from results as the last gesture until the
// channel is closed.
func (t *Tray) Follow(results <-chan gesture.Result) {
	go func() {
		for res := range results {
			t.SetLastGesture(res.Key())
		}
	}()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(enabledTitle(t.enabled), "Toggle gesture recognition")
	t.menuFeedback = systray.AddMenuItem(feedbackTitle(t.feedback), "Show touch indicators")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last detected gesture")
	t.menuLastGesture.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuReset := systray.AddMenuItem("Reset", "Clear the session and restore defaults")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuFeedback.ClickedCh:
				t.handleFeedback()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips recognition on or off.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	enabled := !t.enabled
	t.mu.RUnlock()

	// Call into the app outside the lock to prevent deadlocks
	if err := t.controls.SetEnabled(enabled); err != nil {
		t.fail(err)
		return
	}

	t.mu.Lock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(enabledTitle(enabled))
	}
	t.mu.Unlock()
}

// handleFeedback flips the touch indicator flag.
func (t *Tray) handleFeedback() {
	t.mu.RLock()
	show := !t.feedback
	t.mu.RUnlock()

	if err := t.controls.SetShowFeedback(show); err != nil {
		t.fail(err)
		return
	}

	t.mu.Lock()
	t.feedback = show
	if t.menuFeedback != nil {
		t.menuFeedback.SetTitle(feedbackTitle(show))
	}
	t.mu.Unlock()
}

// handleReset clears the session and re-reads the flags.
func (t *Tray) handleReset() {
	if err := t.controls.Reset(); err != nil {
		t.fail(err)
		return
	}
	st := t.controls.Status()

	t.mu.Lock()
	t.enabled = st.Enabled
	t.feedback = st.ShowFeedback
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(enabledTitle(st.Enabled))
		t.menuFeedback.SetTitle(feedbackTitle(st.ShowFeedback))
	}
	t.mu.Unlock()
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func (t *Tray) fail(err error) {
	t.mu.RLock()
	callback := t.onError
	t.mu.RUnlock()

	if callback != nil {
		callback(err)
	}
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastTitle(name))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// ShowsFeedback returns the current feedback state.
func (t *Tray) ShowsFeedback() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.feedback
}

// LastGesture returns the gesture shown in the menu.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func enabledTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func feedbackTitle(show bool) string {
	if show {
		return "● Feedback"
	}
	return "○ Feedback"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
