// Package pad is a desktop touch pad for the gesture service: an Ebitengine
// window whose mouse and touch input is fed to an app.App. The app must use
// the pad's ManualClock as its Clock and Scheduler so that timers advance
// with the frames.
package pad

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

const (
	defaultWidth  = 960
	defaultHeight = 640
	dotSize       = 14
)

var background = color.RGBA{R: 0x1a, G: 0x1a, B: 0x26, A: 0xff}

// Config holds the window settings.
type Config struct {
	Title  string
	Width  int
	Height int
	Logger *slog.Logger
}

// Game implements ebiten.Game.
type Game struct {
	app      *app.App
	clock    *session.ManualClock
	src      Source
	cfg      Config
	log      *slog.Logger
	poller   Poller
	feedback Feedback

	results <-chan gesture.Result
	cancel  func()

	now    time.Duration
	status app.Status
	dot    *ebiten.Image
}

// New creates a pad driving a, which must be running on clock.
func New(a *app.App, clock *session.ManualClock, cfg Config) *Game {
	if cfg.Title == "" {
		cfg.Title = "mudra pad"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = defaultWidth, defaultHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	results, cancel := a.Subscribe()
	return &Game{
		app:     a,
		clock:   clock,
		src:     &ebitenSource{},
		cfg:     cfg,
		log:     cfg.Logger,
		results: results,
		cancel:  cancel,
		now:     clock.Now(),
	}
}

// Run opens the window and blocks until it is closed.
func Run(g *Game) error {
	defer g.cancel()
	ebiten.SetWindowTitle(g.cfg.Title)
	ebiten.SetWindowSize(g.cfg.Width, g.cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

// Update advances one tick.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if err := g.handleKeys(); err != nil {
		return err
	}
	return g.tick(time.Second/time.Duration(ebiten.TPS()), ebiten.IsFocused())
}

func (g *Game) handleKeys() error {
	var err error
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		err = g.app.SetEnabled(!g.status.Enabled)
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		err = g.app.SetShowFeedback(!g.status.ShowFeedback)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.poller.Release()
		g.feedback.Clear()
		err = g.app.Reset()
	}
	return err
}

// tick moves the clock by dt, submits the frame's pointer events and
// collects the gestures they produced. Without focus every pointer that is
// down is cancelled instead.
func (g *Game) tick(dt time.Duration, focused bool) error {
	g.now += dt
	g.clock.AdvanceTo(g.now)

	var events []session.Event
	if focused {
		events = g.poller.Poll(g.src, g.now)
	} else {
		events = g.poller.Release()
	}
	for _, ev := range events {
		if err := g.app.Submit(ev); err != nil {
			return fmt.Errorf("submit %s: %w", ev.Type, err)
		}
	}

	// Status waits on the loop, so every result of this frame has been
	// broadcast by the time it returns.
	g.status = g.app.Status()
	if !g.status.Running {
		return app.ErrNotRunning
	}
	g.drain()
	g.feedback.Update(float32(dt.Seconds()))
	return nil
}

func (g *Game) drain() {
	for {
		select {
		case res, ok := <-g.results:
			if !ok {
				return
			}
			g.log.Debug("pad gesture", "gesture", res.Key())
			if g.status.ShowFeedback {
				g.feedback.Add(res)
			}
		default:
			return
		}
	}
}

// Draw renders the pointers, the gesture markers and the status line.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	if g.dot == nil {
		g.dot = ebiten.NewImage(dotSize, dotSize)
		g.dot.Fill(color.White)
	}

	if g.status.ShowFeedback {
		for _, pos := range g.poller.Active() {
			g.drawDot(screen, pos, 1)
		}
		for _, m := range g.feedback.markers {
			g.drawDot(screen, m.pos, m.alpha)
			if m.alpha > 0.3 {
				ebitenutil.DebugPrintAt(screen, m.label, int(m.pos.X)+dotSize, int(m.pos.Y)-dotSize)
			}
		}
	}

	last := g.status.LastGesture
	if last == "" {
		last = "-"
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf(
		"enabled: %v  feedback: %v  pointers: %d  last: %s\n[E] enable  [F] feedback  [R] reset  [Esc] quit",
		g.status.Enabled, g.status.ShowFeedback, g.status.ActiveCount, last), 4, 4)
}

func (g *Game) drawDot(screen *ebiten.Image, pos gesture.Vec2, alpha float32) {
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(pos.X-dotSize/2, pos.Y-dotSize/2)
	op.ColorScale.ScaleAlpha(alpha)
	screen.DrawImage(g.dot, &op)
}

// Layout keeps a fixed logical size.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}
