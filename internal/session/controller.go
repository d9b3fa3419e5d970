// Package session turns a stream of pointer events into gesture results.
//
// A Controller owns every piece of mutable recognition state: the active
// pointers and their histories, the long-press and held-multi-touch timers,
// the last completed tap and the debounce anchors. It is not safe for
// concurrent use; hosts must deliver events, timer firings and administrative
// calls from one goroutine.
package session

import (
	"log/slog"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
)

const (
	// HeldMultiTouchDelay is how long two fingers must stay down before the
	// held multi-touch result is re-emitted.
	HeldMultiTouchDelay = 100 * time.Millisecond
	// DebounceWindow suppresses taps lifted shortly after a multi-finger
	// contact.
	DebounceWindow = 500 * time.Millisecond
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for debounce windows and long-press timing.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithScheduler sets the scheduler used for the long-press and held
// multi-touch timers.
func WithScheduler(s Scheduler) Option {
	return func(ctrl *Controller) { ctrl.sched = s }
}

// WithLogger sets the logger for rejected events and stale timers.
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) { ctrl.log = l }
}

type anchor struct {
	at  time.Duration
	set bool
}

func (a anchor) within(now, window time.Duration) bool {
	return a.set && now-a.at <= window
}

type longPressTimer struct {
	timer     Timer
	pointerID int
	gen       uint64
	armedAt   time.Duration
}

type heldTimer struct {
	timer Timer
	seq   uint64
}

// Controller is the gesture session state machine.
type Controller struct {
	cfg    gesture.Config
	engine *gesture.Engine
	clock  Clock
	sched  Scheduler
	log    *slog.Logger

	pointers *table
	nextGen  uint64

	enabled     bool
	feedback    bool
	previousTap *gesture.TouchPoint
	lastMulti   anchor
	lastTwo     anchor

	longPress *longPressTimer
	held      *heldTimer
	heldSeq   uint64

	reg   *registry
	busy  bool
	queue []func()

	// follow is the default clock, moved to each event's timestamp.
	follow *ManualClock
}

// New creates an enabled Controller. cfg must be valid. Without WithClock and
// WithScheduler the controller runs on a ManualClock that follows event
// timestamps: it is advanced to each down, move and up before the event is
// handled, firing any timer due by then.
func New(cfg gesture.Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		engine:   gesture.NewEngine(cfg),
		pointers: newTable(max(cfg.MaxTouchPoints, 1)),
		enabled:  true,
		reg:      newRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil || c.sched == nil {
		manual := NewManualClock(0)
		c.follow = manual
		if c.clock == nil {
			c.clock = manual
		}
		if c.sched == nil {
			c.sched = manual
		}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Handle dispatches ev to the matching handler.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case EventDown:
		c.HandleDown(ev)
	case EventMove:
		c.HandleMove(ev)
	case EventUp:
		c.HandleUp(ev)
	case EventCancel:
		c.HandleCancel(ev.PointerID)
	default:
		c.log.Debug("unknown event type", "type", ev.Type)
	}
}

// HandleDown admits a new pointer.
func (c *Controller) HandleDown(ev Event) {
	c.observe(ev.Timestamp)
	c.run(func() { c.down(ev) })
}

// HandleMove extends a pointer's history.
func (c *Controller) HandleMove(ev Event) {
	c.observe(ev.Timestamp)
	c.run(func() { c.move(ev) })
}

// HandleUp completes a pointer's contact.
func (c *Controller) HandleUp(ev Event) {
	c.observe(ev.Timestamp)
	c.run(func() { c.up(ev) })
}

// HandleCancel drops a pointer without recognizing anything. Cancelling an
// unknown pointer is a no-op.
func (c *Controller) HandleCancel(id int) {
	c.run(func() { c.cancel(id) })
}

func (c *Controller) observe(at time.Duration) {
	if c.follow != nil {
		c.follow.AdvanceTo(at)
	}
}

// run serializes work: anything submitted while a handler or callback is
// running is queued and processed once the current work completes.
func (c *Controller) run(fn func()) {
	if c.busy {
		c.queue = append(c.queue, fn)
		return
	}
	c.busy = true
	defer func() {
		c.busy = false
	}()

	fn()
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		next()
	}
}

func (c *Controller) down(ev Event) {
	if !c.enabled {
		return
	}
	if c.pointers.find(ev.PointerID) != nil {
		c.log.Debug("duplicate pointer down", "pointer", ev.PointerID)
		return
	}

	p := ev.point()
	candidates := append(c.pointers.latest(nil), p)
	if !c.engine.ValidateTouchPoints(candidates) {
		c.log.Debug("pointer down rejected", "pointer", ev.PointerID, "active", c.pointers.count)
		return
	}

	c.nextGen++
	ptr := c.pointers.insert(p, c.nextGen)
	if ptr == nil {
		c.log.Debug("pointer table full", "pointer", ev.PointerID)
		return
	}

	switch n := c.pointers.count; {
	case n == 1:
		c.armLongPress(ptr)
	case n == 2:
		c.cancelLongPress()
		if !c.cfg.EnableMultiTouch {
			return
		}
		now := c.clock.Now()
		c.pointers.taintAll()
		c.lastMulti = anchor{at: now, set: true}
		c.lastTwo = anchor{at: now, set: true}
		c.emit(c.engine.MultiTouch(c.pointers.latest(nil), 0, gesture.ConfidenceContact))
		c.armHeld()
	default:
		c.cancelLongPress()
		c.cancelHeld()
		if c.cfg.EnableMultiTouch {
			c.pointers.taintAll()
			c.lastMulti = anchor{at: c.clock.Now(), set: true}
		}
	}
}

func (c *Controller) move(ev Event) {
	if !c.enabled {
		return
	}
	ptr := c.pointers.find(ev.PointerID)
	if ptr == nil {
		return
	}

	p := ev.point()
	if !c.engine.ValidateTouchPoints(c.pointers.latest(&p)) {
		c.log.Debug("pointer move rejected", "pointer", ev.PointerID)
		return
	}
	ptr.history = append(ptr.history, p)
	c.cancelLongPress()

	switch active := c.pointers.active(); {
	case len(active) == 1:
		if res, ok := c.engine.ClassifyDrag(ptr.history); ok {
			c.emit(res)
		}
	case len(active) == 2 && c.cfg.EnableMultiTouch:
		c.twoFingerMove(active[0], active[1])
	case len(active) > 2 && c.cfg.EnableMultiTouch:
		c.pointers.taintAll()
		c.lastMulti = anchor{at: c.clock.Now(), set: true}
	}

	c.runCustom(ev.PointerID, gesture.PhaseMove)
}

func (c *Controller) twoFingerMove(a, b *pointer) {
	now := c.clock.Now()
	c.lastMulti = anchor{at: now, set: true}
	c.lastTwo = anchor{at: now, set: true}
	a.tainted = true
	b.tainted = true

	if res, ok := c.engine.ClassifyPinch(a.history, b.history); ok {
		c.cancelHeld()
		c.emit(res)
		return
	}
	if res, ok := c.engine.ClassifyRotation(a.history, b.history); ok {
		c.cancelHeld()
		c.emit(res)
		return
	}
	c.emit(c.multiTouchFrom(a, b, gesture.ConfidenceMultiTouch))
}

func (c *Controller) multiTouchFrom(a, b *pointer, confidence float64) gesture.Result {
	points := []gesture.TouchPoint{a.latest(), b.latest()}
	return c.engine.MultiTouch(points, spanOf(a.history, b.history), confidence)
}

func (c *Controller) up(ev Event) {
	if !c.enabled {
		return
	}
	ptr := c.pointers.find(ev.PointerID)
	if ptr == nil {
		return
	}
	if c.longPress != nil && c.longPress.pointerID == ev.PointerID {
		c.cancelLongPress()
	}

	if active := c.pointers.active(); len(active) == 2 && c.cfg.EnableMultiTouch {
		now := c.clock.Now()
		c.lastMulti = anchor{at: now, set: true}
		c.lastTwo = anchor{at: now, set: true}
		c.emit(c.multiTouchFrom(active[0], active[1], gesture.ConfidenceMultiRelease))
		c.pointers.remove(ev.PointerID)
		c.cancelHeld()
		return
	}

	if c.pointers.count == 1 && len(ptr.history) == 1 && !ptr.tainted {
		c.singleContact(ptr, ev.Timestamp)
	}
	if len(ptr.history) > 1 {
		if res, ok := c.engine.ClassifySwipe(ptr.history); ok {
			c.emit(res)
		}
	}
	c.runCustom(ev.PointerID, gesture.PhaseUp)

	c.pointers.remove(ev.PointerID)
	if c.pointers.count != 2 {
		c.cancelHeld()
	}
}

// singleContact classifies a stationary single-finger contact on lift.
func (c *Controller) singleContact(ptr *pointer, at time.Duration) {
	now := c.clock.Now()
	if c.lastMulti.within(now, DebounceWindow) || c.lastTwo.within(now, DebounceWindow) {
		c.log.Debug("tap debounced after multi-touch", "pointer", ptr.id)
		return
	}

	point := ptr.history[0]
	duration := at - point.Timestamp
	if duration < 0 {
		duration = 0
	}
	res, ok := c.engine.ClassifySingleTouch(point, duration)
	if !ok {
		return
	}

	switch res.Kind {
	case gesture.KindTap:
		if c.engine.IsDoubleTap(point, c.previousTap) {
			c.previousTap = nil
			c.emit(gesture.NewResult(gesture.KindDoubleTap, gesture.ConfidenceDoubleTap, res.Points, res.Duration, res.Payload))
			c.emit(res)
			return
		}
		remembered := point
		c.previousTap = &remembered
		c.emit(res)
	case gesture.KindLongPress:
		if !ptr.longPressFired {
			ptr.longPressFired = true
			c.emit(res)
		}
	}
}

func (c *Controller) cancel(id int) {
	if c.pointers.find(id) == nil {
		return
	}
	if c.longPress != nil && c.longPress.pointerID == id {
		c.cancelLongPress()
	}
	c.pointers.remove(id)
	if c.pointers.count != 2 {
		c.cancelHeld()
	}
}

func (c *Controller) runCustom(id int, phase gesture.Phase) {
	if len(c.reg.customs) == 0 {
		return
	}
	h := gesture.History{Pointers: c.pointers.history(), PointerID: id, Phase: phase}
	if res, ok := c.engine.MatchCustom(c.reg.recognizers(), h); ok {
		c.emit(res)
	}
}

func (c *Controller) emit(res gesture.Result) {
	for _, h := range c.reg.handlers(res.Kind) {
		h.fn(res)
	}
}

func (c *Controller) armLongPress(ptr *pointer) {
	c.cancelLongPress()
	id, gen := ptr.id, ptr.gen
	lp := &longPressTimer{pointerID: id, gen: gen, armedAt: c.clock.Now()}
	lp.timer = c.sched.Schedule(c.cfg.LongPressTime, func() {
		c.run(func() { c.fireLongPress(lp) })
	})
	c.longPress = lp
}

func (c *Controller) fireLongPress(lp *longPressTimer) {
	if c.longPress != lp {
		c.log.Debug("stale long-press timer", "pointer", lp.pointerID)
		return
	}
	c.longPress = nil

	ptr := c.pointers.find(lp.pointerID)
	if !c.enabled || ptr == nil || ptr.gen != lp.gen || ptr.longPressFired {
		c.log.Debug("stale long-press timer", "pointer", lp.pointerID)
		return
	}
	res, ok := c.engine.ClassifySingleTouch(ptr.history[0], c.clock.Now()-lp.armedAt)
	if !ok || res.Kind != gesture.KindLongPress {
		return
	}
	ptr.longPressFired = true
	c.emit(res)
}

func (c *Controller) cancelLongPress() {
	if c.longPress == nil {
		return
	}
	c.longPress.timer.Stop()
	c.longPress = nil
}

func (c *Controller) armHeld() {
	c.cancelHeld()
	c.heldSeq++
	ht := &heldTimer{seq: c.heldSeq}
	ht.timer = c.sched.Schedule(HeldMultiTouchDelay, func() {
		c.run(func() { c.fireHeld(ht) })
	})
	c.held = ht
}

func (c *Controller) fireHeld(ht *heldTimer) {
	if c.held != ht {
		c.log.Debug("stale held multi-touch timer")
		return
	}
	c.held = nil
	active := c.pointers.active()
	if !c.enabled || len(active) != 2 {
		return
	}
	c.emit(c.multiTouchFrom(active[0], active[1], gesture.ConfidenceHeld))
}

func (c *Controller) cancelHeld() {
	if c.held == nil {
		return
	}
	c.held.timer.Stop()
	c.held = nil
}

// clearSession drops every pointer, timer, remembered tap and debounce anchor.
func (c *Controller) clearSession() {
	c.cancelLongPress()
	c.cancelHeld()
	c.pointers.clear()
	c.previousTap = nil
	c.lastMulti = anchor{}
	c.lastTwo = anchor{}
}

// On registers fn for results of kind.
func (c *Controller) On(kind gesture.Kind, fn Callback) Handle {
	return c.reg.on(kind, fn)
}

// OnAny registers fn for every result. Catch-all callbacks run after the
// kind-specific ones.
func (c *Controller) OnAny(fn Callback) Handle {
	return c.reg.onAny(fn)
}

// Clear removes every callback registered for kind.
func (c *Controller) Clear(kind gesture.Kind) {
	delete(c.reg.byKind, kind)
}

// ClearAll removes every callback. Custom recognizers are kept.
func (c *Controller) ClearAll() {
	c.reg.byKind = make(map[gesture.Kind][]handler)
	c.reg.any = nil
}

// AddCustomRecognizer appends r to the custom recognizers. They run in
// registration order after the built-in checks of every move and every lift.
func (c *Controller) AddCustomRecognizer(r gesture.CustomRecognizer) Handle {
	return c.reg.addCustom(r)
}

// ActivePoints returns the latest sample of every active pointer.
func (c *Controller) ActivePoints() map[int]gesture.TouchPoint {
	out := make(map[int]gesture.TouchPoint, c.pointers.count)
	for _, p := range c.pointers.active() {
		out[p.id] = p.latest()
	}
	return out
}

// ActiveCount returns the number of pointers currently down.
func (c *Controller) ActiveCount() int {
	return c.pointers.count
}

// Enabled reports whether events are being recognized.
func (c *Controller) Enabled() bool {
	return c.enabled
}

// ShowFeedback reports whether the host should draw touch indicators.
func (c *Controller) ShowFeedback() bool {
	return c.feedback
}

// Config returns the active configuration.
func (c *Controller) Config() gesture.Config {
	return c.cfg
}

// Clock returns the controller's clock.
func (c *Controller) Clock() Clock {
	return c.clock
}

// SetEnabled turns recognition on or off. Disabling drops all session state
// but keeps callbacks and custom recognizers.
func (c *Controller) SetEnabled(enabled bool) {
	c.run(func() {
		if !enabled {
			c.clearSession()
		}
		c.enabled = enabled
	})
}

// SetShowFeedback sets the touch indicator flag.
func (c *Controller) SetShowFeedback(show bool) {
	c.run(func() { c.feedback = show })
}

// Reset drops all session state, enables recognition and turns feedback off.
func (c *Controller) Reset() {
	c.run(func() {
		c.clearSession()
		c.enabled = true
		c.feedback = false
	})
}

// SetConfig replaces the configuration and rebuilds the engine. Active
// pointers and their histories are kept. An invalid cfg is returned as an
// error and changes nothing.
func (c *Controller) SetConfig(cfg gesture.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.run(func() {
		c.cfg = cfg
		c.engine = gesture.NewEngine(cfg)
		c.pointers.resize(cfg.MaxTouchPoints)
	})
	return nil
}

func spanOf(a, b []gesture.TouchPoint) time.Duration {
	first, last := a[0].Timestamp, a[0].Timestamp
	for _, h := range [][]gesture.TouchPoint{a, b} {
		for _, p := range h {
			first = min(first, p.Timestamp)
			last = max(last, p.Timestamp)
		}
	}
	return last - first
}
