// Package gesture provides the stateless touch gesture recognizers, the
// gesture result types and stroke template matching.
package gesture

import (
	"math"
	"sort"
	"time"
)

// Confidence reported by the built-in recognizers.
const (
	ConfidenceTap          = 1.0
	ConfidenceDoubleTap    = 1.0
	ConfidenceLongPress    = 1.0
	ConfidenceDrag         = 0.9
	ConfidenceSwipe        = 0.9
	ConfidencePinch        = 0.85
	ConfidenceRotation     = 0.8
	ConfidenceContact      = 0.95 // two fingers just touched down
	ConfidenceHeld         = 0.9  // two fingers held without a specific gesture
	ConfidenceMultiTouch   = 0.8  // two-finger move that is neither pinch nor rotation
	ConfidenceMultiRelease = 0.9  // one of two fingers lifted
)

// Phase tells a custom recognizer which event triggered it.
type Phase uint8

const (
	// PhaseMove means a pointer moved.
	PhaseMove Phase = iota + 1
	// PhaseUp means PointerID is about to be lifted; its history is complete.
	PhaseUp
)

// History is a snapshot of every active pointer's samples.
type History struct {
	Pointers  map[int][]TouchPoint
	PointerID int
	Phase     Phase
}

// Of returns the samples recorded for a pointer.
func (h History) Of(id int) []TouchPoint {
	return h.Pointers[id]
}

// IDs returns the pointer ids in ascending order.
func (h History) IDs() []int {
	ids := make([]int, 0, len(h.Pointers))
	for id := range h.Pointers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CustomRecognizer is a user-supplied pure classifier over the full
// multi-pointer history.
type CustomRecognizer interface {
	Recognize(h History) (Result, bool)
}

// CustomFunc adapts a function to CustomRecognizer.
type CustomFunc func(h History) (Result, bool)

// Recognize calls f(h).
func (f CustomFunc) Recognize(h History) (Result, bool) {
	return f(h)
}

// Engine decides whether a gesture kind's criteria are met for the samples
// it is given. It holds no mutable state.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine for the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ClassifySingleTouch classifies a stationary contact by how long it lasted.
// Contacts shorter than TapMaxDuration are taps, contacts of at least
// LongPressTime are long presses, and anything between is neither.
func (e *Engine) ClassifySingleTouch(point TouchPoint, duration time.Duration) (Result, bool) {
	payload := Payload{KeyPosition: point.Position}
	switch {
	case duration < TapMaxDuration:
		return NewResult(KindTap, ConfidenceTap, []TouchPoint{point}, duration, payload), true
	case duration >= e.cfg.LongPressTime:
		return NewResult(KindLongPress, ConfidenceLongPress, []TouchPoint{point}, duration, payload), true
	}
	return Result{}, false
}

// ClassifyDrag reports a drag once the pointer is MinDragDistance away from
// where it started. It fires for every qualifying history.
func (e *Engine) ClassifyDrag(history []TouchPoint) (Result, bool) {
	if len(history) < 2 {
		return Result{}, false
	}
	first, last := history[0], history[len(history)-1]
	distance := first.DistanceTo(last)
	if distance < e.cfg.MinDragDistance {
		return Result{}, false
	}

	elapsed := last.Timestamp - first.Timestamp
	velocity := 0.0
	if e.cfg.EnableVelocityRecognition {
		velocity = speed(distance, elapsed)
	}

	return NewResult(KindDrag, ConfidenceDrag, history, elapsed, Payload{
		KeyPosition: last.Position,
		KeyStart:    first.Position,
		KeyDelta:    last.Position.Sub(first.Position),
		KeyDistance: distance,
		KeyVelocity: velocity,
	}), true
}

// ClassifySwipe reports a fast, long, short-lived stroke and its direction.
func (e *Engine) ClassifySwipe(history []TouchPoint) (Result, bool) {
	if len(history) < 2 {
		return Result{}, false
	}
	first, last := history[0], history[len(history)-1]
	elapsed := last.Timestamp - first.Timestamp
	if elapsed > e.cfg.MaxSwipeTime {
		return Result{}, false
	}
	distance := first.DistanceTo(last)
	if distance < e.cfg.MinSwipeDistance {
		return Result{}, false
	}

	velocity := speed(distance, elapsed)
	if e.cfg.EnableVelocityRecognition {
		// A zero-length interval gives no usable velocity.
		if elapsed <= 0 || velocity < e.cfg.MinSwipeVelocity {
			return Result{}, false
		}
	}

	delta := last.Position.Sub(first.Position)
	kind := swipeDirection(delta)
	return NewResult(kind, ConfidenceSwipe, history, elapsed, Payload{
		KeyDirection: kind.String(),
		KeyStart:     first.Position,
		KeyPosition:  last.Position,
		KeyDelta:     delta,
		KeyDistance:  distance,
		KeyVelocity:  velocity,
	}), true
}

// swipeDirection maps a displacement onto four sectors centered on the
// cardinal directions, with +y pointing down.
func swipeDirection(delta Vec2) Kind {
	deg := math.Atan2(delta.Y, delta.X) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	switch {
	case deg >= 315 || deg < 45:
		return KindSwipeRight
	case deg < 135:
		return KindSwipeDown
	case deg < 225:
		return KindSwipeLeft
	default:
		return KindSwipeUp
	}
}

// ClassifyPinch reports a change in the distance between two fingers.
func (e *Engine) ClassifyPinch(a, b []TouchPoint) (Result, bool) {
	if len(a) < 2 || len(b) < 2 {
		return Result{}, false
	}
	firstA, lastA := a[0], a[len(a)-1]
	firstB, lastB := b[0], b[len(b)-1]

	initial := firstA.DistanceTo(firstB)
	if initial < MinPinchInitialDistance {
		return Result{}, false
	}
	current := lastA.DistanceTo(lastB)
	scale := current / initial
	elapsed := span(a, b)

	if math.Abs(scale-1) <= e.cfg.MinPinchScale ||
		math.Abs(current-initial) < MinPinchDistanceChange ||
		elapsed < MinGestureElapsed {
		return Result{}, false
	}

	return NewResult(KindPinch, ConfidencePinch, []TouchPoint{lastA, lastB}, elapsed, Payload{
		KeyScaleFactor:     scale,
		KeyIsZoomIn:        scale > 1,
		KeyCenter:          lastA.Position.Midpoint(lastB.Position),
		KeyInitialDistance: initial,
		KeyCurrentDistance: current,
	}), true
}

// ClassifyRotation reports two fingers turning about their initial midpoint
// in the same direction.
func (e *Engine) ClassifyRotation(a, b []TouchPoint) (Result, bool) {
	if len(a) < 2 || len(b) < 2 {
		return Result{}, false
	}
	firstA, lastA := a[0], a[len(a)-1]
	firstB, lastB := b[0], b[len(b)-1]
	center := firstA.Position.Midpoint(firstB.Position)

	rotA := normalizeAngle(angleFrom(center, lastA.Position) - angleFrom(center, firstA.Position))
	rotB := normalizeAngle(angleFrom(center, lastB.Position) - angleFrom(center, firstB.Position))
	if math.Abs(rotA-rotB) >= MaxRotationDisagreement {
		return Result{}, false
	}

	rotation := (rotA + rotB) / 2
	elapsed := span(a, b)
	if math.Abs(rotation) <= e.cfg.MinRotationAngle || elapsed < MinGestureElapsed {
		return Result{}, false
	}

	return NewResult(KindRotation, ConfidenceRotation, []TouchPoint{lastA, lastB}, elapsed, Payload{
		KeyRotationAngle: rotation,
		KeyIsClockwise:   rotation > 0,
		KeyCenter:        center,
	}), true
}

// IsDoubleTap reports whether current follows previous closely enough in
// time and space. A nil previous never matches.
func (e *Engine) IsDoubleTap(current TouchPoint, previous *TouchPoint) bool {
	if previous == nil {
		return false
	}
	return current.Timestamp-previous.Timestamp <= e.cfg.DoubleTapTime &&
		current.DistanceTo(*previous) <= e.cfg.DoubleTapDistance
}

// ValidateTouchPoints reports whether the set of points may be admitted.
func (e *Engine) ValidateTouchPoints(points []TouchPoint) bool {
	if len(points) > e.cfg.MaxTouchPoints {
		return false
	}
	if e.cfg.EnablePressureSensitivity {
		for _, p := range points {
			if p.Pressure < e.cfg.MinPressure {
				return false
			}
		}
	}
	return true
}

// MultiTouch builds a generic multi-touch result from the given samples.
func (e *Engine) MultiTouch(points []TouchPoint, duration time.Duration, confidence float64) Result {
	ids := make([]int, len(points))
	for i, p := range points {
		ids[i] = p.PointerID
	}
	return NewResult(KindMultiTouch, confidence, points, duration, Payload{
		KeyTouchCount: len(points),
		KeyCenter:     centroid(points),
		KeyPointerIDs: ids,
	})
}

// MatchCustom runs recognizers in order and returns the first match.
func (e *Engine) MatchCustom(recognizers []CustomRecognizer, h History) (Result, bool) {
	for _, r := range recognizers {
		if r == nil {
			continue
		}
		if res, ok := r.Recognize(h); ok {
			return res, true
		}
	}
	return Result{}, false
}

// speed returns distance per second for the elapsed interval.
func speed(distance float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	return distance / ms * 1000
}

func angleFrom(center, p Vec2) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

// normalizeAngle wraps a into [-π, π].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
