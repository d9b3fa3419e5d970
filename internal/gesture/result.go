package gesture

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the type of a recognized gesture.
type Kind uint8

const (
	KindTap Kind = iota + 1
	KindDoubleTap
	KindLongPress
	KindDrag
	KindPinch
	KindRotation
	KindSwipeUp
	KindSwipeDown
	KindSwipeLeft
	KindSwipeRight
	KindMultiTouch
	KindCustom
)

var kindNames = map[Kind]string{
	KindTap:        "tap",
	KindDoubleTap:  "double_tap",
	KindLongPress:  "long_press",
	KindDrag:       "drag",
	KindPinch:      "pinch",
	KindRotation:   "rotation",
	KindSwipeUp:    "swipe_up",
	KindSwipeDown:  "swipe_down",
	KindSwipeLeft:  "swipe_left",
	KindSwipeRight: "swipe_right",
	KindMultiTouch: "multi_touch",
	KindCustom:     "custom",
}

// Kinds returns every gesture kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindTap, KindDoubleTap, KindLongPress, KindDrag, KindPinch, KindRotation,
		KindSwipeUp, KindSwipeDown, KindSwipeLeft, KindSwipeRight,
		KindMultiTouch, KindCustom,
	}
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsSwipe reports whether k is one of the four swipe directions.
func (k Kind) IsSwipe() bool {
	return k >= KindSwipeUp && k <= KindSwipeRight
}

// ParseKind converts a snake_case name back to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown gesture kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Payload keys shared by the built-in recognizers.
const (
	KeyPosition        = "position"
	KeyStart           = "start"
	KeyDelta           = "delta"
	KeyDistance        = "distance"
	KeyVelocity        = "velocity"
	KeyDirection       = "direction"
	KeyScaleFactor     = "scale_factor"
	KeyIsZoomIn        = "is_zoom_in"
	KeyCenter          = "center"
	KeyInitialDistance = "initial_distance"
	KeyCurrentDistance = "current_distance"
	KeyRotationAngle   = "rotation_angle"
	KeyIsClockwise     = "is_clockwise"
	KeyTouchCount      = "touch_point_count"
	KeyPointerIDs      = "pointer_ids"
	KeyName            = "name"
	KeyTemplateID      = "template_id"
)

// Payload holds kind-specific named values. Values are float64, bool, int,
// string, Vec2 or []int.
type Payload map[string]any

// Float returns the named float64 value.
func (p Payload) Float(key string) (float64, bool) {
	v, ok := p[key].(float64)
	return v, ok
}

// Bool returns the named bool value.
func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

// Int returns the named int value.
func (p Payload) Int(key string) (int, bool) {
	v, ok := p[key].(int)
	return v, ok
}

// Text returns the named string value.
func (p Payload) Text(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Vec returns the named Vec2 value.
func (p Payload) Vec(key string) (Vec2, bool) {
	v, ok := p[key].(Vec2)
	return v, ok
}

func (p Payload) clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		if ids, ok := v.([]int); ok {
			v = append([]int(nil), ids...)
		}
		out[k] = v
	}
	return out
}

// Result is an immutable record of a recognized gesture.
type Result struct {
	Kind       Kind
	Confidence float64
	Points     []TouchPoint
	Duration   time.Duration
	Payload    Payload
}

// NewResult builds a Result owning copies of points and payload.
func NewResult(kind Kind, confidence float64, points []TouchPoint, duration time.Duration, payload Payload) Result {
	return Result{
		Kind:       kind,
		Confidence: clamp01(confidence),
		Points:     append([]TouchPoint(nil), points...),
		Duration:   duration,
		Payload:    payload.clone(),
	}
}

// Key returns the binding key for the result: the kind name, or
// "custom:<name>" for named custom results.
func (r Result) Key() string {
	if r.Kind == KindCustom {
		if name, ok := r.Payload.Text(KeyName); ok && name != "" {
			return "custom:" + name
		}
	}
	return r.Kind.String()
}

type resultJSON struct {
	Kind       Kind         `json:"kind"`
	Key        string       `json:"key"`
	Confidence float64      `json:"confidence"`
	Points     []TouchPoint `json:"touch_points"`
	DurationMs float64      `json:"duration_ms"`
	Payload    Payload      `json:"payload,omitempty"`
}

// MarshalJSON encodes the result for journals and websocket clients.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Kind:       r.Kind,
		Key:        r.Key(),
		Confidence: r.Confidence,
		Points:     r.Points,
		DurationMs: float64(r.Duration) / float64(time.Millisecond),
		Payload:    r.Payload,
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
