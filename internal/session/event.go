package session

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
)

// EventType is the kind of a raw pointer event.
type EventType uint8

const (
	EventDown EventType = iota + 1
	EventMove
	EventUp
	EventCancel
)

var eventNames = map[EventType]string{
	EventDown:   "down",
	EventMove:   "move",
	EventUp:     "up",
	EventCancel: "cancel",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// ParseEventType converts "down", "move", "up" or "cancel" to an EventType.
func ParseEventType(s string) (EventType, error) {
	for t, name := range eventNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is a normalized pointer event from the host.
type Event struct {
	Type        EventType
	PointerID   int
	Position    gesture.Vec2
	Pressure    float64
	Timestamp   time.Duration
	Radius      float64
	RadiusMajor float64
	RadiusMinor float64
	Orientation float64
}

// Down builds a pointer-down event.
func Down(id int, pos gesture.Vec2, pressure float64, at time.Duration) Event {
	return Event{Type: EventDown, PointerID: id, Position: pos, Pressure: pressure, Timestamp: at}
}

// Move builds a pointer-move event.
func Move(id int, pos gesture.Vec2, pressure float64, at time.Duration) Event {
	return Event{Type: EventMove, PointerID: id, Position: pos, Pressure: pressure, Timestamp: at}
}

// Up builds a pointer-up event.
func Up(id int, at time.Duration) Event {
	return Event{Type: EventUp, PointerID: id, Timestamp: at}
}

// Cancel builds a pointer-cancel event.
func Cancel(id int) Event {
	return Event{Type: EventCancel, PointerID: id}
}

func (e Event) point() gesture.TouchPoint {
	return gesture.TouchPoint{
		PointerID:   e.PointerID,
		Position:    e.Position,
		Pressure:    e.Pressure,
		Timestamp:   e.Timestamp,
		Radius:      e.Radius,
		RadiusMajor: e.RadiusMajor,
		RadiusMinor: e.RadiusMinor,
		Orientation: e.Orientation,
	}
}
