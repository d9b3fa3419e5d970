package pad

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

const (
	// MousePointer is the pointer id of the left mouse button.
	MousePointer = 0
	maxPointers  = 10 // pointer 0 = mouse, 1-9 = touch
)

// Touch is one active touch in a frame.
type Touch struct {
	ID   ebiten.TouchID
	X, Y int
}

// Source reads the raw pointer state of the current frame.
type Source interface {
	Cursor() (x, y int, pressed bool)
	AppendTouches(dst []Touch) []Touch
}

// ebitenSource reads input from the running game.
type ebitenSource struct {
	ids []ebiten.TouchID
}

func (s *ebitenSource) Cursor() (int, int, bool) {
	x, y := ebiten.CursorPosition()
	return x, y, ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
}

func (s *ebitenSource) AppendTouches(dst []Touch) []Touch {
	s.ids = ebiten.AppendTouchIDs(s.ids[:0])
	for _, id := range s.ids {
		x, y := ebiten.TouchPosition(id)
		dst = append(dst, Touch{ID: id, X: x, Y: y})
	}
	return dst
}

type slot struct {
	used bool // touch slots only
	tid  ebiten.TouchID
	down bool
	x, y int
}

// Poller turns per-frame input state into pointer events by diffing it
// against the previous frame. Touches keep the pointer id of the slot they
// were given when they started.
type Poller struct {
	slots   [maxPointers]slot
	touches []Touch
}

// Poll reads src and returns the down, move and up events since the last
// call, stamped with now. Moves are only reported when a pointer's position
// changed.
func (p *Poller) Poll(src Source, now time.Duration) []session.Event {
	var events []session.Event

	x, y, pressed := src.Cursor()
	events = p.update(events, MousePointer, x, y, pressed, now)

	p.touches = src.AppendTouches(p.touches[:0])
	var seen [maxPointers]bool
	for _, t := range p.touches {
		id := p.touchSlot(t.ID)
		if id < 0 {
			continue
		}
		seen[id] = true
		events = p.update(events, id, t.X, t.Y, true, now)
	}

	// Release touch slots that are no longer active.
	for id := 1; id < maxPointers; id++ {
		s := &p.slots[id]
		if s.used && !seen[id] {
			events = p.update(events, id, s.x, s.y, false, now)
			*s = slot{}
		}
	}
	return events
}

// Release cancels every pointer that is down, for when the window loses
// input focus mid-gesture.
func (p *Poller) Release() []session.Event {
	var events []session.Event
	for id := range p.slots {
		if p.slots[id].down {
			events = append(events, session.Cancel(id))
		}
		p.slots[id] = slot{}
	}
	return events
}

// Active returns the position of every pointer that is down, keyed by
// pointer id.
func (p *Poller) Active() map[int]gesture.Vec2 {
	out := make(map[int]gesture.Vec2)
	for id, s := range p.slots {
		if s.down {
			out[id] = gesture.Vec2{X: float64(s.x), Y: float64(s.y)}
		}
	}
	return out
}

func (p *Poller) update(events []session.Event, id, x, y int, pressed bool, now time.Duration) []session.Event {
	s := &p.slots[id]
	pos := gesture.Vec2{X: float64(x), Y: float64(y)}
	switch {
	case pressed && !s.down:
		events = append(events, session.Down(id, pos, 1, now))
	case pressed && (x != s.x || y != s.y):
		events = append(events, session.Move(id, pos, 1, now))
	case !pressed && s.down:
		events = append(events, session.Up(id, now))
	}
	s.down = pressed
	s.x, s.y = x, y
	return events
}

// touchSlot maps a touch to a pointer slot (1-9). It returns the existing
// slot or allocates a new one, and -1 when every slot is taken.
func (p *Poller) touchSlot(tid ebiten.TouchID) int {
	for i := 1; i < maxPointers; i++ {
		if p.slots[i].used && p.slots[i].tid == tid {
			return i
		}
	}
	for i := 1; i < maxPointers; i++ {
		if !p.slots[i].used {
			p.slots[i] = slot{used: true, tid: tid}
			return i
		}
	}
	return -1
}
