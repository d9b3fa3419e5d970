package session

import "github.com/ayusman/mudra/internal/gesture"

// pointer is one active contact: its samples and its lifetime flags.
type pointer struct {
	used           bool
	id             int
	gen            uint64 // distinguishes successive contacts reusing an id
	history        []gesture.TouchPoint
	tainted        bool // took part in a contact of two or more fingers
	longPressFired bool
}

func (p *pointer) latest() gesture.TouchPoint {
	return p.history[len(p.history)-1]
}

// table is a fixed-capacity set of active pointers keyed by pointer id.
// Lookups scan linearly; capacity is max_touch_points.
type table struct {
	slots []pointer
	count int
}

func newTable(capacity int) *table {
	return &table{slots: make([]pointer, capacity)}
}

func (t *table) find(id int) *pointer {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].id == id {
			return &t.slots[i]
		}
	}
	return nil
}

// insert claims a free slot for p. It returns nil when the table is full.
func (t *table) insert(p gesture.TouchPoint, gen uint64) *pointer {
	for i := range t.slots {
		if !t.slots[i].used {
			t.slots[i] = pointer{
				used:    true,
				id:      p.PointerID,
				gen:     gen,
				history: []gesture.TouchPoint{p},
			}
			t.count++
			return &t.slots[i]
		}
	}
	return nil
}

func (t *table) remove(id int) bool {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].id == id {
			t.slots[i] = pointer{}
			t.count--
			return true
		}
	}
	return false
}

// active returns the used slots in slot order.
func (t *table) active() []*pointer {
	out := make([]*pointer, 0, t.count)
	for i := range t.slots {
		if t.slots[i].used {
			out = append(out, &t.slots[i])
		}
	}
	return out
}

// latest returns the newest sample of every active pointer, substituting
// replace for the pointer with the same id.
func (t *table) latest(replace *gesture.TouchPoint) []gesture.TouchPoint {
	out := make([]gesture.TouchPoint, 0, t.count+1)
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			continue
		}
		if replace != nil && replace.PointerID == s.id {
			out = append(out, *replace)
			continue
		}
		out = append(out, s.latest())
	}
	return out
}

func (t *table) taintAll() {
	for i := range t.slots {
		if t.slots[i].used {
			t.slots[i].tainted = true
		}
	}
}

func (t *table) clear() {
	for i := range t.slots {
		t.slots[i] = pointer{}
	}
	t.count = 0
}

// resize changes the capacity, never dropping an active pointer.
func (t *table) resize(capacity int) {
	if capacity < t.count {
		capacity = t.count
	}
	slots := make([]pointer, capacity)
	n := 0
	for i := range t.slots {
		if t.slots[i].used {
			slots[n] = t.slots[i]
			n++
		}
	}
	t.slots = slots
}

// history returns a copy of every active pointer's samples.
func (t *table) history() map[int][]gesture.TouchPoint {
	out := make(map[int][]gesture.TouchPoint, t.count)
	for i := range t.slots {
		if t.slots[i].used {
			out[t.slots[i].id] = append([]gesture.TouchPoint(nil), t.slots[i].history...)
		}
	}
	return out
}
