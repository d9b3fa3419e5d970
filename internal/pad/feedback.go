package pad

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/ayusman/mudra/internal/gesture"
)

// fadeSeconds is how long a gesture marker stays visible.
const fadeSeconds = 0.8

// marker is a fading label drawn where a gesture was recognized.
type marker struct {
	pos   gesture.Vec2
	label string
	fade  *gween.Tween
	alpha float32
	done  bool
}

// Feedback holds the markers of recent gestures. Call Update once per frame.
type Feedback struct {
	markers []*marker
}

// Add places a marker for res at its position, its center, or its first
// touch point, in that order.
func (f *Feedback) Add(res gesture.Result) {
	pos, ok := res.Payload.Vec(gesture.KeyPosition)
	if !ok {
		pos, ok = res.Payload.Vec(gesture.KeyCenter)
	}
	if !ok && len(res.Points) > 0 {
		pos = res.Points[0].Position
	}
	f.markers = append(f.markers, &marker{
		pos:   pos,
		label: res.Key(),
		fade:  gween.New(1, 0, fadeSeconds, ease.OutQuad),
		alpha: 1,
	})
}

// Update advances every fade by dt seconds and drops finished markers.
func (f *Feedback) Update(dt float32) {
	live := f.markers[:0]
	for _, m := range f.markers {
		m.alpha, m.done = m.fade.Update(dt)
		if !m.done {
			live = append(live, m)
		}
	}
	clear(f.markers[len(live):])
	f.markers = live
}

// Clear drops every marker.
func (f *Feedback) Clear() {
	f.markers = nil
}

// Len returns the number of visible markers.
func (f *Feedback) Len() int {
	return len(f.markers)
}
