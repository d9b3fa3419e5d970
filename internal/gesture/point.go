package gesture

import (
	"math"
	"time"
)

// Vec2 is a position or displacement in screen coordinates (+y points down).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Distance returns the Euclidean distance between v and o.
func (v Vec2) Distance(o Vec2) float64 {
	return v.Sub(o).Len()
}

// Midpoint returns the point halfway between v and o.
func (v Vec2) Midpoint(o Vec2) Vec2 {
	return Vec2{X: (v.X + o.X) / 2, Y: (v.Y + o.Y) / 2}
}

// TouchPoint is an immutable snapshot of one pointer at one instant.
// Timestamp is a duration since the host's epoch.
type TouchPoint struct {
	PointerID   int           `json:"pointer_id"`
	Position    Vec2          `json:"position"`
	Pressure    float64       `json:"pressure"`
	Timestamp   time.Duration `json:"timestamp"`
	Radius      float64       `json:"radius,omitempty"`
	RadiusMajor float64       `json:"radius_major,omitempty"`
	RadiusMinor float64       `json:"radius_minor,omitempty"`
	Orientation float64       `json:"orientation,omitempty"`
}

// Equal reports whether p and o describe the same sample. Contact geometry is
// not part of a sample's identity.
func (p TouchPoint) Equal(o TouchPoint) bool {
	return p.PointerID == o.PointerID &&
		p.Position == o.Position &&
		p.Pressure == o.Pressure &&
		p.Timestamp == o.Timestamp
}

// DistanceTo returns the distance between the positions of p and o.
func (p TouchPoint) DistanceTo(o TouchPoint) float64 {
	return p.Position.Distance(o.Position)
}

// span returns the time between the earliest and latest timestamps across
// all given histories.
func span(histories ...[]TouchPoint) time.Duration {
	var first, last time.Duration
	seen := false
	for _, h := range histories {
		for _, p := range h {
			if !seen {
				first, last = p.Timestamp, p.Timestamp
				seen = true
				continue
			}
			if p.Timestamp < first {
				first = p.Timestamp
			}
			if p.Timestamp > last {
				last = p.Timestamp
			}
		}
	}
	return last - first
}

// centroid returns the mean position of the given points.
func centroid(points []TouchPoint) Vec2 {
	if len(points) == 0 {
		return Vec2{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.Position.X
		sy += p.Position.Y
	}
	n := float64(len(points))
	return Vec2{X: sx / n, Y: sy / n}
}
