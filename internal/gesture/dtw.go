package gesture

import (
	"math"
)

// PathPoint is one point of a stroke path.
type PathPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"` // milliseconds
}

// PathFromSamples converts a pointer's samples into a stroke path.
func PathFromSamples(samples []TouchPoint) []PathPoint {
	if len(samples) == 0 {
		return nil
	}
	path := make([]PathPoint, len(samples))
	for i, s := range samples {
		path[i] = PathPoint{
			X:         s.Position.X,
			Y:         s.Position.Y,
			Timestamp: s.Timestamp.Milliseconds(),
		}
	}
	return path
}

// DTWDistance calculates the Dynamic Time Warping distance between two paths,
// normalized by the longer path's length. Empty paths are infinitely far apart.
func DTWDistance(path1, path2 []PathPoint) float64 {
	n := len(path1)
	m := len(path2)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, m+1)
		for j := range dtw[i] {
			dtw[i][j] = math.Inf(1)
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := pointDistance(path1[i-1], path2[j-1])
			dtw[i][j] = cost + min3(dtw[i-1][j], dtw[i][j-1], dtw[i-1][j-1])
		}
	}

	return dtw[n][m] / float64(max(n, m))
}

func pointDistance(a, b PathPoint) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func min3(a, b, c float64) float64 {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}

// normalizePath scales a path into the unit square using a single scale
// factor for both axes, so a horizontal stroke stays horizontal.
// Timestamps are preserved.
func normalizePath(path []PathPoint) []PathPoint {
	if path == nil {
		return nil
	}
	n := len(path)
	if n == 0 {
		return []PathPoint{}
	}
	if n == 1 {
		return []PathPoint{{X: 0, Y: 0, Timestamp: path[0].Timestamp}}
	}

	minX, maxX := path[0].X, path[0].X
	minY, maxY := path[0].Y, path[0].Y
	for _, p := range path {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	extent := math.Max(maxX-minX, maxY-minY)
	normalized := make([]PathPoint, n)
	for i, p := range path {
		var x, y float64
		if extent > 0 {
			x = (p.X - minX) / extent
			y = (p.Y - minY) / extent
		}
		normalized[i] = PathPoint{X: x, Y: y, Timestamp: p.Timestamp}
	}
	return normalized
}

// resamplePath resamples a path to exactly targetLength points by linear
// interpolation.
func resamplePath(path []PathPoint, targetLength int) []PathPoint {
	if len(path) == 0 {
		return nil
	}
	if len(path) == 1 || targetLength <= 1 {
		return []PathPoint{path[0]}
	}

	result := make([]PathPoint, targetLength)
	for i := 0; i < targetLength; i++ {
		t := float64(i) / float64(targetLength-1)
		pos := t * float64(len(path)-1)

		idx := int(pos)
		if idx >= len(path)-1 {
			idx = len(path) - 2
		}
		frac := pos - float64(idx)

		p1 := path[idx]
		p2 := path[idx+1]
		result[i] = PathPoint{
			X:         p1.X + frac*(p2.X-p1.X),
			Y:         p1.Y + frac*(p2.Y-p1.Y),
			Timestamp: p1.Timestamp + int64(frac*float64(p2.Timestamp-p1.Timestamp)),
		}
	}
	return result
}
