package gesture

import (
	"math"
	"sort"
	"sync"
)

// MinStrokeSamples is the fewest samples a lifted pointer needs before its
// path is compared against stroke templates.
const MinStrokeSamples = 8

// StrokeTemplate is a trained single-finger path.
type StrokeTemplate struct {
	ID        string
	Name      string
	Path      []PathPoint
	Tolerance float64 // maximum DTW distance for a match
}

// StrokeMatch is a template that matched an input path.
type StrokeMatch struct {
	Template *StrokeTemplate
	Score    float64 // 1/(1+distance), higher is better
	Distance float64
}

// StrokeMatcher matches single-finger paths against trained templates. It is
// safe for concurrent use and can be registered with a session as a custom
// recognizer.
type StrokeMatcher struct {
	mu        sync.RWMutex
	templates []*StrokeTemplate
}

// NewStrokeMatcher creates an empty StrokeMatcher.
func NewStrokeMatcher() *StrokeMatcher {
	return &StrokeMatcher{}
}

// AddTemplate adds a template. Nil templates are ignored.
func (m *StrokeMatcher) AddTemplate(t *StrokeTemplate) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
}

// RemoveTemplate removes a template by its ID.
func (m *StrokeMatcher) RemoveTemplate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// SetTemplates replaces every template.
func (m *StrokeMatcher) SetTemplates(ts []*StrokeTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = m.templates[:0]
	for _, t := range ts {
		if t != nil {
			m.templates = append(m.templates, t)
		}
	}
}

// Len returns the number of templates.
func (m *StrokeMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Match returns the templates within tolerance of path, best first.
func (m *StrokeMatcher) Match(path []PathPoint) []StrokeMatch {
	if len(path) == 0 {
		return nil
	}
	input := normalizePath(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []StrokeMatch
	for _, t := range m.templates {
		if len(t.Path) == 0 {
			continue
		}
		distance := DTWDistance(input, normalizePath(t.Path))
		if math.IsInf(distance, 1) || distance > t.Tolerance {
			continue
		}
		matches = append(matches, StrokeMatch{
			Template: t,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Recognize matches the lifted pointer's path when it is the only pointer
// down. The result is a custom gesture named after the best template.
func (m *StrokeMatcher) Recognize(h History) (Result, bool) {
	if h.Phase != PhaseUp || len(h.Pointers) != 1 {
		return Result{}, false
	}
	samples := h.Of(h.PointerID)
	if len(samples) < MinStrokeSamples {
		return Result{}, false
	}

	matches := m.Match(PathFromSamples(samples))
	if len(matches) == 0 {
		return Result{}, false
	}
	best := matches[0]
	return NewResult(KindCustom, best.Score, samples, span(samples), Payload{
		KeyName:       best.Template.Name,
		KeyTemplateID: best.Template.ID,
		KeyDistance:   best.Distance,
	}), true
}
