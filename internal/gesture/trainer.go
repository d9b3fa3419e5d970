package gesture

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSamples is returned when recorded samples cannot be trained.
var ErrInvalidSamples = errors.New("invalid stroke samples")

// Trainer processes recorded samples into stroke templates.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// StrokeSample is one recorded stroke.
type StrokeSample struct {
	Path      []PathPoint `json:"path"`
	Timestamp int64       `json:"timestamp"`
}

// TrainStroke averages recorded strokes into a single template path. Every
// sample is resampled to the first sample's length before averaging.
func (t *Trainer) TrainStroke(samples []json.RawMessage) ([]PathPoint, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples provided", ErrInvalidSamples)
	}

	var paths [][]PathPoint
	for i, raw := range samples {
		var sample StrokeSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("%w: failed to parse sample %d: %w", ErrInvalidSamples, i, err)
		}
		if len(sample.Path) < 2 {
			return nil, fmt.Errorf("%w: sample %d has insufficient path points", ErrInvalidSamples, i)
		}
		paths = append(paths, sample.Path)
	}

	targetLength := len(paths[0])
	resampled := make([][]PathPoint, len(paths))
	for i, p := range paths {
		resampled[i] = resamplePath(p, targetLength)
	}

	n := float64(len(paths))
	averaged := make([]PathPoint, targetLength)
	for i := 0; i < targetLength; i++ {
		var sumX, sumY float64
		for _, p := range resampled {
			sumX += p[i].X
			sumY += p[i].Y
		}
		averaged[i] = PathPoint{
			X:         sumX / n,
			Y:         sumY / n,
			Timestamp: resampled[0][i].Timestamp,
		}
	}
	return averaged, nil
}
