package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Fixed recognition gates that are not part of Config.
const (
	// TapMaxDuration is the longest contact still classified as a tap.
	TapMaxDuration = 200 * time.Millisecond
	// MinGestureElapsed is one display frame; two-finger gestures need at
	// least this much history before they can fire.
	MinGestureElapsed = 16 * time.Millisecond
	// MinPinchDistanceChange is the smallest absolute finger-distance change
	// that can produce a pinch.
	MinPinchDistanceChange = 10.0
	// MinPinchInitialDistance guards the scale division.
	MinPinchInitialDistance = 1.0
	// MaxRotationDisagreement is the largest difference, in radians, between
	// the two fingers' rotations for them to count as one rotation.
	MaxRotationDisagreement = 0.5
)

// Config holds the named, immutable tunables consumed by the Engine.
type Config struct {
	MinDragDistance           float64       `json:"min_drag_distance"`
	MinSwipeDistance          float64       `json:"min_swipe_distance"`
	MaxSwipeTime              time.Duration `json:"max_swipe_time"`
	LongPressTime             time.Duration `json:"long_press_time"`
	DoubleTapTime             time.Duration `json:"double_tap_time"`
	DoubleTapDistance         float64       `json:"double_tap_distance"`
	MinPinchScale             float64       `json:"min_pinch_scale"`
	MinRotationAngle          float64       `json:"min_rotation_angle"`
	EnableMultiTouch          bool          `json:"enable_multi_touch"`
	MaxTouchPoints            int           `json:"max_touch_points"`
	EnablePressureSensitivity bool          `json:"enable_pressure_sensitivity"`
	MinPressure               float64       `json:"min_pressure"`
	EnableVelocityRecognition bool          `json:"enable_velocity_recognition"`
	MinSwipeVelocity          float64       `json:"min_swipe_velocity"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDragDistance:           10,
		MinSwipeDistance:          50,
		MaxSwipeTime:              300 * time.Millisecond,
		LongPressTime:             500 * time.Millisecond,
		DoubleTapTime:             300 * time.Millisecond,
		DoubleTapDistance:         50,
		MinPinchScale:             0.1,
		MinRotationAngle:          math.Pi / 12,
		EnableMultiTouch:          true,
		MaxTouchPoints:            10,
		EnablePressureSensitivity: false,
		MinPressure:               0.1,
		EnableVelocityRecognition: true,
		MinSwipeVelocity:          300,
	}
}

// Validate reports every out-of-range tunable.
func (c Config) Validate() error {
	var errs []error
	nonNegative := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %v", name, v))
		}
	}
	positiveDur := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, d))
		}
	}

	nonNegative("min_drag_distance", c.MinDragDistance)
	nonNegative("min_swipe_distance", c.MinSwipeDistance)
	nonNegative("double_tap_distance", c.DoubleTapDistance)
	nonNegative("min_pinch_scale", c.MinPinchScale)
	nonNegative("min_rotation_angle", c.MinRotationAngle)
	nonNegative("min_swipe_velocity", c.MinSwipeVelocity)
	positiveDur("max_swipe_time", c.MaxSwipeTime)
	positiveDur("long_press_time", c.LongPressTime)
	positiveDur("double_tap_time", c.DoubleTapTime)

	if c.MaxTouchPoints < 1 {
		errs = append(errs, fmt.Errorf("max_touch_points must be >= 1, got %d", c.MaxTouchPoints))
	}
	if c.MinPressure < 0 || c.MinPressure > 1 {
		errs = append(errs, fmt.Errorf("min_pressure must be within [0,1], got %v", c.MinPressure))
	}

	return errors.Join(errs...)
}
