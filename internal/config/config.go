// Package config loads the mudra configuration file.
//
// Files are YAML (.yaml, .yml) or TOML (.toml). Durations are written in
// milliseconds under *_ms keys. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/gesture"
)

// ErrInvalidConfig is wrapped by every parse and validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete application configuration.
type Config struct {
	Addr          string
	DataDir       string
	PluginDir     string
	ScriptDir     string
	StaticDir     string
	Journal       bool
	Tray          bool
	PluginTimeout time.Duration
	Engine        gesture.Config
}

// Default returns the configuration used when no file is present. Data
// lives under ~/.mudra.
func Default() Config {
	dataDir := ".mudra"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".mudra")
	}
	return Config{
		Addr:          ":8080",
		DataDir:       dataDir,
		PluginDir:     filepath.Join(dataDir, "plugins"),
		ScriptDir:     filepath.Join(dataDir, "scripts"),
		Journal:       true,
		PluginTimeout: 5 * time.Second,
		Engine:        gesture.DefaultConfig(),
	}
}

// Validate checks the service settings and the engine tunables.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.PluginTimeout <= 0 {
		errs = append(errs, fmt.Errorf("plugin_timeout_ms must be > 0, got %v", c.PluginTimeout))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// EngineOverrides is the engine section of a file. Unset keys keep the base
// value.
type EngineOverrides struct {
	MinDragDistance           *float64 `json:"min_drag_distance,omitempty" yaml:"min_drag_distance" toml:"min_drag_distance"`
	MinSwipeDistance          *float64 `json:"min_swipe_distance,omitempty" yaml:"min_swipe_distance" toml:"min_swipe_distance"`
	MaxSwipeTimeMs            *int64   `json:"max_swipe_time_ms,omitempty" yaml:"max_swipe_time_ms" toml:"max_swipe_time_ms"`
	LongPressTimeMs           *int64   `json:"long_press_time_ms,omitempty" yaml:"long_press_time_ms" toml:"long_press_time_ms"`
	DoubleTapTimeMs           *int64   `json:"double_tap_time_ms,omitempty" yaml:"double_tap_time_ms" toml:"double_tap_time_ms"`
	DoubleTapDistance         *float64 `json:"double_tap_distance,omitempty" yaml:"double_tap_distance" toml:"double_tap_distance"`
	MinPinchScale             *float64 `json:"min_pinch_scale,omitempty" yaml:"min_pinch_scale" toml:"min_pinch_scale"`
	MinRotationAngle          *float64 `json:"min_rotation_angle,omitempty" yaml:"min_rotation_angle" toml:"min_rotation_angle"`
	MinRotationDegrees        *float64 `json:"min_rotation_degrees,omitempty" yaml:"min_rotation_degrees" toml:"min_rotation_degrees"`
	EnableMultiTouch          *bool    `json:"enable_multi_touch,omitempty" yaml:"enable_multi_touch" toml:"enable_multi_touch"`
	MaxTouchPoints            *int     `json:"max_touch_points,omitempty" yaml:"max_touch_points" toml:"max_touch_points"`
	EnablePressureSensitivity *bool    `json:"enable_pressure_sensitivity,omitempty" yaml:"enable_pressure_sensitivity" toml:"enable_pressure_sensitivity"`
	MinPressure               *float64 `json:"min_pressure,omitempty" yaml:"min_pressure" toml:"min_pressure"`
	EnableVelocityRecognition *bool    `json:"enable_velocity_recognition,omitempty" yaml:"enable_velocity_recognition" toml:"enable_velocity_recognition"`
	MinSwipeVelocity          *float64 `json:"min_swipe_velocity,omitempty" yaml:"min_swipe_velocity" toml:"min_swipe_velocity"`
}

// Apply returns base with every set override applied. min_rotation_degrees
// wins over min_rotation_angle when both are set.
func (o *EngineOverrides) Apply(base gesture.Config) gesture.Config {
	if o == nil {
		return base
	}
	setFloat(&base.MinDragDistance, o.MinDragDistance)
	setFloat(&base.MinSwipeDistance, o.MinSwipeDistance)
	setMillis(&base.MaxSwipeTime, o.MaxSwipeTimeMs)
	setMillis(&base.LongPressTime, o.LongPressTimeMs)
	setMillis(&base.DoubleTapTime, o.DoubleTapTimeMs)
	setFloat(&base.DoubleTapDistance, o.DoubleTapDistance)
	setFloat(&base.MinPinchScale, o.MinPinchScale)
	setFloat(&base.MinRotationAngle, o.MinRotationAngle)
	if o.MinRotationDegrees != nil {
		base.MinRotationAngle = *o.MinRotationDegrees * math.Pi / 180
	}
	setBool(&base.EnableMultiTouch, o.EnableMultiTouch)
	if o.MaxTouchPoints != nil {
		base.MaxTouchPoints = *o.MaxTouchPoints
	}
	setBool(&base.EnablePressureSensitivity, o.EnablePressureSensitivity)
	setFloat(&base.MinPressure, o.MinPressure)
	setBool(&base.EnableVelocityRecognition, o.EnableVelocityRecognition)
	setFloat(&base.MinSwipeVelocity, o.MinSwipeVelocity)
	return base
}

// FromEngine returns overrides setting every tunable of c. Rotation is
// given in radians.
func FromEngine(c gesture.Config) *EngineOverrides {
	ms := func(d time.Duration) *int64 {
		v := d.Milliseconds()
		return &v
	}
	return &EngineOverrides{
		MinDragDistance:           &c.MinDragDistance,
		MinSwipeDistance:          &c.MinSwipeDistance,
		MaxSwipeTimeMs:            ms(c.MaxSwipeTime),
		LongPressTimeMs:           ms(c.LongPressTime),
		DoubleTapTimeMs:           ms(c.DoubleTapTime),
		DoubleTapDistance:         &c.DoubleTapDistance,
		MinPinchScale:             &c.MinPinchScale,
		MinRotationAngle:          &c.MinRotationAngle,
		EnableMultiTouch:          &c.EnableMultiTouch,
		MaxTouchPoints:            &c.MaxTouchPoints,
		EnablePressureSensitivity: &c.EnablePressureSensitivity,
		MinPressure:               &c.MinPressure,
		EnableVelocityRecognition: &c.EnableVelocityRecognition,
		MinSwipeVelocity:          &c.MinSwipeVelocity,
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int64) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

type file struct {
	Addr            *string          `yaml:"addr" toml:"addr"`
	DataDir         *string          `yaml:"data_dir" toml:"data_dir"`
	PluginDir       *string          `yaml:"plugin_dir" toml:"plugin_dir"`
	ScriptDir       *string          `yaml:"script_dir" toml:"script_dir"`
	StaticDir       *string          `yaml:"static_dir" toml:"static_dir"`
	Journal         *bool            `yaml:"journal" toml:"journal"`
	Tray            *bool            `yaml:"tray" toml:"tray"`
	PluginTimeoutMs *int64           `yaml:"plugin_timeout_ms" toml:"plugin_timeout_ms"`
	Engine          *EngineOverrides `yaml:"engine" toml:"engine"`
}

func (f file) apply(base Config) Config {
	if f.Addr != nil {
		base.Addr = *f.Addr
	}
	if f.DataDir != nil {
		base.DataDir = *f.DataDir
		// directories not given explicitly follow the data dir
		if f.PluginDir == nil {
			base.PluginDir = filepath.Join(base.DataDir, "plugins")
		}
		if f.ScriptDir == nil {
			base.ScriptDir = filepath.Join(base.DataDir, "scripts")
		}
	}
	if f.PluginDir != nil {
		base.PluginDir = *f.PluginDir
	}
	if f.ScriptDir != nil {
		base.ScriptDir = *f.ScriptDir
	}
	if f.StaticDir != nil {
		base.StaticDir = *f.StaticDir
	}
	setBool(&base.Journal, f.Journal)
	setBool(&base.Tray, f.Tray)
	setMillis(&base.PluginTimeout, f.PluginTimeoutMs)
	base.Engine = f.Engine.Apply(base.Engine)
	return base
}

// ParseError reports a malformed configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap exposes both ErrInvalidConfig and the decoder's error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// Load reads path over Default(). An empty path or a missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data, cfg)
}

// Parse decodes data over base, choosing the format from path's extension.
func Parse(path string, data []byte, base Config) (Config, error) {
	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := DecodeYAML(data, &f); err != nil {
			return Config{}, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	case ".toml":
		if err := decodeTOML(data, &f); err != nil {
			perr := &ParseError{Path: path, Message: err.Error(), Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				perr.Line, perr.Column = de.Position()
			}
			return Config{}, perr
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, ext)
	}

	cfg := f.apply(base)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeYAML decodes data into v rejecting unknown fields. An empty document
// leaves v untouched.
func DecodeYAML(data []byte, v any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func decodeTOML(data []byte, v any) error {
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
