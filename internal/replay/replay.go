// Package replay runs scripted pointer sequences through a session
// controller on a manual clock and records the gestures it recognizes.
//
// Scripts are YAML documents:
//
//	name: double_tap
//	engine:
//	  double_tap_time_ms: 400
//	events:
//	  - {type: down, pointer: 1, x: 100, y: 200, at_ms: 0}
//	  - {type: up, pointer: 1, at_ms: 80}
//	  - {type: wait, at_ms: 600}
//	expect: [tap]
//
// Each event moves the clock to at_ms, firing any timers due on the way,
// and is then delivered with at_ms as its timestamp. A wait event only
// moves the clock.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

var (
	// ErrInvalidScript is wrapped by every script validation error.
	ErrInvalidScript = errors.New("invalid replay script")
	// ErrUnexpected is returned by Check when the trace does not match.
	ErrUnexpected = errors.New("unexpected gestures")
)

const waitStep = "wait"

// Step is one scripted pointer event.
type Step struct {
	Type     string   `yaml:"type" json:"type"`
	Pointer  int      `yaml:"pointer" json:"pointer"`
	X        float64  `yaml:"x" json:"x"`
	Y        float64  `yaml:"y" json:"y"`
	Pressure *float64 `yaml:"pressure" json:"pressure,omitempty"`
	AtMs     int64    `yaml:"at_ms" json:"at_ms"`
}

// Script is a named pointer sequence with optional engine overrides and the
// gesture keys it is expected to produce.
type Script struct {
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description,omitempty"`
	Engine      *config.EngineOverrides `yaml:"engine" json:"engine,omitempty"`
	Events      []Step                  `yaml:"events" json:"events"`
	Expect      []string                `yaml:"expect" json:"expect,omitempty"`
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := config.DecodeYAML(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks event types, timestamps and the engine overrides.
func (s *Script) Validate() error {
	var errs []error
	if len(s.Events) == 0 {
		errs = append(errs, errors.New("script has no events"))
	}
	var last int64
	for i, step := range s.Events {
		if step.Type != waitStep {
			if _, err := session.ParseEventType(step.Type); err != nil {
				errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			}
		}
		if step.AtMs < 0 {
			errs = append(errs, fmt.Errorf("event %d: at_ms must be >= 0, got %d", i, step.AtMs))
		}
		if step.AtMs < last {
			errs = append(errs, fmt.Errorf("event %d: at_ms %d is before %d", i, step.AtMs, last))
		}
		last = max(last, step.AtMs)
	}
	if err := s.Config().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return nil
}

// Config returns the engine configuration the script runs with.
func (s *Script) Config() gesture.Config {
	return s.Engine.Apply(gesture.DefaultConfig())
}

// event converts a pointer step. A missing pressure reads as full pressure.
func (st Step) event() session.Event {
	typ, _ := session.ParseEventType(st.Type)
	pressure := 1.0
	if st.Pressure != nil {
		pressure = *st.Pressure
	}
	return session.Event{
		Type:      typ,
		PointerID: st.Pointer,
		Position:  gesture.Vec2{X: st.X, Y: st.Y},
		Pressure:  pressure,
		Timestamp: time.Duration(st.AtMs) * time.Millisecond,
	}
}

type options struct {
	recognizers []gesture.CustomRecognizer
	logger      *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithRecognizer registers a custom recognizer for the run.
func WithRecognizer(r gesture.CustomRecognizer) Option {
	return func(o *options) { o.recognizers = append(o.recognizers, r) }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run replays s against a fresh controller and returns every result in the
// order it was emitted.
func Run(s *Script, opts ...Option) (*Trace, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	clock := session.NewManualClock(0)
	ctrl := session.New(s.Config(),
		session.WithClock(clock),
		session.WithScheduler(clock),
		session.WithLogger(o.logger),
	)
	for _, r := range o.recognizers {
		ctrl.AddCustomRecognizer(r)
	}

	trace := &Trace{Name: s.Name}
	ctrl.OnAny(func(res gesture.Result) {
		trace.Entries = append(trace.Entries, Entry{At: clock.Now(), Result: res})
	})

	for _, step := range s.Events {
		clock.AdvanceTo(time.Duration(step.AtMs) * time.Millisecond)
		if step.Type == waitStep {
			continue
		}
		ctrl.Handle(step.event())
	}
	return trace, nil
}

// Entry is a result and the clock reading when it was emitted.
type Entry struct {
	At     time.Duration
	Result gesture.Result
}

// MarshalJSON flattens the entry for trace files.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AtMs       int64           `json:"at_ms"`
		Gesture    string          `json:"gesture"`
		Confidence float64         `json:"confidence"`
		Payload    gesture.Payload `json:"payload,omitempty"`
	}{
		AtMs:       e.At.Milliseconds(),
		Gesture:    e.Result.Key(),
		Confidence: e.Result.Confidence,
		Payload:    e.Result.Payload,
	})
}

// Trace is the outcome of a replay.
type Trace struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Keys returns the gesture key of every entry.
func (t *Trace) Keys() []string {
	keys := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		keys[i] = e.Result.Key()
	}
	return keys
}

// Check compares the emitted keys against expect, in order.
func (t *Trace) Check(expect []string) error {
	got := t.Keys()
	n := min(len(got), len(expect))
	for i := 0; i < n; i++ {
		if got[i] != expect[i] {
			return fmt.Errorf("%w: entry %d is %s, want %s (got [%s])",
				ErrUnexpected, i, got[i], expect[i], strings.Join(got, " "))
		}
	}
	switch {
	case len(got) > n:
		return fmt.Errorf("%w: extra %s (got [%s])", ErrUnexpected, strings.Join(got[n:], " "), strings.Join(got, " "))
	case len(expect) > n:
		return fmt.Errorf("%w: missing %s (got [%s])", ErrUnexpected, strings.Join(expect[n:], " "), strings.Join(got, " "))
	}
	return nil
}

// JSON encodes the trace with indentation.
func (t *Trace) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Text renders one line per entry: the clock reading, the gesture key, the
// confidence and the payload sorted by key.
//
//	scenario: swipe
//	150ms swipe_right 0.90 delta=(100,0) direction=swipe_right distance=100 ...
func (t *Trace) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", t.Name)
	if len(t.Entries) == 0 {
		b.WriteString("(no gestures)\n")
		return b.String()
	}
	for _, e := range t.Entries {
		fmt.Fprintf(&b, "%dms %s %.2f", e.At.Milliseconds(), e.Result.Key(), e.Result.Confidence)
		keys := make([]string, 0, len(e.Result.Payload))
		for k := range e.Result.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, formatValue(e.Result.Payload[k]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case float64:
		return formatFloat(v)
	case gesture.Vec2:
		return "(" + formatFloat(v.X) + "," + formatFloat(v.Y) + ")"
	case []int:
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = strconv.Itoa(id)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// formatFloat prints at most three decimals without trailing zeros.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
