// Package script runs custom gesture recognizers written in Lua.
//
// A script defines a global function recognize(history). history is a table
//
//	{phase = "move"|"up", pointer = <id>, pointers = {{id = <id>, samples = {{x, y, pressure, t}, ...}}, ...}}
//
// with t in milliseconds and pointers ordered by id. The function returns nil
// for no match, or a table {name = ..., confidence = ..., payload = {...}}.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ayusman/mudra/internal/gesture"
)

// DefaultTimeout bounds a single recognize call.
const DefaultTimeout = 20 * time.Millisecond

var (
	// ErrNoRecognizeFunc is returned when a script does not define recognize.
	ErrNoRecognizeFunc = errors.New("script does not define recognize(history)")
	// ErrClosed is returned when using a closed recognizer.
	ErrClosed = errors.New("script recognizer is closed")
)

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithTimeout sets the deadline for each recognize call.
func WithTimeout(d time.Duration) Option {
	return func(r *Recognizer) { r.timeout = d }
}

// WithLogger sets the logger for script failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.log = l }
}

// Recognizer is a gesture.CustomRecognizer backed by a Lua script. A Lua
// state is single-threaded, so calls are serialized.
type Recognizer struct {
	name    string
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	L      *lua.LState
	fn     *lua.LFunction
	closed bool
}

// Load compiles source in a fresh sandboxed state.
func Load(name, source string, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{name: name, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := doWithRecovery(func() error { return L.DoString(source) }); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script %s: %w", name, err)
	}
	fn, ok := L.GetGlobal("recognize").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("load script %s: %w", name, ErrNoRecognizeFunc)
	}

	r.L = L
	r.fn = fn
	return r, nil
}

// LoadFile loads a script named after its file name without extension.
func LoadFile(path string, opts ...Option) (*Recognizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, string(data), opts...)
}

// LoadDir loads every *.lua file in dir, in file name order. A missing
// directory yields no recognizers. On error every recognizer loaded so far
// is closed.
func LoadDir(dir string, opts ...Option) ([]*Recognizer, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	sort.Strings(paths)

	var out []*Recognizer
	for _, path := range paths {
		r, err := LoadFile(path, opts...)
		if err != nil {
			for _, loaded := range out {
				loaded.Close()
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// openSafeLibraries opens base, table, string and math, then removes the
// functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Name returns the script name.
func (r *Recognizer) Name() string {
	return r.name
}

// Recognize calls the script's recognize function. Script errors and
// timeouts are logged and count as no match.
func (r *Recognizer) Recognize(h gesture.History) (gesture.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return gesture.Result{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	top := r.L.GetTop()
	err := doWithRecovery(func() error {
		return r.L.CallByParam(lua.P{Fn: r.fn, NRet: 1, Protect: true}, historyTable(r.L, h))
	})
	if err != nil {
		r.L.SetTop(top)
		r.log.Warn("script recognizer failed", "script", r.name, "error", err)
		return gesture.Result{}, false
	}
	ret := r.L.Get(-1)
	r.L.SetTop(top)

	switch v := ret.(type) {
	case *lua.LTable:
		return r.result(v, h), true
	case *lua.LNilType, lua.LBool:
		if lua.LVAsBool(ret) {
			return r.result(r.L.NewTable(), h), true
		}
		return gesture.Result{}, false
	default:
		r.log.Warn("script recognizer returned unexpected value", "script", r.name, "type", ret.Type().String())
		return gesture.Result{}, false
	}
}

func (r *Recognizer) result(tbl *lua.LTable, h gesture.History) gesture.Result {
	payload := gesture.Payload{}
	if p, ok := tbl.RawGetString("payload").(*lua.LTable); ok {
		p.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			switch val := v.(type) {
			case lua.LNumber:
				payload[string(key)] = float64(val)
			case lua.LBool:
				payload[string(key)] = bool(val)
			case lua.LString:
				payload[string(key)] = string(val)
			}
		})
	}

	name := r.name
	if s, ok := tbl.RawGetString("name").(lua.LString); ok && s != "" {
		name = string(s)
	}
	payload[gesture.KeyName] = name

	confidence := 1.0
	if n, ok := tbl.RawGetString("confidence").(lua.LNumber); ok {
		confidence = float64(n)
	}

	samples := h.Of(h.PointerID)
	var duration time.Duration
	if len(samples) > 0 {
		duration = samples[len(samples)-1].Timestamp - samples[0].Timestamp
	}
	return gesture.NewResult(gesture.KindCustom, confidence, samples, duration, payload)
}

// Close releases the Lua state. Later calls to Recognize never match.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.L.Close()
	r.closed = true
	return nil
}

func historyTable(L *lua.LState, h gesture.History) *lua.LTable {
	t := L.NewTable()
	phase := "move"
	if h.Phase == gesture.PhaseUp {
		phase = "up"
	}
	t.RawSetString("phase", lua.LString(phase))
	t.RawSetString("pointer", lua.LNumber(h.PointerID))

	pointers := L.NewTable()
	for _, id := range h.IDs() {
		entry := L.NewTable()
		entry.RawSetString("id", lua.LNumber(id))
		samples := L.NewTable()
		for _, p := range h.Of(id) {
			s := L.NewTable()
			s.RawSetString("x", lua.LNumber(p.Position.X))
			s.RawSetString("y", lua.LNumber(p.Position.Y))
			s.RawSetString("pressure", lua.LNumber(p.Pressure))
			s.RawSetString("t", lua.LNumber(float64(p.Timestamp)/float64(time.Millisecond)))
			samples.Append(s)
		}
		entry.RawSetString("samples", samples)
		pointers.Append(entry)
	}
	t.RawSetString("pointers", pointers)
	return t
}
