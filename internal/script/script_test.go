package script

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/gesture"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

const flickScript = `
function recognize(h)
  if h.phase ~= "up" or #h.pointers ~= 1 then
    return nil
  end
  local s = h.pointers[1].samples
  if #s < 3 then
    return nil
  end
  local dx = s[#s].x - s[1].x
  if dx < 100 then
    return nil
  end
  return {name = "flick", confidence = 0.7, payload = {dx = dx, fast = (s[#s].t - s[1].t) < 200, label = "right"}}
end
`

func history(phase gesture.Phase, xs ...float64) gesture.History {
	samples := make([]gesture.TouchPoint, len(xs))
	for i, x := range xs {
		samples[i] = gesture.TouchPoint{
			PointerID: 4,
			Position:  gesture.Vec2{X: x, Y: 10},
			Pressure:  1,
			Timestamp: time.Duration(i*50) * time.Millisecond,
		}
	}
	return gesture.History{Pointers: map[int][]gesture.TouchPoint{4: samples}, PointerID: 4, Phase: phase}
}

func TestRecognize(t *testing.T) {
	r, err := Load("flicks", flickScript, quiet)
	require.NoError(t, err)
	defer r.Close()

	res, ok := r.Recognize(history(gesture.PhaseUp, 0, 60, 150))
	require.True(t, ok)
	assert.Equal(t, gesture.KindCustom, res.Kind)
	assert.Equal(t, "custom:flick", res.Key())
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, 100*time.Millisecond, res.Duration)
	assert.Len(t, res.Points, 3)

	dx, _ := res.Payload.Float("dx")
	assert.InDelta(t, 150, dx, 1e-9)
	fast, _ := res.Payload.Bool("fast")
	assert.True(t, fast)
	label, _ := res.Payload.Text("label")
	assert.Equal(t, "right", label)
}

func TestRecognizeNoMatch(t *testing.T) {
	r, err := Load("flicks", flickScript, quiet)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Recognize(history(gesture.PhaseMove, 0, 60, 150))
	assert.False(t, ok)
	_, ok = r.Recognize(history(gesture.PhaseUp, 0, 20, 40))
	assert.False(t, ok)
}

func TestRecognizeDefaultsToScriptName(t *testing.T) {
	r, err := Load("always", `function recognize(h) return true end`, quiet)
	require.NoError(t, err)
	defer r.Close()

	res, ok := r.Recognize(history(gesture.PhaseMove, 1, 2))
	require.True(t, ok)
	assert.Equal(t, "custom:always", res.Key())
	assert.Equal(t, 1.0, res.Confidence)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("empty", `local x = 1`, quiet)
	assert.ErrorIs(t, err, ErrNoRecognizeFunc)

	_, err = Load("broken", `function recognize(h`, quiet)
	assert.Error(t, err)
}

func TestSandbox(t *testing.T) {
	for _, src := range []string{
		`os.exit(1)`,
		`io.write("x")`,
		`dofile("/etc/passwd")`,
		`require("os")`,
	} {
		_, err := Load("escape", src+"\nfunction recognize(h) return nil end", quiet)
		assert.Error(t, err, src)
	}
}

func TestRuntimeErrorIsNoMatch(t *testing.T) {
	r, err := Load("bad", `function recognize(h) return h.nothing.here end`, quiet)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Recognize(history(gesture.PhaseUp, 0, 1))
	assert.False(t, ok)

	// the state stays usable
	_, ok = r.Recognize(history(gesture.PhaseUp, 0, 1))
	assert.False(t, ok)
}

func TestTimeout(t *testing.T) {
	r, err := Load("spin", `function recognize(h) while true do end end`, quiet, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)
	defer r.Close()

	start := time.Now()
	_, ok := r.Recognize(history(gesture.PhaseUp, 0, 1))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUnexpectedReturnType(t *testing.T) {
	r, err := Load("number", `function recognize(h) return 42 end`, quiet)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Recognize(history(gesture.PhaseUp, 0, 1))
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	r, err := Load("always", `function recognize(h) return true end`, quiet)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, ok := r.Recognize(history(gesture.PhaseUp, 0, 1))
	assert.False(t, ok)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_second.lua"), []byte(`function recognize(h) return nil end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_first.lua"), []byte(flickScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	recs, err := LoadDir(dir, quiet)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a_first", recs[0].Name())
	assert.Equal(t, "b_second", recs[1].Name())
	for _, r := range recs {
		r.Close()
	}

	recs, err = LoadDir(filepath.Join(dir, "missing"), quiet)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.lua"), []byte(`x = `), 0o644))
	_, err = LoadDir(dir, quiet)
	assert.Error(t, err)
}

func TestHistoryTableOrdersPointers(t *testing.T) {
	r, err := Load("ids", `
function recognize(h)
  local ids = {}
  for i, p in ipairs(h.pointers) do ids[i] = tostring(p.id) end
  return {name = table.concat(ids, "-"), payload = {pointer = h.pointer}}
end`, quiet)
	require.NoError(t, err)
	defer r.Close()

	h := gesture.History{
		Pointers: map[int][]gesture.TouchPoint{
			9: {{PointerID: 9}},
			2: {{PointerID: 2}},
		},
		PointerID: 9,
		Phase:     gesture.PhaseMove,
	}
	res, ok := r.Recognize(h)
	require.True(t, ok)
	assert.Equal(t, "custom:2-9", res.Key())
	p, _ := res.Payload.Float("pointer")
	assert.Equal(t, 9.0, p)
}
