package pad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/gesture"
)

func TestFeedback_Placement(t *testing.T) {
	var f Feedback
	f.Add(gesture.NewResult(gesture.KindTap, 1, nil, 0, gesture.Payload{gesture.KeyPosition: gesture.Vec2{X: 10, Y: 20}}))
	f.Add(gesture.NewResult(gesture.KindPinch, 0.85, nil, 0, gesture.Payload{gesture.KeyCenter: gesture.Vec2{X: 5, Y: 5}}))
	f.Add(gesture.NewResult(gesture.KindCustom, 0.7,
		[]gesture.TouchPoint{{Position: gesture.Vec2{X: 7, Y: 8}}}, 0, gesture.Payload{gesture.KeyName: "zigzag"}))

	require.Equal(t, 3, f.Len())
	assert.Equal(t, gesture.Vec2{X: 10, Y: 20}, f.markers[0].pos)
	assert.Equal(t, gesture.Vec2{X: 5, Y: 5}, f.markers[1].pos)
	assert.Equal(t, gesture.Vec2{X: 7, Y: 8}, f.markers[2].pos)
	assert.Equal(t, "custom:zigzag", f.markers[2].label)
}

func TestFeedback_Fade(t *testing.T) {
	var f Feedback
	f.Add(gesture.NewResult(gesture.KindTap, 1, nil, 0, nil))

	f.Update(fadeSeconds / 2)
	require.Equal(t, 1, f.Len())
	alpha := f.markers[0].alpha
	assert.Greater(t, alpha, float32(0))
	assert.Less(t, alpha, float32(1))

	f.Update(fadeSeconds)
	assert.Zero(t, f.Len())

	f.Add(gesture.NewResult(gesture.KindTap, 1, nil, 0, nil))
	f.Clear()
	assert.Zero(t, f.Len())
}
