package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_OpposingAxesAreExclusive(t *testing.T) {
	tests := []struct {
		first, second Axis
	}{
		{Forward, Backward},
		{Backward, Forward},
		{Left, Right},
		{Ascend, Descend},
		{TurnRight, TurnLeft},
	}

	for _, tt := range tests {
		t.Run(tt.first.String()+"/"+tt.second.String(), func(t *testing.T) {
			s := NewState(DroneAxes...)
			require.True(t, s.Set(tt.first, true))

			assert.False(t, s.Set(tt.second, true), "setting the opposite axis MUST be a no-op")
			snap := s.Snapshot()
			assert.True(t, snap.Active(tt.first))
			assert.False(t, snap.Active(tt.second))

			require.True(t, s.Release(tt.first))
			assert.True(t, s.Set(tt.second, true), "opposite axis MUST be settable after release")
		})
	}
}

func TestState_ReleaseIsAlwaysAllowed(t *testing.T) {
	s := NewState(CarAxes...)
	assert.False(t, s.Release(Forward), "releasing an inactive axis changes nothing")

	s.Set(Forward, true)
	s.Set(Left, true)
	assert.Equal(t, "forward+left", s.Snapshot().String())

	assert.True(t, s.Release(Left))
	assert.Equal(t, "forward", s.Snapshot().String())
}

func TestState_SetIsIdempotent(t *testing.T) {
	s := NewState(CarAxes...)
	assert.True(t, s.Set(Right, true))
	assert.False(t, s.Set(Right, true), "repeated press MUST not report a change")
	assert.True(t, s.Snapshot().Active(Right))
}

func TestState_IgnoresUnsupportedAxes(t *testing.T) {
	s := NewState(CarAxes...)
	assert.False(t, s.Supports(Ascend))
	assert.False(t, s.Set(Ascend, true))
	assert.True(t, s.Snapshot().Idle())
}

func TestState_Stop(t *testing.T) {
	s := NewState(DroneAxes...)
	s.Set(Forward, true)
	s.Set(Ascend, true)
	s.Set(TurnLeft, true)

	s.Stop()
	assert.True(t, s.Snapshot().Idle(), "stop MUST release every axis")
	assert.Equal(t, "idle", s.Snapshot().String())
}

func TestState_SnapshotIsDetached(t *testing.T) {
	s := NewState(CarAxes...)
	s.Set(Forward, true)
	snap := s.Snapshot()

	s.Stop()
	assert.True(t, snap.Active(Forward), "snapshot MUST not observe later mutations")
}

func TestState_ConcurrentOpposites(t *testing.T) {
	s := NewState(CarAxes...)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.Set(Forward, true); s.Release(Forward) }()
		go func() { defer wg.Done(); s.Set(Backward, true); s.Release(Backward) }()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.False(t, snap.Active(Forward) && snap.Active(Backward))
}

func TestParseAxis(t *testing.T) {
	a, err := ParseAxis("TurnLeft")
	require.NoError(t, err)
	assert.Equal(t, TurnLeft, a)

	_, err = ParseAxis("sideways")
	assert.ErrorContains(t, err, "unknown axis")
	assert.Equal(t, "axis(42)", Axis(42).String())
}
