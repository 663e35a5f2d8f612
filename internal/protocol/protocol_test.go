package protocol

import (
	"testing"

	"github.com/srg/blepilot/internal/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(axes ...control.Axis) control.Snapshot {
	s := control.NewState(control.DroneAxes...)
	for _, a := range axes {
		s.Set(a, true)
	}
	return s.Snapshot()
}

func TestEncodeCar(t *testing.T) {
	tests := []struct {
		name string
		axes []control.Axis
		want byte
	}{
		{name: "idle", want: 0},
		{name: "forward", axes: []control.Axis{control.Forward}, want: 1},
		{name: "backward", axes: []control.Axis{control.Backward}, want: 2},
		{name: "forward left", axes: []control.Axis{control.Forward, control.Left}, want: 0b0101},
		{name: "backward right", axes: []control.Axis{control.Backward, control.Right}, want: 0b1010},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := EncodeCar(snapshot(tt.axes...))
			assert.Equal(t, []byte{tt.want}, f.Bytes())
		})
	}
}

func TestEncodeDrone(t *testing.T) {
	f := EncodeDrone(snapshot(control.Forward), 7)
	assert.Equal(t, []byte{2, 7, 2, 0, 2, 0, 1, 0, 50, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, f.Bytes())

	f = EncodeDrone(snapshot(control.Left, control.Backward, control.TurnLeft, control.Descend), 255)
	assert.Equal(t, []byte{2, 255, 2, 0, 2, 0, 1, 200, 200, 200, 200, 0, 0, 0, 0, 0, 0, 0, 0, 0}, f.Bytes())
}

func TestEncodeDrone_MotionFlag(t *testing.T) {
	for seq := 0; seq < 256; seq++ {
		f := EncodeDrone(snapshot(), uint8(seq))
		require.Equal(t, DroneFrameLen, f.Len())
		require.Equal(t, byte(0), f.At(6), "idle frame MUST have motion flag 0 for seq %d", seq)
	}

	f := EncodeDrone(snapshot(control.Ascend, control.TurnRight), 1)
	assert.Equal(t, byte(0), f.At(6), "yaw and altitude MUST not set the motion flag")
	assert.Equal(t, byte(50), f.At(9))
	assert.Equal(t, byte(50), f.At(10))

	f = EncodeDrone(snapshot(control.Right), 1)
	assert.Equal(t, byte(1), f.At(6))
	assert.Equal(t, byte(50), f.At(7))
}

func TestEncoders_AreDeterministic(t *testing.T) {
	s := snapshot(control.Forward, control.Right, control.Ascend)
	assert.True(t, EncodeDrone(s, 42).Equal(EncodeDrone(s, 42)))
	assert.True(t, EncodeCar(s).Equal(EncodeCar(s)))

	g := Grid{}.Set(3, 9, true)
	assert.True(t, EncodeMatrix(g).Equal(EncodeMatrix(g)))
}

func TestDroneCommands(t *testing.T) {
	assert.Equal(t, []byte{4, 3, 2, 0, 1, 0}, DroneTakeOff(3).Bytes())
	assert.Equal(t, []byte{4, 4, 2, 0, 3, 0}, DroneLand(4).Bytes())
	assert.Equal(t, []byte{2, 5, 2, 4, 0, 0, 0, 0, 0, 0}, DroneFlip(5).Bytes())
}

func TestSequence_Wraps(t *testing.T) {
	var s Sequence
	for i := 0; i < 255; i++ {
		s.Next()
	}
	assert.Equal(t, uint8(255), s.Peek())
	assert.Equal(t, uint8(255), s.Next())
	assert.Equal(t, uint8(0), s.Next(), "sequence MUST wrap at 256")
}

func TestSequence_Release(t *testing.T) {
	var s Sequence
	first := s.Next()
	assert.True(t, s.Release(first))
	assert.Equal(t, uint8(0), s.Peek(), "released number MUST be handed out again")

	a := s.Next()
	s.Next()
	assert.False(t, s.Release(a), "only the most recent number MAY be released")
	assert.Equal(t, uint8(2), s.Peek())

	var w Sequence
	for i := 0; i < 255; i++ {
		w.Next()
	}
	last := w.Next()
	assert.True(t, w.Release(last), "release MUST work across the wrap")
	assert.Equal(t, uint8(255), w.Peek())
}

func TestFrame_IsImmutable(t *testing.T) {
	src := []byte{1, 2, 3}
	f := NewFrame(src...)
	src[0] = 9

	out := f.Bytes()
	out[1] = 9

	assert.Equal(t, []byte{1, 2, 3}, f.Bytes(), "frame MUST not share memory with callers")
	assert.Equal(t, "01 02 03", f.String())
	assert.True(t, Frame{}.IsZero())
	assert.False(t, f.Equal(Frame{}))
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		hex     bool
		want    []byte
		wantErr string
	}{
		{name: "decimal list", text: "4,0,2,0,1,0", want: []byte{4, 0, 2, 0, 1, 0}},
		{name: "decimal spaces", text: " 255 1 ", want: []byte{255, 1}},
		{name: "hex", text: "0a0B ff", hex: true, want: []byte{0x0a, 0x0b, 0xff}},
		{name: "hex with colons and prefix", text: "0x01:02", hex: true, want: []byte{1, 2}},
		{name: "out of range", text: "256", wantErr: "must be 0-255"},
		{name: "bad hex", text: "abc", hex: true, wantErr: "invalid hex payload"},
		{name: "empty", text: "  ", wantErr: "empty payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame(tt.text, tt.hex)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Bytes())
		})
	}
}
