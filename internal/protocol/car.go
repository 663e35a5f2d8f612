package protocol

import "github.com/srg/blepilot/internal/control"

// EncodeCar packs the car axes into a single byte:
// bit0 forward, bit1 backward, bit2 left, bit3 right.
func EncodeCar(s control.Snapshot) Frame {
	var b byte
	for bit, axis := range control.CarAxes {
		if s.Active(axis) {
			b |= 1 << bit
		}
	}
	return NewFrame(b)
}
