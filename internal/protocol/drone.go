package protocol

import "github.com/srg/blepilot/internal/control"

// Axis magnitudes of the drone piloting frame.
const (
	DroneNeutral  byte = 0
	DronePositive byte = 50  // right, forward, turn right, ascend
	DroneNegative byte = 200 // left, backward, turn left, descend
)

// DroneFrameLen is the length of the periodic piloting frame.
const DroneFrameLen = 20

// DroneSpeeds holds the per-axis magnitudes derived from a control snapshot.
type DroneSpeeds struct {
	Roll     byte
	Pitch    byte
	Yaw      byte
	Altitude byte
}

func axisSpeed(s control.Snapshot, positive, negative control.Axis) byte {
	switch {
	case s.Active(positive):
		return DronePositive
	case s.Active(negative):
		return DroneNegative
	default:
		return DroneNeutral
	}
}

// Speeds maps a snapshot to the drone axis magnitudes.
func Speeds(s control.Snapshot) DroneSpeeds {
	return DroneSpeeds{
		Roll:     axisSpeed(s, control.Right, control.Left),
		Pitch:    axisSpeed(s, control.Forward, control.Backward),
		Yaw:      axisSpeed(s, control.TurnRight, control.TurnLeft),
		Altitude: axisSpeed(s, control.Ascend, control.Descend),
	}
}

// EncodeDrone builds the 20-byte piloting frame
// [2, seq, 2, 0, 2, 0, motion, roll, pitch, yaw, altitude, 0 x 9].
// motion is 1 only when pitch or roll is set.
func EncodeDrone(s control.Snapshot, seq uint8) Frame {
	sp := Speeds(s)
	var motion byte
	if sp.Pitch != DroneNeutral || sp.Roll != DroneNeutral {
		motion = 1
	}

	b := make([]byte, DroneFrameLen)
	copy(b, []byte{2, seq, 2, 0, 2, 0, motion, sp.Roll, sp.Pitch, sp.Yaw, sp.Altitude})
	return NewFrame(b...)
}

// DroneTakeOff builds the take-off command.
func DroneTakeOff(seq uint8) Frame {
	return NewFrame(4, seq, 2, 0, 1, 0)
}

// DroneLand builds the landing command.
func DroneLand(seq uint8) Frame {
	return NewFrame(4, seq, 2, 0, 3, 0)
}

// DroneFlip builds the flip animation command.
func DroneFlip(seq uint8) Frame {
	return NewFrame(2, seq, 2, 4, 0, 0, 0, 0, 0, 0)
}
