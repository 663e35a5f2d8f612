package keymap

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/control"
	"github.com/srg/blepilot/internal/protocol"
)

// Car binds arrows and WASD to driving, Space to stop and Enter to arm/disarm.
func Car(state *control.State, toggle func(), logger *logrus.Logger) *Keymap {
	return New("car", state, logger).
		BindAxis("forward", control.Forward, KeyUp, KeyW).
		BindAxis("backward", control.Backward, KeyDown, KeyS).
		BindAxis("left", control.Left, KeyLeft, KeyA).
		BindAxis("right", control.Right, KeyRight, KeyD).
		BindTrigger("stop", state.Stop, KeySpace).
		BindTrigger("start/stop sending", toggle, KeyEnter).
		Ignore(KeyCtrl, KeyShift)
}

// DroneActions are the one-shot commands of the drone keymap.
type DroneActions struct {
	TakeOff func()
	Land    func()
	Flip    func()
}

// Drone binds WASD to altitude and yaw, arrows to pitch and roll.
func Drone(state *control.State, actions DroneActions, logger *logrus.Logger) *Keymap {
	return New("drone", state, logger).
		BindAxis("ascend", control.Ascend, KeyW).
		BindAxis("descend", control.Descend, KeyS).
		BindAxis("turn left", control.TurnLeft, KeyA).
		BindAxis("turn right", control.TurnRight, KeyD).
		BindAxis("forward", control.Forward, KeyUp).
		BindAxis("backward", control.Backward, KeyDown).
		BindAxis("left", control.Left, KeyLeft).
		BindAxis("right", control.Right, KeyRight).
		BindTrigger("hover", state.Stop, KeySpace).
		BindTrigger("take off", actions.TakeOff, KeyT).
		BindTrigger("land", actions.Land, KeyEnter).
		BindTrigger("flip", actions.Flip, KeyF).
		Ignore(KeyCtrl, KeyShift)
}

// LED binds arrows to the cursor and letters to board edits. changed runs
// after every edit of the grid.
func LED(board *protocol.Board, changed func(), logger *logrus.Logger) *Keymap {
	edit := func(fn func()) func() {
		return func() {
			fn()
			if changed != nil {
				changed()
			}
		}
	}
	return New("led", nil, logger).
		BindRepeating("up", func() { board.MoveCursor(-1, 0) }, KeyUp).
		BindRepeating("down", func() { board.MoveCursor(1, 0) }, KeyDown).
		BindRepeating("left", func() { board.MoveCursor(0, -1) }, KeyLeft).
		BindRepeating("right", func() { board.MoveCursor(0, 1) }, KeyRight).
		BindTrigger("toggle", edit(board.ToggleCursor), KeySpace).
		BindTrigger("flip", edit(board.Flip), KeyF).
		BindTrigger("rotate view", board.Rotate, KeyR).
		BindTrigger("reset", edit(board.Reset), KeyX).
		Ignore(KeyCtrl, KeyShift)
}
