// Package control holds the user-driven control state of a vehicle.
package control

import (
	"fmt"
	"strings"
	"sync"
)

// Axis is a single boolean movement input.
type Axis uint8

const (
	Forward Axis = iota
	Backward
	Left
	Right
	Ascend
	Descend
	TurnLeft
	TurnRight
	axisCount
)

var axisNames = [axisCount]string{
	Forward:   "forward",
	Backward:  "backward",
	Left:      "left",
	Right:     "right",
	Ascend:    "ascend",
	Descend:   "descend",
	TurnLeft:  "turnLeft",
	TurnRight: "turnRight",
}

func (a Axis) String() string {
	if a < axisCount {
		return axisNames[a]
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}

// ParseAxis returns the axis with the given name (case-insensitive).
func ParseAxis(name string) (Axis, error) {
	for i, n := range axisNames {
		if strings.EqualFold(n, name) {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

// exclusivePairs lists axes that may never be active together.
var exclusivePairs = [][2]Axis{
	{Forward, Backward},
	{Left, Right},
	{Ascend, Descend},
	{TurnLeft, TurnRight},
}

func opposite(a Axis) (Axis, bool) {
	for _, p := range exclusivePairs {
		switch a {
		case p[0]:
			return p[1], true
		case p[1]:
			return p[0], true
		}
	}
	return 0, false
}

// Axis sets of the built-in vehicles.
var (
	CarAxes   = []Axis{Forward, Backward, Left, Right}
	DroneAxes = []Axis{Forward, Backward, Left, Right, Ascend, Descend, TurnLeft, TurnRight}
)

// Snapshot is an immutable copy of the active axes.
type Snapshot uint16

func (s Snapshot) Active(a Axis) bool {
	return a < axisCount && s&(1<<a) != 0
}

// Idle reports whether no axis is active.
func (s Snapshot) Idle() bool {
	return s == 0
}

func (s Snapshot) String() string {
	var active []string
	for a := Axis(0); a < axisCount; a++ {
		if s.Active(a) {
			active = append(active, a.String())
		}
	}
	if len(active) == 0 {
		return "idle"
	}
	return strings.Join(active, "+")
}

// State is the mutable control state of one vehicle. Setting an axis while its
// opposite is active is ignored; releasing is always allowed.
// State is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	allowed Snapshot
	active  Snapshot
}

// NewState creates a state accepting only the given axes.
func NewState(axes ...Axis) *State {
	var allowed Snapshot
	for _, a := range axes {
		if a < axisCount {
			allowed |= 1 << a
		}
	}
	return &State{allowed: allowed}
}

// Set activates or releases an axis and reports whether the state changed.
func (s *State) Set(a Axis, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowed.Active(a) {
		return false
	}
	if !on {
		changed := s.active.Active(a)
		s.active &^= 1 << a
		return changed
	}
	if opp, ok := opposite(a); ok && s.active.Active(opp) {
		return false
	}
	changed := !s.active.Active(a)
	s.active |= 1 << a
	return changed
}

// Release deactivates an axis.
func (s *State) Release(a Axis) bool {
	return s.Set(a, false)
}

// Stop releases every axis.
func (s *State) Stop() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

// Supports reports whether the axis belongs to this state.
func (s *State) Supports(a Axis) bool {
	return s.allowed.Active(a)
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
