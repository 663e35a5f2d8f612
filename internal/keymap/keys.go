// Package keymap binds key codes to control actions.
package keymap

import "fmt"

// Code is a key code. Values follow the DOM keyCode numbering.
type Code int

const (
	KeyEnter Code = 13
	KeyShift Code = 16
	KeyCtrl  Code = 17
	KeySpace Code = 32
	KeyLeft  Code = 37
	KeyUp    Code = 38
	KeyRight Code = 39
	KeyDown  Code = 40
	KeyA     Code = 65
	KeyC     Code = 67
	KeyD     Code = 68
	KeyF     Code = 70
	KeyQ     Code = 81
	KeyR     Code = 82
	KeyS     Code = 83
	KeyT     Code = 84
	KeyW     Code = 87
	KeyX     Code = 88
)

var keyNames = map[Code]string{
	KeyEnter: "Enter",
	KeyShift: "Shift",
	KeyCtrl:  "Ctrl",
	KeySpace: "Space",
	KeyLeft:  "←",
	KeyUp:    "↑",
	KeyRight: "→",
	KeyDown:  "↓",
}

func (c Code) String() string {
	if n, ok := keyNames[c]; ok {
		return n
	}
	if c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return string(rune(c))
	}
	return fmt.Sprintf("key(%d)", int(c))
}

// Event is a key press or release.
type Event struct {
	Code    Code
	Pressed bool
	Repeat  bool // auto-repeat of a key already held
}

func (e Event) String() string {
	if e.Pressed {
		return e.Code.String() + " down"
	}
	return e.Code.String() + " up"
}
