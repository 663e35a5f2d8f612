package input

import "github.com/srg/blepilot/internal/keymap"

const (
	keyCtrlC = 0x03
	keyEsc   = 0x1b
)

// Decode converts raw terminal input into key codes. quit is set when Ctrl-C or
// q was typed; keys after it are not decoded. rest holds an incomplete escape
// sequence to be prepended to the next read.
func Decode(buf []byte) (keys []keymap.Code, quit bool, rest []byte) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		switch {
		case b == keyCtrlC, b == 'q', b == 'Q':
			return keys, true, nil
		case b == keyEsc:
			if i+1 >= len(buf) {
				return keys, false, append([]byte(nil), buf[i:]...)
			}
			switch buf[i+1] {
			case 'O':
				if i+2 >= len(buf) {
					return keys, false, append([]byte(nil), buf[i:]...)
				}
				if code, ok := arrowCode(buf[i+2]); ok {
					keys = append(keys, code)
				}
				i += 2
			case '[':
				end, final, complete := csiEnd(buf, i+2)
				if !complete {
					return keys, false, append([]byte(nil), buf[i:]...)
				}
				if code, ok := arrowCode(final); ok {
					keys = append(keys, code)
				}
				i = end
			default:
				// lone escape
			}
		case b == '\r', b == '\n':
			keys = append(keys, keymap.KeyEnter)
		case b == ' ':
			keys = append(keys, keymap.KeySpace)
		case b >= 'a' && b <= 'z':
			keys = append(keys, keymap.Code(b-'a'+'A'))
		case b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
			keys = append(keys, keymap.Code(b))
		}
	}
	return keys, false, nil
}

// csiEnd scans a control sequence body starting at start: parameter bytes
// (0x30-0x3F), intermediate bytes (0x20-0x2F), then one final byte
// (0x40-0x7E). It returns the index of the last byte consumed and the final
// byte, or 0 when the body is malformed. complete is false when buf ends
// before the final byte.
func csiEnd(buf []byte, start int) (end int, final byte, complete bool) {
	j := start
	for j < len(buf) && buf[j] >= 0x20 && buf[j] <= 0x3f {
		j++
	}
	if j >= len(buf) {
		return 0, 0, false
	}
	if buf[j] >= 0x40 && buf[j] <= 0x7e {
		return j, buf[j], true
	}
	return j - 1, 0, true
}

func arrowCode(b byte) (keymap.Code, bool) {
	switch b {
	case 'A':
		return keymap.KeyUp, true
	case 'B':
		return keymap.KeyDown, true
	case 'C':
		return keymap.KeyRight, true
	case 'D':
		return keymap.KeyLeft, true
	}
	return 0, false
}
