// Package protocol encodes control state into the byte frames understood by
// the supported peripherals. Every encoder is a pure function.
package protocol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Frame is an immutable byte sequence written to a characteristic in one operation.
type Frame struct {
	data string
}

// NewFrame copies b into a new frame.
func NewFrame(b ...byte) Frame {
	return Frame{data: string(b)}
}

// Bytes returns a copy of the frame content.
func (f Frame) Bytes() []byte {
	return []byte(f.data)
}

func (f Frame) Len() int {
	return len(f.data)
}

// At returns the byte at index i.
func (f Frame) At(i int) byte {
	return f.data[i]
}

func (f Frame) Equal(other Frame) bool {
	return f.data == other.data
}

// IsZero reports whether the frame is empty.
func (f Frame) IsZero() bool {
	return f.data == ""
}

// String renders the frame as space separated hex bytes.
func (f Frame) String() string {
	if f.data == "" {
		return "<empty>"
	}
	var sb strings.Builder
	for i := 0; i < len(f.data); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", f.data[i])
	}
	return sb.String()
}

// ParseFrame parses user-supplied payload text. With hexMode the text is a hex
// string (spaces, colons and a 0x prefix are ignored); otherwise it is a comma or
// space separated list of decimal byte values, e.g. "4,0,2,0,1,0".
func ParseFrame(text string, hexMode bool) (Frame, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Frame{}, fmt.Errorf("empty payload")
	}

	if hexMode {
		clean := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(text)
		b, err := hex.DecodeString(clean)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid hex payload %q: %w", text, err)
		}
		return NewFrame(b...), nil
	}

	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' })
	b := make([]byte, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid byte value %q: must be 0-255", field)
		}
		b = append(b, byte(v))
	}
	return NewFrame(b...), nil
}

// Sequence is an 8-bit frame counter that wraps at 256. It is safe for concurrent use.
type Sequence struct {
	mu   sync.Mutex
	next uint8
}

// Next returns the current value and advances the counter.
func (s *Sequence) Next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.next
	s.next++
	return v
}

// Release hands v back when it was the last value returned by Next and was
// never put on the wire. It reports whether the counter was rewound.
func (s *Sequence) Release(v uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next != v+1 {
		return false
	}
	s.next = v
	return true
}

// Peek returns the value the next call to Next will return.
func (s *Sequence) Peek() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
