package protocol

// EncodeRaw passes bytes through unchanged, as the lamp expects.
func EncodeRaw(b []byte) Frame {
	return NewFrame(b...)
}
