package gesture

// BytesSink collects the rendered stream in memory and counts gesture
// boundaries. It backs the CLI, the API handlers, and the package tests.
type BytesSink struct {
	Data    []byte
	Flushes int
}

// PutByte appends one MIDI byte.
func (s *BytesSink) PutByte(b byte) {
	s.Data = append(s.Data, b)
}

// Flush records a gesture boundary.
func (s *BytesSink) Flush() {
	s.Flushes++
}

// Reset drops the collected bytes and boundary count.
func (s *BytesSink) Reset() {
	s.Data = s.Data[:0]
	s.Flushes = 0
}
