package script

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// dataBytes returns how many data bytes follow a channel status byte.
func dataBytes(status byte) (int, error) {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 2, nil
	case 0xC0, 0xD0:
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported status byte %#x", status)
	}
}

// splitMessages cuts a raw stream of complete channel messages into
// individual messages. Running status is not accepted; the emitter always
// writes explicit status bytes.
func splitMessages(raw []byte) ([][]byte, error) {
	var msgs [][]byte
	for i := 0; i < len(raw); {
		status := raw[i]
		if status&0x80 == 0 {
			return nil, fmt.Errorf("byte %d: expected status byte, got %#x", i, status)
		}
		n, err := dataBytes(status)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		if i+n >= len(raw) {
			return nil, fmt.Errorf("byte %d: truncated message", i)
		}
		msgs = append(msgs, raw[i:i+1+n])
		i += 1 + n
	}
	return msgs, nil
}

// WrapSMF packs a raw rendered stream into a single-track standard MIDI
// file. Every message lands at tick zero; the file is a container for the
// byte sequence, not a timed performance.
func WrapSMF(raw []byte) ([]byte, error) {
	msgs, err := splitMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid stream: %w", err)
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var track smf.Track
	for _, msg := range msgs {
		track.Add(0, smf.Message(msg))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return buf.Bytes(), nil
}

// UnwrapSMF extracts the channel messages of a standard MIDI file as one
// raw byte stream, dropping meta and system messages. The result can be
// fed straight into pkg/decoder.
func UnwrapSMF(data []byte) ([]byte, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	var raw []byte
	for _, track := range s.Tracks {
		for _, ev := range track {
			msg := ev.Message
			if len(msg) == 0 || msg[0] >= 0xF0 {
				continue
			}
			raw = append(raw, msg...)
		}
	}
	return raw, nil
}
