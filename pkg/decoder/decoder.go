// Package decoder translates a raw MIDI byte stream back into semantic
// (channel, attack, pitch, volume, expression) events for an internal
// engine. It understands the same wire vocabulary pkg/gesture emits: note
// on/off, pitch bend, channel pressure, the bend-range RPN, the note-tie
// NRPN, and CC 11 expression. One note per channel is assumed, since the
// emitter spreads simultaneous notes across channels anyway.
package decoder

import (
	"fmt"
	"log/slog"

	"github.com/james-see/touch2midi/pkg/gesture"
)

// Engine receives decoded events. attack is 1 only for the note-tie signal,
// which arrives with all musical parameters zero; every other event carries
// the channel's reconstructed pitch and volume plus any captured expression.
type Engine func(channel, attack int, pitch, volume float64, exprParm, expr int)

// FSM states: which byte the decoder expects next.
const (
	stateExpectStatus = iota
	stateOnNote
	stateOnVol
	stateOffNote
	stateOffVol
	stateBendLo
	stateBendHi
	stateCCSelector
	stateNRPNKeyHi
	stateNRPNKeyLo
	stateRPNKeyLo
	stateRPNKeyHi
	stateRPNVal
	stateExpression
	statePressure
	stateSkipData
)

// Decoder is a byte-fed MIDI state machine. All decode state lives on the
// instance, so independent Decoders are fully isolated and the package is
// re-entrant. A single Decoder is not safe for concurrent use.
type Decoder struct {
	engine Engine
	logf   func(format string, args ...any)

	state   int
	status  int
	channel int

	note [gesture.ChannelMax]int
	vol  [gesture.ChannelMax]int
	bend [gesture.ChannelMax]int

	bendSemis int

	nrpnKeyLo    int
	nrpnKeyHi    int
	rpnKeyLo     int
	rpnKeyHi     int
	isRegistered bool

	exprParm int
	expr     int
}

// New creates a Decoder delivering events to engine. The bend range starts
// at the emitter's two-semitone default until a bend-range RPN arrives.
func New(engine Engine) *Decoder {
	d := &Decoder{
		engine:    engine,
		bendSemis: 2,
		logf: func(format string, args ...any) {
			slog.Warn("decoder: " + fmt.Sprintf(format, args...))
		},
	}
	for ch := 0; ch < gesture.ChannelMax; ch++ {
		d.bend[ch] = gesture.BendCenter
	}
	return d
}

// SetLog replaces the diagnostic log callback.
func (d *Decoder) SetLog(fn func(format string, args ...any)) {
	d.logf = fn
}

// BendSemis returns the bend range currently in effect, as set by the last
// bend-range RPN.
func (d *Decoder) BendSemis() int {
	return d.bendSemis
}

func (d *Decoder) pitch(channel int) float64 {
	return float64(d.note[channel]) +
		float64(d.bendSemis)*float64(d.bend[channel]-gesture.BendCenter)/float64(gesture.BendCenter)
}

func (d *Decoder) volume(channel int) float64 {
	return float64(d.vol[channel]) / 127.0
}

// PutByte feeds one MIDI byte through the state machine, invoking the
// engine after each completed note-on, note-off, bend, or note-tie, and
// after channel pressure on a channel whose volume is nonzero. Running status is not required; a status byte always resets
// the data-byte expectation.
func (d *Decoder) PutByte(b byte) {
	if d.state == stateExpectStatus {
		for ch := 0; ch < gesture.ChannelMax; ch++ {
			d.bend[ch] = gesture.BendCenter
		}
	}
	if b&0x80 != 0 {
		d.status = int(b>>4) & 0x0F
		d.channel = int(b) & 0x0F
		switch d.status {
		case 0x08:
			d.state = stateOffNote
		case 0x09:
			d.state = stateOnNote
		case 0x0B:
			d.state = stateCCSelector
		case 0x0D:
			d.state = statePressure
		case 0x0E:
			d.state = stateBendLo
		default:
			d.logf("unrecognized status %#x", d.status)
			d.state = stateSkipData
		}
		return
	}

	v := int(b) & 0x7F
	switch d.state {
	case stateOnNote:
		d.note[d.channel] = v
		d.state = stateOnVol
	case stateOnVol:
		d.vol[d.channel] = v
		d.state = stateOnNote
		d.engine(d.channel, 0, d.pitch(d.channel), d.volume(d.channel), d.exprParm, d.expr)

	case stateOffNote:
		d.note[d.channel] = v
		d.state = stateOffVol
	case stateOffVol:
		d.vol[d.channel] = 0
		d.state = stateOffNote
		d.engine(d.channel, 0, d.pitch(d.channel), 0, d.exprParm, d.expr)

	case stateBendLo:
		d.bend[d.channel] = v
		d.state = stateBendHi
	case stateBendHi:
		d.bend[d.channel] |= v << 7
		d.state = stateBendLo
		d.engine(d.channel, 0, d.pitch(d.channel), d.volume(d.channel), d.exprParm, d.expr)

	case stateCCSelector:
		switch v {
		case 0x63:
			d.state = stateNRPNKeyHi
		case 0x62:
			d.state = stateNRPNKeyLo
		case 101:
			d.state = stateRPNKeyLo
		case 100:
			d.state = stateRPNKeyHi
		case 0x06:
			d.state = stateRPNVal
		case 11:
			d.state = stateExpression
		}
	case stateNRPNKeyHi:
		d.isRegistered = false
		d.nrpnKeyHi = v
	case stateNRPNKeyLo:
		d.isRegistered = false
		d.nrpnKeyLo = v
	case stateRPNKeyLo:
		d.isRegistered = true
		d.rpnKeyLo = v
	case stateRPNKeyHi:
		d.isRegistered = true
		d.rpnKeyHi = v
	case stateRPNVal:
		if d.isRegistered && d.rpnKeyLo == 0 && d.rpnKeyHi == 0 {
			d.bendSemis = v
		} else if !d.isRegistered && d.nrpnKeyHi == 9 && d.nrpnKeyLo == 71 {
			// The next on/off pair on this channel belongs to one gesture.
			d.engine(d.channel, 1, 0, 0, 0, 0)
		}
	case stateExpression:
		d.exprParm = 11
		d.expr = v

	case statePressure:
		if d.vol[d.channel] != 0 {
			d.vol[d.channel] = v
			d.engine(d.channel, 0, d.pitch(d.channel), d.volume(d.channel), d.exprParm, d.expr)
		}

	case stateExpectStatus:
		d.logf("data byte %#x before any status byte", v)
	default:
		d.logf("skipping data byte in status %#x", d.status)
	}
}

// Feed runs every byte of data through PutByte.
func (d *Decoder) Feed(data []byte) {
	for _, b := range data {
		d.PutByte(b)
	}
}

// Flush marks a stream boundary. The decoder carries no buffered state, so
// this is a no-op kept for symmetry with the emitter's transport contract.
func (d *Decoder) Flush() {}
