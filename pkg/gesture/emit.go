package gesture

import "gitlab.com/gomidi/midi/v2"

// noteTieKey is the private NRPN key marking two adjacent note-ons on a
// channel as one continuous gesture. Downstream synths must be configured
// to interpret it. 1223 splits as hi=9, lo=71 on the wire.
const noteTieKey = 1223

// noteTie emits the note-tie NRPN triple on the finger's channel carrying
// its note number. The RPN selector is deliberately left un-reset; synths
// interpret the reset tail inconsistently.
func (c *Context) noteTie(fs *fingerState) {
	lo, hi := split7(noteTieKey)
	ch := uint8(fs.channel)
	c.emit(midi.ControlChange(ch, 0x63, uint8(hi)))
	c.emit(midi.ControlChange(ch, 0x62, uint8(lo)))
	c.emit(midi.ControlChange(ch, 0x06, uint8(fs.note)))
}

// setCurrentBend emits the finger's stored bend as a 14-bit pitch bend, but
// only when the finger is on, unsuppressed, owns the channel lead, bends
// are not suppressed, and the value actually changed. Value-change
// deduplication is the only rate limiting in the library.
func (c *Context) setCurrentBend(finger int) {
	fs := &c.fingers[finger]
	if c.channels[fs.channel].lastBend == fs.bend ||
		c.channels[fs.channel].currentFinger != finger ||
		!fs.isOn || fs.isSuppressed || c.suppressBends {
		return
	}
	c.channels[fs.channel].lastBend = fs.bend
	c.emit(midi.Pitchbend(uint8(fs.channel), int16(fs.bend-BendCenter)))
}

// setCurrentAftertouch updates the finger's velocity from the 0..1 input and
// emits channel pressure under the same guard as setCurrentBend.
func (c *Context) setCurrentAftertouch(finger int, velocity float64) {
	fs := &c.fingers[finger]
	fs.velocity = limitVal(1, int(velocity*127.0), 127)
	if c.channels[fs.channel].lastAftertouch == fs.velocity ||
		c.channels[fs.channel].currentFinger != finger ||
		!fs.isOn || fs.isSuppressed || c.suppressBends {
		return
	}
	c.channels[fs.channel].lastAftertouch = fs.velocity
	c.emit(midi.AfterTouch(uint8(fs.channel), uint8(fs.velocity)))
}

// BeginDown starts a finger's gesture and allocates it a channel. Express
// calls may follow before EndDown completes the note.
func (c *Context) BeginDown(finger int) {
	if !c.stateCheck() || !c.fingerCheck(finger) {
		return
	}
	fs := &c.fingers[finger]
	if fs.isOn {
		c.diag.Fail("finger %d already down on BeginDown", finger)
		return
	}
	fs.isOn = true
	fs.channel = c.allocChannel(finger)
}

// EndDown completes the note begun by BeginDown: the fractional note is
// mapped to a (note, bend) pair, the finger takes the lead of polyGroup,
// and the note-on goes out. A displaced group leader is turned off first,
// tied to the new note when legato is 2. Velocity is 0..1 and is clamped so
// a zero note-on (which MIDI reads as note-off) can never be emitted here.
func (c *Context) EndDown(finger int, fnote float64, polyGroup int, velocity float64, legato int) {
	if !c.stateCheck() || !c.fingerCheck(finger) || !c.polyCheck(polyGroup) || !c.fnoteCheck(fnote) {
		return
	}
	fs := &c.fingers[finger]
	if !fs.isOn {
		c.diag.Fail("finger %d not down on EndDown", finger)
		return
	}
	fs.velocity = limitVal(1, int(velocity*127), 127)
	fs.polyGroup = polyGroup

	fs.note, fs.bend = c.fnoteToNoteBend(fnote)

	c.fingersDownCount++
	c.noteChannelDownCount[fs.note][fs.channel]++

	// Pre-clear only when another finger already holds this (note, channel);
	// the synth would otherwise stack two voices on one note. A note-off is
	// a zero-velocity note-on on this wire, so midi.NoteOff (an 0x8n
	// status) is never used.
	if !fs.isSuppressed && c.noteChannelDownCount[fs.note][fs.channel] > 1 {
		c.emit(midi.NoteOn(uint8(fs.channel), uint8(fs.note), 0))
		c.noteChannelDownRawBalance[fs.note][fs.channel]--
	}

	turningOff := c.link(finger)
	c.setCurrentBend(finger)

	if c.channels[fs.channel].currentFinger != finger {
		c.diag.Fail("finger %d should lead its channel on note down", finger)
	}
	if turningOff != Nobody {
		off := &c.fingers[turningOff]
		if !off.isOn {
			c.diag.Fail("displaced finger %d should be on", turningOff)
		}
		if !off.isSuppressed {
			c.diag.Fail("displaced finger %d should be suppressed", turningOff)
		}
		if legato == 2 {
			c.noteTie(off)
		}
		c.emit(midi.NoteOn(uint8(off.channel), uint8(off.note), 0))
		c.noteChannelDownRawBalance[off.note][off.channel]--
	}
	c.emit(midi.NoteOn(uint8(fs.channel), uint8(fs.note), uint8(fs.velocity)))
	c.noteChannelDownRawBalance[fs.note][fs.channel]++
	if c.noteChannelDownRawBalance[fs.note][fs.channel] > 1 {
		c.diag.Log("doubled note on down, channel %d note %d", fs.channel, fs.note)
	}
}

// Up ends a finger's gesture. The note goes off unless another finger still
// holds the same (note, channel). If the finger led its polyphony group,
// the member beneath it is promoted: its bend is force-resent and a fresh
// note-on goes out adopting the outgoing finger's velocity, preceded by a
// note-tie when legato is nonzero. When the last finger comes up the
// self-test runs.
func (c *Context) Up(finger, legato int) {
	if !c.fingerCheck(finger) {
		return
	}
	fs := &c.fingers[finger]
	if !fs.isOn {
		c.diag.Fail("finger %d not down on Up", finger)
		return
	}

	oldVelocity := fs.velocity
	wasSuppressed := fs.isSuppressed
	turningOn := c.unlink(finger)

	c.noteChannelDownCount[fs.note][fs.channel]--

	if !wasSuppressed && c.noteChannelDownCount[fs.note][fs.channel] == 0 {
		if turningOn != Nobody && legato > 0 {
			c.noteTie(fs)
		}
		c.emit(midi.NoteOn(uint8(fs.channel), uint8(fs.note), 0))
		c.noteChannelDownRawBalance[fs.note][fs.channel]--
	}

	if turningOn != Nobody {
		on := &c.fingers[turningOn]
		if !on.isOn {
			c.diag.Fail("promoted finger %d should be on", turningOn)
		}
		if on.isSuppressed {
			c.diag.Fail("promoted finger %d should not be suppressed", turningOn)
		}
		// Poison the channel's bend memory so the promoted finger's bend
		// goes back out even if the value matches.
		c.channels[on.channel].lastBend = -1
		c.setCurrentBend(turningOn)
		on.velocity = oldVelocity
		c.emit(midi.NoteOn(uint8(on.channel), uint8(on.note), uint8(on.velocity)))
		c.noteChannelDownRawBalance[on.note][on.channel]++
		if c.noteChannelDownRawBalance[on.note][on.channel] > 1 {
			c.diag.Log("doubled note on up, channel %d note %d", on.channel, on.note)
		}
	}

	if c.noteChannelDownCount[fs.note][fs.channel] < 0 {
		c.diag.Fail("note %d channel %d down count %d below zero",
			fs.note, fs.channel, c.noteChannelDownCount[fs.note][fs.channel])
	}

	c.fingersDownCount--
	if c.fingersDownCount < 0 {
		c.diag.Fail("fingers down count %d below zero", c.fingersDownCount)
	}

	fs.isOn = false
	c.freeChannel(finger)
	fs.reset()

	if c.fingersDownCount <= 0 {
		c.selfTest()
	}
}

// Express emits one MIDI control change on the finger's channel. Callable
// between BeginDown and any later operation while the finger is down; val
// is 0..1.
func (c *Context) Express(finger, key int, val float64) {
	if !c.fingerCheck(finger) {
		return
	}
	fs := &c.fingers[finger]
	if !fs.isOn {
		c.diag.Fail("finger %d not down on Express", finger)
		return
	}
	c.emit(midi.ControlChange(uint8(fs.channel), uint8(key%127), uint8(int(val*127)%127)))
}

// Move slides a finger to a new fractional note. While the bend stays
// inside the note's window only bend and aftertouch go out; past the edge
// the note is retriggered: a note-tie marks the old note, the finger comes
// up and goes straight back down on a freshly allocated channel, keeping
// its polyphony group. The synth sees two tied notes, the listener hears
// one continuous pitch. A valid polyGroup is recorded as visiting metadata
// without moving membership. Returns fnote unmodified; the return value is
// reserved for a quantization hook.
func (c *Context) Move(finger int, fnote, velocity float64, polyGroup int) float64 {
	if !c.fingerCheck(finger) || !c.fnoteCheck(fnote) {
		return fnote
	}
	fs := &c.fingers[finger]
	if !fs.isOn {
		c.diag.Fail("finger %d not down on Move", finger)
		return fnote
	}
	newNote, newBend := c.fnoteBendFromExisting(fnote, fs)
	existingPolyGroup := fs.polyGroup
	if polyGroup >= 0 && polyGroup < PolyMax {
		fs.visitingPolyGroup = polyGroup
	}
	if newNote == fs.note {
		fs.bend = newBend
		c.setCurrentAftertouch(finger, velocity)
		c.setCurrentBend(finger)
	} else {
		c.noteTie(fs)
		c.Up(finger, 1)
		c.BeginDown(finger)
		c.EndDown(finger, fnote, existingPolyGroup, velocity, 1)
	}
	return fnote
}
