package gesture

import "gitlab.com/gomidi/midi/v2"

// selfTest runs opportunistically whenever the last finger comes up. With
// no fingers down every counter, balance cell, leader, and finger slot must
// be back at its boot value. On success the Passed callback fires. On any
// failure the context silences the synth with a brute-force note-off sweep
// across every (note, channel) pair and reboots, keeping configuration and
// callbacks. A caller bug therefore cannot leave stuck notes past the next
// all-fingers-up moment.
func (c *Context) selfTest() {
	passed := true
	if c.fingersDownCount == 0 {
		for ch := 0; ch < ChannelMax; ch++ {
			if c.channels[ch].useCount != 0 {
				c.diag.Fail("channel %d use count %d with no fingers down", ch, c.channels[ch].useCount)
				passed = false
			}
			for n := 0; n < NoteMax; n++ {
				if c.noteChannelDownCount[n][ch] != 0 {
					c.diag.Fail("down count %d for note %d channel %d with no fingers down",
						c.noteChannelDownCount[n][ch], n, ch)
					passed = false
				}
				if c.noteChannelDownRawBalance[n][ch] != 0 {
					if c.noteChannelDownRawBalance[n][ch] < 0 {
						// An extra note-off is harmless to the synth; note it
						// and move on.
						c.diag.Log("raw balance %d for note %d channel %d",
							c.noteChannelDownRawBalance[n][ch], n, ch)
						c.noteChannelDownRawBalance[n][ch] = 0
					} else {
						c.diag.Fail("raw balance %d for note %d channel %d with no fingers down",
							c.noteChannelDownRawBalance[n][ch], n, ch)
						passed = false
					}
				}
			}
			if c.channels[ch].currentFinger != Nobody {
				c.diag.Fail("channel %d still has a leader with no fingers down", ch)
				passed = false
			}
		}
		for p := 0; p < PolyMax; p++ {
			if c.polys[p].currentFinger != Nobody {
				c.diag.Fail("poly group %d still has a leader with no fingers down", p)
				passed = false
			}
		}
		for f := 0; f < FingerMax; f++ {
			if c.fingers[f].isOn {
				c.diag.Fail("finger %d still on with no fingers down", f)
				passed = false
			}
			if c.fingers[f].nextInChannel != Nobody {
				c.diag.Fail("finger %d still has a next channel link", f)
				passed = false
			}
			if c.fingers[f].prevInChannel != Nobody {
				c.diag.Fail("finger %d still has a prev channel link", f)
				passed = false
			}
		}
	}
	if c.fingersDownCount < 0 {
		c.diag.Fail("fingers down count %d below zero", c.fingersDownCount)
		passed = false
	}
	if passed {
		c.diag.Passed()
		return
	}
	// Some synths ignore all-notes-off. Use brute force, then reboot.
	for n := 0; n < NoteMax; n++ {
		for ch := 0; ch < ChannelMax; ch++ {
			c.emit(midi.NoteOn(uint8(ch), uint8(n), 0))
		}
		c.Flush()
	}
	c.Boot()
}
