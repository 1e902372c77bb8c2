package gesture

// fnoteToNoteBend maps a fractional note to the nearest integer note and the
// 14-bit bend reaching the remainder. A fresh mapping always lands within
// half a semitone of the note, so the bend stays well inside the window.
func (c *Context) fnoteToNoteBend(fnote float64) (note, bend int) {
	note = int(fnote + 0.5)
	bend = int(BendCenter + (fnote-float64(note))*BendCenter/float64(c.bendSemis))
	return note, bend
}

// fnoteBendFromExisting computes the bend for fnote relative to the finger's
// current note. While the bend stays inside [0, 2*BendCenter) the note is
// kept; past either edge both are remapped fresh. The caller detects a
// required retrigger by comparing the returned note against the old one.
func (c *Context) fnoteBendFromExisting(fnote float64, fs *fingerState) (note, bend int) {
	note = fs.note
	bend = int(BendCenter + (fnote-float64(note))*BendCenter/float64(c.bendSemis))
	if bend < 0 || bend >= 2*BendCenter {
		return c.fnoteToNoteBend(fnote)
	}
	return note, bend
}
