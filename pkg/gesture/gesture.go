// Package gesture renders continuous polyphonic pitch gestures into a MIDI
// byte stream for a multi-timbral synth. Fingers carry fractional pitches;
// the package maps them onto MIDI's per-channel pitch bend model by cycling
// notes across a span of channels, retriggering notes when a bend escapes
// its window, and marking continuous transitions with a note-tie NRPN.
package gesture

import (
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
)

// Fixed sizes of the state machine. FingerMax bounds caller-assigned finger
// IDs; pkg/decoder sizes its per-channel arrays with ChannelMax.
const (
	FingerMax  = 16
	ChannelMax = 16
	PolyMax    = 16
	NoteMax    = 128
	BendCenter = 8192

	// Nobody is the empty-slot sentinel for all index-based links.
	Nobody = -1
)

const (
	stateInit = iota
	stateBooted
)

// Sink receives the rendered MIDI bytes. PutByte is called once per byte in
// wire order; Flush marks a gesture boundary for the transport.
type Sink interface {
	PutByte(b byte)
	Flush()
}

// Diagnostics carries the injected reporting callbacks. Zero-value fields
// are replaced with slog-backed defaults by New. Fail is invoked on any
// caller protocol violation or internal invariant violation; Passed is
// invoked each time a self-test succeeds; Log carries non-fatal warnings.
type Diagnostics struct {
	Fail   func(format string, args ...any)
	Passed func()
	Log    func(format string, args ...any)
}

func (d *Diagnostics) fillDefaults() {
	if d.Fail == nil {
		d.Fail = func(format string, args ...any) {
			slog.Error("gesture: " + fmt.Sprintf(format, args...))
		}
	}
	if d.Passed == nil {
		d.Passed = func() {}
	}
	if d.Log == nil {
		d.Log = func(format string, args ...any) {
			slog.Warn("gesture: " + fmt.Sprintf(format, args...))
		}
	}
}

// fingerState tracks one caller-assigned finger ID. The next/prev fields are
// indices into Context.fingers, forming doubly linked lists per channel and
// per polyphony group with Nobody as the end marker.
type fingerState struct {
	isOn         bool
	isSuppressed bool
	channel      int
	note         int
	bend         int
	velocity     int
	polyGroup    int

	nextInPolyGroup int
	prevInPolyGroup int
	nextInChannel   int
	prevInChannel   int

	// visitingPolyGroup records the group a Move claimed without moving
	// membership. Observable metadata only.
	visitingPolyGroup int
}

func (fs *fingerState) reset() {
	fs.isOn = false
	fs.isSuppressed = false
	fs.channel = 0
	fs.note = 0
	fs.bend = BendCenter
	fs.velocity = 0
	fs.polyGroup = Nobody
	fs.nextInPolyGroup = Nobody
	fs.prevInPolyGroup = Nobody
	fs.nextInChannel = Nobody
	fs.prevInChannel = Nobody
	fs.visitingPolyGroup = Nobody
}

// channelState tracks one MIDI channel. lastBend/lastAftertouch deduplicate
// redundant traffic; currentFinger is the newest finger on the channel and
// the only one allowed to own the channel's bend.
type channelState struct {
	lastBend       int
	lastAftertouch int
	currentFinger  int
	useCount       int
}

// polyState tracks one polyphony group. currentFinger is the audible leader;
// older members sit suppressed behind it on the linked list.
type polyState struct {
	currentFinger int
}

// Context is one independent rendering state machine. A Context is not safe
// for concurrent use; independent Contexts share nothing.
type Context struct {
	fingers  [FingerMax]fingerState
	channels [ChannelMax]channelState
	polys    [PolyMax]polyState

	state                int
	lastAllocatedChannel int
	fingersDownCount     int

	// Per (note, channel) accounting. downCount is fingers currently
	// holding the pair; rawBalance is note-ons minus note-offs emitted
	// and must return to zero at every all-fingers-up boundary.
	noteChannelDownCount      [NoteMax][ChannelMax]int
	noteChannelDownRawBalance [NoteMax][ChannelMax]int

	channelBase   int
	channelSpan   int
	bendSemis     int
	suppressBends bool

	sink Sink
	diag Diagnostics
}

// New creates a Context writing to sink. Configure the channel span and bend
// range, then call Boot before any gesture operation.
func New(sink Sink, diag Diagnostics) *Context {
	diag.fillDefaults()
	return &Context{
		state:       stateInit,
		channelBase: 0,
		channelSpan: 8,
		bendSemis:   2,
		sink:        sink,
		diag:        diag,
	}
}

// SetChannelBase sets the lowest MIDI channel of the cycling span. The span
// is clamped so base+span never exceeds the channel count.
func (c *Context) SetChannelBase(base int) {
	if base < 0 || base >= ChannelMax {
		c.diag.Fail("channel base %d out of range", base)
		return
	}
	c.channelBase = base
	if c.channelBase+c.channelSpan > ChannelMax {
		c.channelSpan = ChannelMax - c.channelBase
	}
}

// ChannelBase returns the lowest channel of the cycling span.
func (c *Context) ChannelBase() int {
	return c.channelBase
}

// SetChannelSpan sets how many adjacent channels to cycle across, clamped so
// base+span never exceeds the channel count.
func (c *Context) SetChannelSpan(span int) {
	if span < 1 || span > ChannelMax {
		c.diag.Fail("channel span %d out of range", span)
		return
	}
	c.channelSpan = span
	if c.channelBase+c.channelSpan > ChannelMax {
		c.channelSpan = ChannelMax - c.channelBase
	}
}

// ChannelSpan returns the number of channels being cycled across.
func (c *Context) ChannelSpan() int {
	return c.channelSpan
}

// SetBendSemis sets the pitch-bend range in semitones each direction. After
// boot the bend-range RPN sequence is re-emitted for every channel in the
// span so the synth tracks the change.
func (c *Context) SetBendSemis(semitones int) {
	if semitones < 1 || semitones > 24 {
		c.diag.Fail("bend semitones %d out of range, MIDI limits to 24", semitones)
		return
	}
	c.bendSemis = semitones
	if c.state == stateBooted {
		for s := 0; s < c.channelSpan; s++ {
			c.emitBendRangeRPN(c.channelBase+s, semitones)
		}
	}
}

// BendSemis returns the configured pitch-bend range in semitones.
func (c *Context) BendSemis() int {
	return c.bendSemis
}

// SetSuppressBends disables pitch bend and channel pressure emission while
// leaving note handling untouched.
func (c *Context) SetSuppressBends(suppress bool) {
	c.suppressBends = suppress
}

// SuppressBends reports whether bend emission is suppressed.
func (c *Context) SuppressBends() bool {
	return c.suppressBends
}

// emitBendRangeRPN selects RPN (0,0) on channel, writes the semitone range,
// and resets the RPN selector.
func (c *Context) emitBendRangeRPN(channel, semitones int) {
	ch := uint8(channel)
	c.emit(midi.ControlChange(ch, 101, 0))
	c.emit(midi.ControlChange(ch, 100, 0))
	c.emit(midi.ControlChange(ch, 6, uint8(semitones)))
	c.emit(midi.ControlChange(ch, 38, 0))
	c.emit(midi.ControlChange(ch, 101, 127))
	c.emit(midi.ControlChange(ch, 100, 127))
}

// Boot resets every slot, matrix, and counter, validates the configuration,
// and emits the bend-range RPN sequence across the channel span. It may be
// called again at any moment all fingers are up; configuration and injected
// callbacks survive. This is also the recovery path after a failed
// self-test.
func (c *Context) Boot() {
	for ch := 0; ch < ChannelMax; ch++ {
		c.channels[ch].lastBend = BendCenter
		c.channels[ch].lastAftertouch = 0
		c.channels[ch].currentFinger = Nobody
		c.channels[ch].useCount = 0
		for n := 0; n < NoteMax; n++ {
			c.noteChannelDownCount[n][ch] = 0
			c.noteChannelDownRawBalance[n][ch] = 0
		}
	}
	for f := 0; f < FingerMax; f++ {
		c.fingers[f].reset()
	}
	for p := 0; p < PolyMax; p++ {
		c.polys[p].currentFinger = Nobody
	}
	c.fingersDownCount = 0
	// One before base in cyclic order, so the first allocation lands on
	// the base channel.
	c.lastAllocatedChannel = c.channelBase + c.channelSpan - 1

	if c.channelSpan == 0 {
		c.diag.Fail("channel span is zero")
	}
	if c.channelBase < 0 || c.channelBase >= ChannelMax {
		c.diag.Fail("channel base %d out of range", c.channelBase)
	}
	if c.channelBase+c.channelSpan > ChannelMax {
		c.diag.Fail("channel span %d + base %d exceeds %d channels",
			c.channelSpan, c.channelBase, ChannelMax)
	}
	c.state = stateBooted
	c.SetBendSemis(c.bendSemis)
}

// Flush forwards the gesture boundary to the sink.
func (c *Context) Flush() {
	c.sink.Flush()
}

// ChannelOccupancy returns how many fingers currently own the channel.
func (c *Context) ChannelOccupancy(channel int) int {
	return c.channels[channel].useCount
}

// ChannelBend returns the channel's last emitted bend as a fraction of the
// full bend range, in [-1, +1).
func (c *Context) ChannelBend(channel int) float64 {
	return float64(c.channels[channel].lastBend-BendCenter) / BendCenter
}

// emit streams a built MIDI message into the sink byte by byte.
func (c *Context) emit(msg midi.Message) {
	for _, b := range msg {
		c.sink.PutByte(b)
	}
}

// The check helpers report caller protocol violations through Fail and tell
// the operation to bail out. The context itself stays usable; recovery is
// the caller's problem, plus the self-test's reboot.

func (c *Context) stateCheck() bool {
	if c.state != stateBooted {
		c.diag.Fail("context is not booted yet")
		return false
	}
	return true
}

func (c *Context) fingerCheck(finger int) bool {
	if finger < 0 || finger >= FingerMax {
		c.diag.Fail("finger %d out of range", finger)
		return false
	}
	return true
}

func (c *Context) polyCheck(polyGroup int) bool {
	if polyGroup < 0 || polyGroup >= PolyMax {
		c.diag.Fail("poly group %d out of range", polyGroup)
		return false
	}
	return true
}

func (c *Context) fnoteCheck(fnote float64) bool {
	if fnote < -0.5 || fnote >= 127.5 {
		c.diag.Fail("fnote %f out of range", fnote)
		return false
	}
	return true
}

func limitVal(low, val, high int) int {
	if val < low {
		return low
	}
	if val > high {
		return high
	}
	return val
}

// split7 splits n into its low and high 7-bit halves, the layout of the
// 14-bit NRPN key.
func split7(n int) (lo, hi int) {
	return n & 0x7F, (n >> 7) & 0x7F
}
