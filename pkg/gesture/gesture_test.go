package gesture

import (
	"fmt"
	"testing"
)

// recorder captures diagnostic callbacks for assertions.
type recorder struct {
	fails  []string
	logs   []string
	passes int
}

func (r *recorder) diagnostics() Diagnostics {
	return Diagnostics{
		Fail:   func(format string, args ...any) { r.fails = append(r.fails, fmt.Sprintf(format, args...)) },
		Passed: func() { r.passes++ },
		Log:    func(format string, args ...any) { r.logs = append(r.logs, fmt.Sprintf(format, args...)) },
	}
}

// newTestContext boots a context and drops the boot RPN bytes so tests see
// only gesture traffic.
func newTestContext(t *testing.T, base, span, semis int) (*Context, *BytesSink, *recorder) {
	t.Helper()
	sink := &BytesSink{}
	rec := &recorder{}
	ctx := New(sink, rec.diagnostics())
	ctx.SetChannelBase(base)
	ctx.SetChannelSpan(span)
	ctx.SetBendSemis(semis)
	ctx.Boot()
	if len(rec.fails) != 0 {
		t.Fatalf("boot failed: %v", rec.fails)
	}
	sink.Reset()
	return ctx, sink, rec
}

func bendRangeRPN(channel, semis byte) []byte {
	cc := 0xB0 + channel
	return []byte{
		cc, 101, 0,
		cc, 100, 0,
		cc, 6, semis,
		cc, 38, 0,
		cc, 101, 127,
		cc, 100, 127,
	}
}

func assertBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("stream length = %d, want %d\ngot:  % x\nwant: % x", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stream byte %d = %#02x, want %#02x\ngot:  % x\nwant: % x", i, got[i], want[i], got, want)
		}
	}
}

func TestBootEmitsBendRangeRPN(t *testing.T) {
	sink := &BytesSink{}
	rec := &recorder{}
	ctx := New(sink, rec.diagnostics())
	ctx.SetChannelSpan(2)
	ctx.SetBendSemis(2)
	ctx.Boot()

	want := append(bendRangeRPN(0, 2), bendRangeRPN(1, 2)...)
	assertBytes(t, sink.Data, want)
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestBootTwiceIsIdempotent(t *testing.T) {
	sink := &BytesSink{}
	rec := &recorder{}
	ctx := New(sink, rec.diagnostics())
	ctx.SetChannelSpan(1)
	ctx.Boot()
	first := append([]byte(nil), sink.Data...)
	sink.Reset()
	ctx.Boot()

	assertBytes(t, sink.Data, first)
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestSetBendSemisAfterBootReEmits(t *testing.T) {
	ctx, sink, rec := newTestContext(t, 0, 1, 2)
	ctx.SetBendSemis(12)

	assertBytes(t, sink.Data, bendRangeRPN(0, 12))
	if got := ctx.BendSemis(); got != 12 {
		t.Errorf("BendSemis() = %d, want 12", got)
	}
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestConfigClamping(t *testing.T) {
	sink := &BytesSink{}
	rec := &recorder{}
	ctx := New(sink, rec.diagnostics())
	ctx.SetChannelBase(10)
	ctx.SetChannelSpan(16)

	if got := ctx.ChannelSpan(); got != 6 {
		t.Errorf("ChannelSpan() = %d, want 6 after clamping", got)
	}
	if got := ctx.ChannelBase() + ctx.ChannelSpan(); got != ChannelMax {
		t.Errorf("base+span = %d, want %d", got, ChannelMax)
	}
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestConfigRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Context)
	}{
		{"base negative", func(c *Context) { c.SetChannelBase(-1) }},
		{"base too high", func(c *Context) { c.SetChannelBase(16) }},
		{"span zero", func(c *Context) { c.SetChannelSpan(0) }},
		{"span too high", func(c *Context) { c.SetChannelSpan(17) }},
		{"semis zero", func(c *Context) { c.SetBendSemis(0) }},
		{"semis too high", func(c *Context) { c.SetBendSemis(25) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			ctx := New(&BytesSink{}, rec.diagnostics())
			tt.apply(ctx)
			if len(rec.fails) != 1 {
				t.Errorf("failures = %d, want 1", len(rec.fails))
			}
		})
	}
}

func TestFnoteToNoteBend(t *testing.T) {
	tests := []struct {
		fnote    float64
		semis    int
		wantNote int
		wantBend int
	}{
		{60.0, 2, 60, 8192},
		{60.5, 2, 61, 6144},
		{59.75, 2, 60, 7168},
		{60.25, 12, 60, 8362},
		{-0.5, 2, 0, 6144},
		{127.25, 2, 127, 9216},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("fnote=%v semis=%d", tt.fnote, tt.semis), func(t *testing.T) {
			ctx, _, _ := newTestContext(t, 0, 1, tt.semis)
			note, bend := ctx.fnoteToNoteBend(tt.fnote)
			if note != tt.wantNote || bend != tt.wantBend {
				t.Errorf("fnoteToNoteBend(%v) = (%d, %d), want (%d, %d)",
					tt.fnote, note, bend, tt.wantNote, tt.wantBend)
			}
		})
	}
}

func TestFnoteBendFromExisting(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		fnote    float64
		wantNote int
		wantBend int
	}{
		{"inside window keeps note", 60, 61.5, 60, 14336},
		{"lower edge keeps note", 60, 58.0, 60, 0},
		{"upper edge remaps", 60, 62.0, 62, 8192},
		{"far above remaps", 60, 64.5, 65, 6144},
		{"below window remaps", 60, 57.75, 58, 7168},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _, _ := newTestContext(t, 0, 1, 2)
			fs := &fingerState{note: tt.existing}
			note, bend := ctx.fnoteBendFromExisting(tt.fnote, fs)
			if note != tt.wantNote || bend != tt.wantBend {
				t.Errorf("fnoteBendFromExisting(%v) = (%d, %d), want (%d, %d)",
					tt.fnote, note, bend, tt.wantNote, tt.wantBend)
			}
		})
	}
}

func TestAllocatorCyclesChannels(t *testing.T) {
	ctx, _, rec := newTestContext(t, 0, 4, 2)

	for finger := 0; finger < 4; finger++ {
		ctx.BeginDown(finger)
		if got, want := ctx.fingers[finger].channel, finger; got != want {
			t.Errorf("finger %d allocated channel %d, want %d", finger, got, want)
		}
	}
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestAllocatorPicksLeastLoaded(t *testing.T) {
	ctx, _, _ := newTestContext(t, 0, 2, 2)

	ctx.BeginDown(0) // channel 0
	ctx.BeginDown(1) // channel 1
	ctx.BeginDown(2) // both loaded, cycles back to 0

	if got := ctx.fingers[2].channel; got != 0 {
		t.Errorf("finger 2 allocated channel %d, want 0", got)
	}
	if got := ctx.ChannelOccupancy(0); got != 2 {
		t.Errorf("ChannelOccupancy(0) = %d, want 2", got)
	}
	if got := ctx.ChannelOccupancy(1); got != 1 {
		t.Errorf("ChannelOccupancy(1) = %d, want 1", got)
	}
}

func TestAllocatorRespectsBase(t *testing.T) {
	ctx, _, rec := newTestContext(t, 8, 4, 2)

	for finger := 0; finger < 6; finger++ {
		ctx.BeginDown(finger)
		ch := ctx.fingers[finger].channel
		if ch < 8 || ch >= 12 {
			t.Errorf("finger %d allocated channel %d, want within [8, 12)", finger, ch)
		}
	}
	if got := ctx.fingers[0].channel; got != 8 {
		t.Errorf("first allocation on channel %d, want base channel 8", got)
	}
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestFreeChannelPromotesPreviousFinger(t *testing.T) {
	ctx, _, _ := newTestContext(t, 0, 1, 2)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 0, 1.0, 0)
	ctx.BeginDown(1)
	ctx.EndDown(1, 64, 1, 1.0, 0)

	if got := ctx.channels[0].currentFinger; got != 1 {
		t.Fatalf("channel leader = %d, want 1", got)
	}
	ctx.Up(1, 0)
	if got := ctx.channels[0].currentFinger; got != 0 {
		t.Errorf("channel leader after Up = %d, want 0", got)
	}
	if got := ctx.ChannelOccupancy(0); got != 1 {
		t.Errorf("ChannelOccupancy(0) = %d, want 1", got)
	}
}

func TestPolyGroupLinkSuppressesOldLeader(t *testing.T) {
	ctx, _, _ := newTestContext(t, 0, 2, 2)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 5, 1.0, 0)
	ctx.BeginDown(1)
	ctx.EndDown(1, 64, 5, 1.0, 0)

	if !ctx.fingers[0].isSuppressed {
		t.Error("finger 0 should be suppressed after finger 1 takes the lead")
	}
	if got := ctx.polys[5].currentFinger; got != 1 {
		t.Errorf("poly leader = %d, want 1", got)
	}

	ctx.Up(1, 0)
	if ctx.fingers[0].isSuppressed {
		t.Error("finger 0 should be un-suppressed after promotion")
	}
	if got := ctx.polys[5].currentFinger; got != 0 {
		t.Errorf("poly leader after Up = %d, want 0", got)
	}
}

func TestVisitingPolyGroupDoesNotRelink(t *testing.T) {
	ctx, _, _ := newTestContext(t, 0, 2, 2)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 0, 1.0, 0)
	ctx.Move(0, 60.25, 1.0, 3)

	if got := ctx.fingers[0].polyGroup; got != 0 {
		t.Errorf("polyGroup = %d, want 0 (membership must not move)", got)
	}
	if got := ctx.fingers[0].visitingPolyGroup; got != 3 {
		t.Errorf("visitingPolyGroup = %d, want 3", got)
	}
}

func TestBendDeduplication(t *testing.T) {
	ctx, sink, _ := newTestContext(t, 0, 1, 2)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 0, 1.0, 0)
	sink.Reset()

	ctx.Move(0, 60.5, 1.0, 0)
	ctx.Move(0, 60.5, 1.0, 0)
	ctx.Move(0, 60.5, 1.0, 0)

	bends := 0
	for i := 0; i < len(sink.Data); i++ {
		if sink.Data[i]&0xF0 == 0xE0 {
			bends++
			i += 2
		}
	}
	if bends != 1 {
		t.Errorf("bend messages = %d, want 1 (value-change deduplication)", bends)
	}
}

func TestSuppressBends(t *testing.T) {
	ctx, sink, _ := newTestContext(t, 0, 1, 2)
	ctx.SetSuppressBends(true)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 0, 1.0, 0)
	sink.Reset()
	ctx.Move(0, 60.5, 0.5, 0)

	for i := 0; i < len(sink.Data); i++ {
		status := sink.Data[i] & 0xF0
		if status == 0xE0 || status == 0xD0 {
			t.Fatalf("bend/pressure byte %#02x emitted with bends suppressed", sink.Data[i])
		}
	}
}

func TestExpressEmitsControlChange(t *testing.T) {
	ctx, sink, rec := newTestContext(t, 0, 1, 2)

	ctx.BeginDown(0)
	sink.Reset()
	ctx.Express(0, 74, 0.5)

	assertBytes(t, sink.Data, []byte{0xB0, 74, 63})
	ctx.EndDown(0, 60, 0, 1.0, 0)
	ctx.Up(0, 0)
	if len(rec.fails) != 0 {
		t.Errorf("unexpected failures: %v", rec.fails)
	}
}

func TestChannelBendReflectsLastEmitted(t *testing.T) {
	ctx, _, _ := newTestContext(t, 0, 1, 2)

	ctx.BeginDown(0)
	ctx.EndDown(0, 60, 0, 1.0, 0)
	ctx.Move(0, 60.5, 1.0, 0)

	if got, want := ctx.ChannelBend(0), 0.25; got != want {
		t.Errorf("ChannelBend(0) = %v, want %v", got, want)
	}
}

func TestProtocolViolationsReportFailure(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Context)
	}{
		{"up without down", func(c *Context) { c.Up(0, 0) }},
		{"double begin", func(c *Context) { c.BeginDown(0); c.BeginDown(0) }},
		{"end without begin", func(c *Context) { c.EndDown(0, 60, 0, 1.0, 0) }},
		{"move without down", func(c *Context) { c.Move(0, 60, 1.0, 0) }},
		{"express without down", func(c *Context) { c.Express(0, 11, 0.5) }},
		{"finger out of range", func(c *Context) { c.BeginDown(FingerMax) }},
		{"poly out of range", func(c *Context) { c.BeginDown(0); c.EndDown(0, 60, PolyMax, 1.0, 0) }},
		{"fnote out of range", func(c *Context) { c.BeginDown(0); c.EndDown(0, 128, 0, 1.0, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _, rec := newTestContext(t, 0, 2, 2)
			tt.apply(ctx)
			if len(rec.fails) == 0 {
				t.Error("expected at least one failure report")
			}
		})
	}
}

func TestOperationsBeforeBootFail(t *testing.T) {
	rec := &recorder{}
	ctx := New(&BytesSink{}, rec.diagnostics())
	ctx.BeginDown(0)
	if len(rec.fails) == 0 {
		t.Error("BeginDown before Boot should report failure")
	}
}
