// Package script defines a JSON gesture script format and replays it
// through the pkg/gesture emitter. Scripts let the CLI, the API server,
// and the TUI drive a rendering without writing code.
package script

import (
	"encoding/json"
	"fmt"

	"github.com/james-see/touch2midi/pkg/gesture"
)

// Event operations.
const (
	OpDown    = "down"
	OpMove    = "move"
	OpUp      = "up"
	OpExpress = "express"
	OpFlush   = "flush"
)

// Config selects the channel span and bend range for a rendering. Zero
// numeric fields fall back to the emitter defaults.
type Config struct {
	ChannelBase   int  `json:"channelBase,omitempty"`
	ChannelSpan   int  `json:"channelSpan,omitempty"`
	BendSemis     int  `json:"bendSemis,omitempty"`
	SuppressBends bool `json:"suppressBends,omitempty"`
}

// Event is one gesture operation. Which fields matter depends on Op:
// down uses finger/note/poly/vel/legato, move uses finger/note/vel/poly,
// up uses finger/legato, express uses finger/key/val, flush uses none.
type Event struct {
	Op     string  `json:"op"`
	Finger int     `json:"finger,omitempty"`
	Note   float64 `json:"note,omitempty"`
	Poly   int     `json:"poly,omitempty"`
	Vel    float64 `json:"vel,omitempty"`
	Legato int     `json:"legato,omitempty"`
	Key    int     `json:"key,omitempty"`
	Val    float64 `json:"val,omitempty"`
}

// Script is a configuration plus an ordered event list.
type Script struct {
	Config Config  `json:"config"`
	Events []Event `json:"events"`
}

// Load parses and validates a JSON gesture script.
func Load(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, ev := range s.Events {
		switch ev.Op {
		case OpDown, OpMove, OpUp, OpExpress, OpFlush:
		default:
			return nil, fmt.Errorf("event %d: unknown op %q", i, ev.Op)
		}
	}
	return &s, nil
}

// Render boots a fresh emitter context against sink and replays the script
// in order, ending with a flush. The first failure the emitter reports is
// returned after the replay completes; diag's own Fail still fires for
// every report.
func (s *Script) Render(sink gesture.Sink, diag gesture.Diagnostics) error {
	var firstErr error
	userFail := diag.Fail
	diag.Fail = func(format string, args ...any) {
		if firstErr == nil {
			firstErr = fmt.Errorf(format, args...)
		}
		if userFail != nil {
			userFail(format, args...)
		}
	}

	ctx := gesture.New(sink, diag)
	if s.Config.ChannelBase != 0 {
		ctx.SetChannelBase(s.Config.ChannelBase)
	}
	if s.Config.ChannelSpan != 0 {
		ctx.SetChannelSpan(s.Config.ChannelSpan)
	}
	if s.Config.BendSemis != 0 {
		ctx.SetBendSemis(s.Config.BendSemis)
	}
	ctx.SetSuppressBends(s.Config.SuppressBends)
	ctx.Boot()

	for _, ev := range s.Events {
		switch ev.Op {
		case OpDown:
			ctx.BeginDown(ev.Finger)
			ctx.EndDown(ev.Finger, ev.Note, ev.Poly, ev.Vel, ev.Legato)
		case OpMove:
			ctx.Move(ev.Finger, ev.Note, ev.Vel, ev.Poly)
		case OpUp:
			ctx.Up(ev.Finger, ev.Legato)
		case OpExpress:
			ctx.Express(ev.Finger, ev.Key, ev.Val)
		case OpFlush:
			ctx.Flush()
		}
	}
	ctx.Flush()
	return firstErr
}

// RenderBytes replays the script into memory and returns the raw MIDI
// stream.
func (s *Script) RenderBytes() ([]byte, error) {
	var sink gesture.BytesSink
	if err := s.Render(&sink, gesture.Diagnostics{}); err != nil {
		return nil, err
	}
	return sink.Data, nil
}
