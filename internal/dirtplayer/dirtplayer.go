// Package dirtplayer adapts resolved VM Dirt events (the audio engine's
// own play/update/stop/panic control surface, spec.md §6's "audio engine
// OSC control surface") directly onto dsp.Engine, the in-process
// counterpart of routing those same events out over OSC to an external
// synth the way the teacher routes to SuperCollider.
package dirtplayer

import (
	"log"
	"sync"

	"github.com/schollz/gridlive/internal/audio/dsp"
	"github.com/schollz/gridlive/internal/audio/samplib"
	"github.com/schollz/gridlive/internal/scheduler"
	"github.com/schollz/gridlive/internal/vm"
)

// Sink dispatches resolved Dirt events from the Scheduler into dsp.Engine
// messages. It implements scheduler.EventSink; the audio thread calls
// Drain once per block and feeds the result to Engine.ProcessBlock, since the
// Scheduler and the audio engine run on separate threads (spec.md §5)
// and dsp.Message construction (resolving a sample name to a Source) is
// cheap enough to do on the Scheduler thread rather than deferring it.
type Sink struct {
	mu      sync.Mutex
	lib     *samplib.Library
	pending []dsp.Message
	logf    func(format string, args ...interface{})
}

var _ scheduler.EventSink = (*Sink)(nil)

// NewSink builds a Sink that resolves Dirt "s" keys against lib.
func NewSink(lib *samplib.Library) *Sink {
	return &Sink{lib: lib, logf: log.Printf}
}

// Dispatch translates r into zero or more dsp.Message values and queues
// them for the next Drain. Non-Dirt kinds are ignored; another sink owns
// them.
func (s *Sink) Dispatch(r vm.Resolved) {
	if r.Kind != vm.EventDirt {
		return
	}
	msgs := s.toMessages(r)
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, msgs...)
	s.mu.Unlock()
}

// Drain returns and clears every dsp.Message queued since the last
// Drain, for the audio thread to pass to dsp.Engine.ProcessBlock.
func (s *Sink) Drain() []dsp.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *Sink) toMessages(r vm.Resolved) []dsp.Message {
	params := dirtParams(r)

	kind, ok := commandKind(r.Address)
	if !ok {
		s.logf("dirtplayer: unrecognized command address %q", r.Address)
		return nil
	}

	voiceID := dsp.AutoAssignVoice
	if v, ok := params["voice"]; ok {
		if str, ok := asString(v); ok && str != "" {
			voiceID = str
		}
	}

	track := 0
	if v, ok := params["track"]; ok {
		if f, ok := v.AsFloat64(); ok {
			track = int(f)
		}
	}

	msg := dsp.Message{Kind: kind, VoiceID: voiceID, Track: track, DueMicros: r.DueMicros}

	if kind == dsp.MsgPlay || kind == dsp.MsgUpdate {
		if amp, ok := params["amp"]; ok {
			if f, ok := amp.AsFloat64(); ok {
				msg.Amp = &f
			}
		}
		if pan, ok := params["pan"]; ok {
			if f, ok := pan.AsFloat64(); ok {
				msg.Pan = &f
			}
		}
	}

	if kind == dsp.MsgPlay {
		name, ok := params["s"]
		if !ok {
			s.logf("dirtplayer: /play missing required 's' key")
			return nil
		}
		sampleName, ok := asString(name)
		if !ok {
			s.logf("dirtplayer: /play 's' key must be a string")
			return nil
		}
		if s.lib == nil {
			s.logf("dirtplayer: no sample library configured, dropping %q", sampleName)
			return nil
		}
		sample, err := s.lib.Get(sampleName)
		if err != nil {
			s.logf("dirtplayer: load %q: %v", sampleName, err)
			return nil
		}
		msg.Source = sample
	}

	out := []dsp.Message{msg}

	// "dur" stops an explicitly-voiced play after the given duration,
	// mirroring a tracker's gate length; auto-assigned voices have no
	// id to address a follow-up stop at, so dur is only honored when
	// the caller named an explicit voice.
	if kind == dsp.MsgPlay && voiceID != dsp.AutoAssignVoice {
		if durVal, ok := params["dur"]; ok {
			if dur, ok := durVal.AsFloat64(); ok && dur > 0 {
				out = append(out, dsp.Message{
					Kind: dsp.MsgStop, VoiceID: voiceID,
					DueMicros: r.DueMicros + int64(dur*1e6),
				})
			}
		}
	}

	return out
}

// asString extracts a string from a Dirt parameter Value; only
// KindString values qualify, matching the Keys/Args protocol's use of
// string-typed arguments for names and ids.
func asString(v vm.Value) (string, bool) {
	if v.Kind != vm.KindString {
		return "", false
	}
	return v.Str, true
}

func dirtParams(r vm.Resolved) map[string]vm.Value {
	params := make(map[string]vm.Value, len(r.Keys))
	for i, k := range r.Keys {
		if i >= len(r.Args) {
			break
		}
		params[k] = r.Args[i]
	}
	return params
}

func commandKind(address string) (dsp.MessageKind, bool) {
	switch address {
	case "", "/play", "/dirt/play":
		return dsp.MsgPlay, true
	case "/update":
		return dsp.MsgUpdate, true
	case "/stop":
		return dsp.MsgStop, true
	case "/panic":
		return dsp.MsgPanic, true
	default:
		return 0, false
	}
}
