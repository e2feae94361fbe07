package scheduler

import (
	"log"
	"math"
	"sort"
	"sync"

	"github.com/schollz/gridlive/internal/clock"
	"github.com/schollz/gridlive/internal/vm"
)

// suspendedInvocation is a VM invocation parked on a non-zero CallEffect
// delay, per spec §9's "serialize (pc, stack, locals) into a small
// parked-invocation record" note — here that record is simply the live
// *vm.Invocation itself, since Go lets us keep it around directly instead
// of re-serializing it.
type suspendedInvocation struct {
	inv          *vm.Invocation
	lineIndex    int
	emittedCount int // events already returned from inv.Emitted
}

// Scheduler owns the Scene exclusively and drives it in beat-time. All
// scene mutation flows through Send -> Tick's single dispatch point,
// apply; nothing else touches Scene concurrently.
type Scheduler struct {
	mu sync.Mutex

	Clock       *clock.Clock
	Scene       *Scene
	Global      map[string]vm.Value
	Env         vm.Environment
	FrameLength float64

	sinks []EventSink

	inbound chan Message
	pending []pendingMessage

	suspended []*suspendedInvocation

	prevBeat float64

	logf func(format string, args ...interface{})
}

// New creates a Scheduler bound to clock c (a default loopback Clock when
// nil) and VM environment env (the LFO/random-step/MIDI-CC bank).
func New(c *clock.Clock, env vm.Environment) *Scheduler {
	if c == nil {
		c = clock.New(nil)
	}
	return &Scheduler{
		Clock:       c,
		Scene:       NewScene(),
		Global:      map[string]vm.Value{},
		Env:         env,
		FrameLength: 1,
		inbound:     make(chan Message, 256),
		logf:        log.Printf,
	}
}

func (s *Scheduler) AddSink(sink EventSink) { s.sinks = append(s.sinks, sink) }

// Send enqueues a message from any producer thread (TUI, OSC command
// server, relay peer). A full inbound queue drops the message and logs —
// control messages get a deep enough queue in practice that this is a
// last-resort backstop, matching spec §5's "full queues drop lowest-
// priority items" (this bus only ever carries control messages).
func (s *Scheduler) Send(m Message) {
	select {
	case s.inbound <- m:
	default:
		s.logf("scheduler: inbound queue full, dropping message kind %d", m.Kind)
	}
}

// Tick runs one scheduler iteration at nowMicros: drains the inbound
// queue, applies due mutations, triggers due frames, resumes suspended
// invocations, and returns every event emitted this tick sorted by
// (line_index, due_time).
func (s *Scheduler) Tick(nowMicros int64) []vm.Resolved {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Clock.Advance(nowMicros)
	beat := s.Clock.Beat()

	s.drainInbound(nowMicros)
	s.applyDue(beat)

	var events []vm.Resolved
	events = append(events, s.resumeSuspended(nowMicros)...)
	events = append(events, s.triggerDue(nowMicros)...)

	sortEvents(events)
	for _, e := range events {
		for _, sink := range s.sinks {
			sink.Dispatch(e)
		}
	}

	s.prevBeat = beat
	return events
}

func (s *Scheduler) drainInbound(now int64) {
	for {
		select {
		case m := <-s.inbound:
			s.pending = append(s.pending, pendingMessage{msg: m, due: now})
		default:
			return
		}
	}
}

func (s *Scheduler) applyDue(beat float64) {
	var remaining []pendingMessage
	for _, pm := range s.pending {
		if s.isDue(pm.msg.Timing, beat) {
			s.apply(pm.msg, pm.due)
		} else {
			remaining = append(remaining, pm)
		}
	}
	s.pending = remaining
}

func (s *Scheduler) isDue(t ActionTiming, beat float64) bool {
	switch t.Kind {
	case Immediate:
		return true
	case OnNextBeat:
		return math.Floor(beat) != math.Floor(s.prevBeat)
	case EndOfScene:
		if s.Scene.LengthBeats <= 0 {
			return true
		}
		return math.Floor(beat/s.Scene.LengthBeats) != math.Floor(s.prevBeat/s.Scene.LengthBeats)
	case OnSpecificBeat:
		return beat >= t.Beat
	}
	return true
}

// triggerDue advances every line's playheads, triggering any frame whose
// next_trigger_time has arrived (possibly more than once per tick, per
// spec §4.3 step 3: "while any playhead is due, trigger").
func (s *Scheduler) triggerDue(now int64) []vm.Resolved {
	var events []vm.Resolved
	for lineIdx, l := range s.Scene.Lines {
		if len(l.Frames) == 0 {
			continue
		}
		var alive []*LineState
		for _, ps := range l.Playheads {
			for !ps.Terminal {
				frame := l.Frames[ps.CurrentFrame]
				speed := l.SpeedFactor
				if speed <= 0 {
					speed = 1
				}
				var nextTrigger int64
				if !ps.Triggered {
					nextTrigger = now
				} else {
					durationMicros := s.Clock.BeatsToMicros(frame.Duration)
					nextTrigger = ps.LastTriggerMicros + int64(float64(durationMicros)/speed)
				}
				if now < nextTrigger {
					break
				}
				if frame.Enabled {
					events = append(events, s.triggerFrame(lineIdx, l, frame, nextTrigger)...)
				}
				ps.LastTriggerMicros = nextTrigger
				ps.Triggered = true
				s.advancePlayhead(l, ps)
			}
			if !ps.Terminal {
				alive = append(alive, ps)
			}
		}
		l.Playheads = alive
	}
	return events
}

// advancePlayhead implements the per-playhead state machine from spec
// §4.3: repeat the current frame frame.Repetitions times, then move on;
// past the line's effective end, a looping solo playhead wraps, anything
// else is reaped. A Line's CustomLoopLength, when set, overrides that
// frame-index wrap boundary with a beat-count budget: once a solo,
// looping playhead has played CustomLoopLength beats since its last
// wrap, it wraps back to the range's start immediately, regardless of
// how far through the frame range it has gotten.
func (s *Scheduler) advancePlayhead(l *Line, ps *LineState) {
	frame := l.Frames[ps.CurrentFrame]
	ps.ElapsedLoopBeats += frame.Duration

	if l.Looping && l.HasCustomLoopLength && l.CustomLoopLength > 0 &&
		len(l.Playheads) == 1 && ps.ElapsedLoopBeats >= l.CustomLoopLength {
		start, _ := l.effectiveRange()
		ps.CurrentFrame = start
		ps.CurrentRepetition = 0
		ps.ElapsedLoopBeats = 0
		return
	}

	if ps.CurrentRepetition+1 < frame.Repetitions {
		ps.CurrentRepetition++
		return
	}
	ps.CurrentRepetition = 0
	start, end := l.effectiveRange()
	next := ps.CurrentFrame + 1
	if next > end {
		if l.Looping && len(l.Playheads) == 1 {
			ps.CurrentFrame = start
			ps.ElapsedLoopBeats = 0
			return
		}
		ps.Terminal = true
		return
	}
	ps.CurrentFrame = next
}

// triggerFrame compiles nothing (compilation is out of scope here; the
// caller hands in an already-compiled Program) — it creates a fresh VM
// invocation against (Frame, Line, Global) stores and runs it to
// completion or suspension.
func (s *Scheduler) triggerFrame(lineIdx int, l *Line, frame *Frame, dueMicros int64) []vm.Resolved {
	if frame.Program == nil {
		return nil
	}
	ctx := &vm.Context{
		Clock:       s.Clock,
		FrameLength: s.FrameLength,
		Env:         s.Env,
		Frame:       frame.Vars,
		Line:        l.Vars,
		Global:      s.Global,
	}
	inv := vm.NewInvocation(ctx, frame.Program, lineIdx)
	done, err := inv.Run(dueMicros)
	if err != nil {
		s.logf("scheduler: invocation error on line %d: %v", lineIdx, err)
		return inv.Emitted
	}
	if !done {
		s.suspended = append(s.suspended, &suspendedInvocation{inv: inv, lineIndex: lineIdx, emittedCount: len(inv.Emitted)})
	}
	return inv.Emitted
}

// resumeSuspended re-enters every parked invocation whose resume time has
// arrived. inv.Emitted accumulates across Run calls, so each suspension
// tracks how much of it was already returned.
func (s *Scheduler) resumeSuspended(now int64) []vm.Resolved {
	var events []vm.Resolved
	var alive []*suspendedInvocation
	for _, sus := range s.suspended {
		if now < sus.inv.ResumeAtMicros {
			alive = append(alive, sus)
			continue
		}
		done, err := sus.inv.Run(sus.inv.ResumeAtMicros)
		if err != nil {
			s.logf("scheduler: resumed invocation error on line %d: %v", sus.lineIndex, err)
		}
		events = append(events, sus.inv.Emitted[sus.emittedCount:]...)
		sus.emittedCount = len(sus.inv.Emitted)
		if !done {
			alive = append(alive, sus)
		}
	}
	s.suspended = alive
	return events
}

func sortEvents(events []vm.Resolved) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].LineIndex != events[j].LineIndex {
			return events[i].LineIndex < events[j].LineIndex
		}
		return events[i].DueMicros < events[j].DueMicros
	})
}

func (s *Scheduler) withLine(idx int, fn func(*Line)) {
	if idx < 0 || idx >= len(s.Scene.Lines) {
		s.logf("scheduler: rejected message: line index %d out of range", idx)
		return
	}
	fn(s.Scene.Lines[idx])
}

func (s *Scheduler) withFrame(lineIdx, frameIdx int, fn func(*Frame)) {
	s.withLine(lineIdx, func(l *Line) {
		if frameIdx < 0 || frameIdx >= len(l.Frames) {
			s.logf("scheduler: rejected message: frame index %d out of range on line %d", frameIdx, lineIdx)
			return
		}
		fn(l.Frames[frameIdx])
	})
}

func (s *Scheduler) reply(m Message, v any) {
	if m.Reply == nil {
		return
	}
	select {
	case m.Reply <- v:
	default:
	}
}

func (s *Scheduler) snapshot() Snapshot {
	cloned := *s.Scene
	cloned.Lines = append([]*Line(nil), s.Scene.Lines...)
	st := s.Clock.State()
	return Snapshot{Scene: cloned, TempoBPM: st.Tempo, BeatPos: st.Beat, DriftMicros: st.DriftMicros}
}
