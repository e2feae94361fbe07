package scheduler

import "github.com/schollz/gridlive/internal/vm"

// Frame is the atomic triggerable unit: a cached compiled script plus
// per-trigger configuration. Source-language compilation is out of
// scope for this core — callers hand in an already-compiled *vm.Program.
type Frame struct {
	Duration    float64 // beats
	Enabled     bool
	Name        string
	Repetitions int
	Script      string // source text, kept for display/persistence only
	Language    string
	Program     *vm.Program
	Vars        map[string]vm.Value // per-frame variable store
}

func NewFrame(duration float64, program *vm.Program) *Frame {
	return &Frame{Duration: duration, Enabled: true, Repetitions: 1, Program: program, Vars: map[string]vm.Value{}}
}

// LineState is one playhead: a live traversal of a Line.
type LineState struct {
	CurrentFrame      int
	CurrentRepetition int
	LastTriggerMicros int64
	Triggered         bool // false means last_trigger == NEVER
	Terminal          bool

	// ElapsedLoopBeats accumulates the beats played since this playhead
	// last wrapped (or started), so a Line's CustomLoopLength can cut a
	// loop short independent of where CurrentFrame sits in the range.
	ElapsedLoopBeats float64
}

// Line is an ordered vector of Frames plus playback configuration and the
// live playhead set (LineState entries).
type Line struct {
	Frames []*Frame
	Vars   map[string]vm.Value

	SpeedFactor float64

	HasRange  bool
	StartFrame int
	EndFrame   int

	Looping bool
	Trailing bool

	HasCustomLoopLength bool
	CustomLoopLength    float64

	MaxPlayheads int // oldest-evict cap when Trailing accumulates playheads

	Playheads []*LineState
}

const DefaultMaxPlayheadsPerLine = 8

func NewLine(frames ...*Frame) *Line {
	l := &Line{
		Frames:       frames,
		Vars:         map[string]vm.Value{},
		SpeedFactor:  1,
		EndFrame:     len(frames) - 1,
		MaxPlayheads: DefaultMaxPlayheadsPerLine,
	}
	return l
}

func (l *Line) effectiveRange() (start, end int) {
	start, end = 0, len(l.Frames)-1
	if l.HasRange {
		start, end = l.StartFrame, l.EndFrame
	}
	if start < 0 {
		start = 0
	}
	if end >= len(l.Frames) {
		end = len(l.Frames) - 1
	}
	if start > end {
		start = end
	}
	return start, end
}

// resetPlayhead creates a single fresh playhead at the line's start frame.
func (l *Line) resetPlayhead() *LineState {
	start, _ := l.effectiveRange()
	return &LineState{CurrentFrame: start}
}

// startPlayhead realizes a TransportStart for this line: trailing lines
// push a new playhead, non-trailing lines replace their single playhead.
func (l *Line) startPlayhead() {
	ps := l.resetPlayhead()
	if l.Trailing {
		l.Playheads = append(l.Playheads, ps)
		if l.MaxPlayheads > 0 && len(l.Playheads) > l.MaxPlayheads {
			l.Playheads = l.Playheads[len(l.Playheads)-l.MaxPlayheads:]
		}
		return
	}
	l.Playheads = []*LineState{ps}
}

// repair restores every invariant after a structural mutation: repetitions
// length tracks frames length (repetitions now live on Frame itself, so
// there's nothing to resize there), play range is clamped into bounds, and
// every live playhead's CurrentFrame stays < len(Frames).
func (l *Line) repair() {
	if len(l.Frames) == 0 {
		return
	}
	for _, f := range l.Frames {
		if f.Repetitions < 1 {
			f.Repetitions = 1
		}
	}
	if l.HasRange {
		if l.StartFrame < 0 {
			l.StartFrame = 0
		}
		if l.EndFrame >= len(l.Frames) {
			l.EndFrame = len(l.Frames) - 1
		}
		if l.StartFrame > l.EndFrame {
			l.StartFrame = l.EndFrame
		}
	} else {
		l.EndFrame = len(l.Frames) - 1
	}
	for _, ps := range l.Playheads {
		if ps.CurrentFrame >= len(l.Frames) {
			ps.CurrentFrame = len(l.Frames) - 1
		}
		if ps.CurrentFrame < 0 {
			ps.CurrentFrame = 0
		}
	}
}

// onFrameInserted adjusts every playhead per the concurrency guarantee: a
// mutation that inserts before a playhead's position increments it.
func (l *Line) onFrameInserted(at int) {
	for _, ps := range l.Playheads {
		if at <= ps.CurrentFrame {
			ps.CurrentFrame++
		}
	}
	if l.HasRange && at <= l.EndFrame {
		l.EndFrame++
		if at <= l.StartFrame {
			l.StartFrame++
		}
	}
}

// onFrameRemoved adjusts every playhead per the concurrency guarantee: a
// mutation that removes a frame before a playhead decrements it; one that
// removes the playhead's current frame clamps it into bounds.
func (l *Line) onFrameRemoved(at int) {
	for _, ps := range l.Playheads {
		switch {
		case at < ps.CurrentFrame:
			ps.CurrentFrame--
		case at == ps.CurrentFrame:
			// Called after the frame is gone, so len(l.Frames) is the new length.
			if ps.CurrentFrame > len(l.Frames)-1 {
				ps.CurrentFrame = len(l.Frames) - 1
			}
			if ps.CurrentFrame < 0 {
				ps.CurrentFrame = 0
			}
		}
	}
	if l.HasRange {
		if at < l.StartFrame {
			l.StartFrame--
		}
		if at <= l.EndFrame {
			l.EndFrame--
		}
	}
}

// Scene is an ordered vector of Lines plus a scene length in beats.
type Scene struct {
	Lines       []*Line
	LengthBeats float64
}

func NewScene() *Scene { return &Scene{} }

// Snapshot is a copy of the Scene (a fresh Lines slice holding the same
// *Line values) plus Clock state, returned in reply to a MsgGetSnapshot
// query. The Scheduler does not push snapshots to observers.
type Snapshot struct {
	Scene       Scene
	TempoBPM    float64
	BeatPos     float64
	DriftMicros int64
}
