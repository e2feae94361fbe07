package scheduler

import "github.com/schollz/gridlive/internal/vm"

// TimingKind identifies one of the four effective-timing rules every
// mutation message carries.
type TimingKind int

const (
	Immediate TimingKind = iota
	OnNextBeat
	EndOfScene
	OnSpecificBeat
)

// ActionTiming is carried by every mutation Message; it is the single
// collapsed form of what the source had as two overlapping message paths
// (see DESIGN.md).
type ActionTiming struct {
	Kind TimingKind
	Beat float64 // only meaningful for OnSpecificBeat
}

func AtImmediate() ActionTiming      { return ActionTiming{Kind: Immediate} }
func AtNextBeat() ActionTiming       { return ActionTiming{Kind: OnNextBeat} }
func AtEndOfScene() ActionTiming     { return ActionTiming{Kind: EndOfScene} }
func AtSpecificBeat(b float64) ActionTiming { return ActionTiming{Kind: OnSpecificBeat, Beat: b} }

// MessageKind enumerates every inbound-bus variant from spec §6. This is
// the single message algebra: one sum type, one dispatch point
// (Scheduler.apply), no SchedulerControl-wrapping-a-sub-enum duplication.
type MessageKind int

const (
	MsgSetTempo MessageKind = iota
	MsgTransportStart
	MsgTransportStop

	MsgEnableFrames
	MsgDisableFrames
	MsgUploadScript
	MsgSetFrameName
	MsgSetScriptLanguage
	MsgSetFrameRepetitions
	MsgInsertFrame
	MsgRemoveFrame
	MsgUpdateLineFrames

	MsgAddLine
	MsgRemoveLine
	MsgSetLine
	MsgSetLineStartFrame
	MsgSetLineEndFrame
	MsgSetLineLength
	MsgSetLineSpeedFactor
	MsgSetSceneLength

	MsgDuplicateFrameRange
	MsgRemoveFramesMultiLine
	MsgInsertDuplicatedBlocks

	MsgGetScene
	MsgGetSnapshot
	MsgGetClock
	MsgGetScript
)

// FrameRange is one (line, [start,end]) span used by bulk operations.
type FrameRange struct {
	Line  int
	Start int
	End   int
}

// Message is the single inbound-bus algebra. Exactly the fields relevant
// to Kind are read; the rest are zero. Queries set Reply and the
// Scheduler sends their result there synchronously within the tick that
// serviced them.
type Message struct {
	Kind   MessageKind
	Timing ActionTiming

	Line    int
	Lines   []int
	Indices []int
	Frame   int

	Script   string
	Name     *string
	Language string

	Repetitions int
	Duration    float64
	Durations   []float64
	Program     *vm.Program

	NewLine *Line

	StartFrame int
	EndFrame   int
	Length     float64
	Speed      float64

	BeatOffset float64
	Tempo      float64

	Ranges []FrameRange

	Reply chan any
}

// Queued values below are what the Scheduler's pending list (a plain
// slice scanned every Tick) holds: a Message plus the time it was
// drained from the inbound queue.
type pendingMessage struct {
	msg Message
	due int64
}
