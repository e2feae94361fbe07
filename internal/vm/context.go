package vm

import "github.com/schollz/gridlive/internal/clock"

// Context is the evaluation context an Invocation runs against: the
// Clock, the frame length used for TimeSpan conversions, the three
// persistent variable stores it can see (Frame/Line/Global — Instance is
// owned by the Invocation itself), the environment, and the current
// frame's default MIDI device/channel for the context sentinels.
type Context struct {
	Clock       *clock.Clock
	FrameLength float64
	Env         Environment

	Frame  map[string]Value
	Line   map[string]Value
	Global map[string]Value

	Device  string
	Channel int

	// NowMicros is the time used to evaluate environment queries
	// (LFO phase, etc.) during this Run call; the Scheduler updates it to
	// the due time of a resumed invocation so LFO phase stays continuous.
	NowMicros int64
}
