package scheduler

import "github.com/schollz/gridlive/internal/vm"

// EventSink receives resolved VM events in the order the Scheduler
// dispatches them. Implementations (internal/midiplayer,
// internal/oscdevice, internal/audio) must not block.
type EventSink interface {
	Dispatch(vm.Resolved)
}

// SinkFunc adapts a plain function to an EventSink, mirroring the
// teacher's habit of taking small function-typed callbacks for sinks
// instead of requiring a dedicated type per caller.
type SinkFunc func(vm.Resolved)

func (f SinkFunc) Dispatch(r vm.Resolved) { f(r) }
