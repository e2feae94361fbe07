// Package oscserver runs the external OSC command server: it receives
// OSC commands over UDP and forwards them as scheduler.Message values
// onto the Scheduler's inbound queue, the network-facing counterpart of
// oscdevice's outbound client usage — same dependency, opposite role.
package oscserver

import (
	"log"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/gridlive/internal/scheduler"
)

// Server wraps an osc.Server, dispatching recognized addresses onto a
// Scheduler's inbound queue via Send.
type Server struct {
	addr   string
	send   func(scheduler.Message)
	server *osc.Server
	logf   func(format string, args ...interface{})
}

// New builds a Server listening on addr (e.g. "127.0.0.1:9000") that
// forwards recognized commands to send, ordinarily Scheduler.Send.
func New(addr string, send func(scheduler.Message)) *Server {
	s := &Server{addr: addr, send: send, logf: log.Printf}

	d := osc.NewStandardDispatcher()
	d.AddMsgHandler("/tempo", s.handleSetTempo)
	d.AddMsgHandler("/transport/start", s.handleTransportStart)
	d.AddMsgHandler("/transport/stop", s.handleTransportStop)
	d.AddMsgHandler("/frame/enable", s.handleEnableFrames)
	d.AddMsgHandler("/frame/disable", s.handleDisableFrames)
	d.AddMsgHandler("/frame/repetitions", s.handleSetFrameRepetitions)
	d.AddMsgHandler("/line/length", s.handleSetLineLength)
	d.AddMsgHandler("/line/speed", s.handleSetLineSpeedFactor)

	s.server = &osc.Server{Addr: addr, Dispatcher: d}
	return s
}

// ListenAndServe blocks, serving OSC commands until the connection fails
// or is closed.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

func (s *Server) handleSetTempo(msg *osc.Message) {
	tempo, ok := floatArg(msg, 0)
	if !ok {
		s.logf("oscserver: /tempo missing float argument")
		return
	}
	s.send(scheduler.Message{Kind: scheduler.MsgSetTempo, Tempo: tempo, Timing: scheduler.AtImmediate()})
}

func (s *Server) handleTransportStart(msg *osc.Message) {
	s.send(scheduler.Message{Kind: scheduler.MsgTransportStart, Timing: scheduler.AtImmediate()})
}

func (s *Server) handleTransportStop(msg *osc.Message) {
	s.send(scheduler.Message{Kind: scheduler.MsgTransportStop, Timing: scheduler.AtImmediate()})
}

func (s *Server) handleEnableFrames(msg *osc.Message) {
	line, frame, ok := lineFrameArgs(msg)
	if !ok {
		s.logf("oscserver: /frame/enable requires (line, frame) int arguments")
		return
	}
	s.send(scheduler.Message{Kind: scheduler.MsgEnableFrames, Line: line, Frame: frame, Timing: scheduler.AtNextBeat()})
}

func (s *Server) handleDisableFrames(msg *osc.Message) {
	line, frame, ok := lineFrameArgs(msg)
	if !ok {
		s.logf("oscserver: /frame/disable requires (line, frame) int arguments")
		return
	}
	s.send(scheduler.Message{Kind: scheduler.MsgDisableFrames, Line: line, Frame: frame, Timing: scheduler.AtNextBeat()})
}

func (s *Server) handleSetFrameRepetitions(msg *osc.Message) {
	line, frame, ok := lineFrameArgs(msg)
	if !ok || len(msg.Arguments) < 3 {
		s.logf("oscserver: /frame/repetitions requires (line, frame, count) arguments")
		return
	}
	count, ok := intArg(msg, 2)
	if !ok {
		s.logf("oscserver: /frame/repetitions count must be an int")
		return
	}
	s.send(scheduler.Message{
		Kind: scheduler.MsgSetFrameRepetitions, Line: line, Frame: frame,
		Repetitions: count, Timing: scheduler.AtNextBeat(),
	})
}

func (s *Server) handleSetLineLength(msg *osc.Message) {
	line, ok := intArg(msg, 0)
	length, lok := floatArg(msg, 1)
	if !ok || !lok {
		s.logf("oscserver: /line/length requires (line int, length float)")
		return
	}
	s.send(scheduler.Message{Kind: scheduler.MsgSetLineLength, Line: line, Length: length, Timing: scheduler.AtNextBeat()})
}

func (s *Server) handleSetLineSpeedFactor(msg *osc.Message) {
	line, ok := intArg(msg, 0)
	speed, sok := floatArg(msg, 1)
	if !ok || !sok {
		s.logf("oscserver: /line/speed requires (line int, speed float)")
		return
	}
	s.send(scheduler.Message{Kind: scheduler.MsgSetLineSpeedFactor, Line: line, Speed: speed, Timing: scheduler.AtNextBeat()})
}

func lineFrameArgs(msg *osc.Message) (line, frame int, ok bool) {
	if len(msg.Arguments) < 2 {
		return 0, 0, false
	}
	line, lok := intArg(msg, 0)
	frame, fok := intArg(msg, 1)
	return line, frame, lok && fok
}

func intArg(msg *osc.Message, i int) (int, bool) {
	if i >= len(msg.Arguments) {
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func floatArg(msg *osc.Message, i int) (float64, bool) {
	if i >= len(msg.Arguments) {
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
