// Package oscdevice adapts resolved VM OSC and Dirt events onto named UDP
// OSC targets, opening and caching one osc.Client per device name the
// first time it's addressed, the same lazy-open idiom midiplayer uses for
// MIDI devices.
package oscdevice

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/gridlive/internal/scheduler"
	"github.com/schollz/gridlive/internal/vm"
)

// DirtAddress is the address Dirt-kind events are sent to; the audio
// engine's own control surface, separate from arbitrary named OSC
// devices addressed by EventOSC's own Event.Address.
const DirtAddress = "/dirt/play"

// Sink dispatches resolved OSC and Dirt events from the Scheduler to UDP
// OSC targets. It implements scheduler.EventSink.
type Sink struct {
	mu      sync.Mutex
	clients map[string]*osc.Client
	resolve func(device string) (host string, port int)
	logf    func(format string, args ...interface{})
}

var _ scheduler.EventSink = (*Sink)(nil)

// NewSink returns a Sink that resolves a device name to (host, port) via
// resolve. Devices named "host:port" are also accepted directly without
// requiring a resolve entry, matching the teacher's single
// "localhost"+port OSC client made general to many named targets.
func NewSink(resolve func(device string) (host string, port int)) *Sink {
	return &Sink{
		clients: make(map[string]*osc.Client),
		resolve: resolve,
		logf:    log.Printf,
	}
}

func (s *Sink) client(device string) (*osc.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[device]; ok {
		return c, nil
	}

	host, port, err := s.addressFor(device)
	if err != nil {
		return nil, err
	}
	c := osc.NewClient(host, port)
	s.clients[device] = c
	return c, nil
}

func (s *Sink) addressFor(device string) (string, int, error) {
	if host, portStr, ok := strings.Cut(device, ":"); ok {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port, nil
		}
	}
	if s.resolve != nil {
		if host, port := s.resolve(device); host != "" {
			return host, port, nil
		}
	}
	return "", 0, fmt.Errorf("oscdevice: unknown device %q", device)
}

// Dispatch routes a resolved OSC or Dirt event to its UDP target.
// Non-OSC, non-Dirt kinds are ignored; other sinks own them.
func (s *Sink) Dispatch(r vm.Resolved) {
	switch r.Kind {
	case vm.EventOSC:
		s.dispatchOSC(r)
	case vm.EventDirt:
		s.dispatchDirt(r)
	}
}

// dispatchOSC sends r's Args as positional OSC arguments to r.Address on
// r.Device, mirroring sendOSCMessage's address+Parameters shape.
func (s *Sink) dispatchOSC(r vm.Resolved) {
	c, err := s.client(r.Device)
	if err != nil {
		s.logf("oscdevice: %v", err)
		return
	}

	msg := osc.NewMessage(r.Address)
	for _, a := range r.Args {
		appendArg(msg, a)
	}
	if err := c.Send(msg); err != nil {
		s.logf("oscdevice: send to %s%s: %v", r.Device, r.Address, err)
	}
}

// dispatchDirt sends r's Keys/Args as named parameters to the audio
// engine's control surface, at the address carried in r.Address,
// defaulting to DirtAddress when that is empty.
func (s *Sink) dispatchDirt(r vm.Resolved) {
	c, err := s.client(r.Device)
	if err != nil {
		s.logf("oscdevice: %v", err)
		return
	}

	address := DirtAddress
	if r.Address != "" {
		address = r.Address
	}

	msg := osc.NewMessage(address)
	for i, key := range r.Keys {
		if i >= len(r.Args) {
			break
		}
		msg.Append(key)
		appendArg(msg, r.Args[i])
	}
	if err := c.Send(msg); err != nil {
		s.logf("oscdevice: dirt send to %s: %v", r.Device, err)
	}
}

func appendArg(msg *osc.Message, v vm.Value) {
	switch {
	case v.Kind == vm.KindString:
		msg.Append(v.Str)
	case v.Kind == vm.KindBool:
		msg.Append(v.Bool)
	default:
		if f, ok := v.AsFloat64(); ok {
			msg.Append(float32(f))
			return
		}
		msg.Append(v.String())
	}
}

// Close is a no-op: osc.Client holds no persistent connection to close,
// unlike a MIDI port.
func (s *Sink) Close() {}
