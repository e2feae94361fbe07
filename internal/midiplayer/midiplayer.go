// Package midiplayer adapts resolved VM MIDI events onto named MIDI
// output devices, opening and caching one midiconnector.Device per
// device name the first time it's addressed.
package midiplayer

import (
	"log"
	"sync"

	"github.com/schollz/gridlive/internal/midiconnector"
	"github.com/schollz/gridlive/internal/music"
	"github.com/schollz/gridlive/internal/scheduler"
	"github.com/schollz/gridlive/internal/vm"
)

// Sink dispatches resolved MIDI events from the Scheduler to MIDI output
// devices. It implements scheduler.EventSink.
type Sink struct {
	mu      sync.Mutex
	devices map[string]*midiconnector.Device
	logf    func(format string, args ...interface{})
}

var _ scheduler.EventSink = (*Sink)(nil)

// NewSink returns a Sink with no devices open yet; devices open lazily
// on first dispatch.
func NewSink() *Sink {
	return &Sink{
		devices: make(map[string]*midiconnector.Device),
		logf:    log.Printf,
	}
}

func (s *Sink) device(name string) (*midiconnector.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[name]; ok {
		return d, nil
	}
	d, err := midiconnector.New(name)
	if err != nil {
		return nil, err
	}
	if err := d.Open(); err != nil {
		return nil, err
	}
	s.devices[name] = d
	return d, nil
}

// Dispatch routes a resolved event to its named device. Non-MIDI kinds
// are ignored; another sink owns them.
func (s *Sink) Dispatch(r vm.Resolved) {
	switch r.Kind {
	case vm.EventMIDINoteOn, vm.EventMIDINoteOff, vm.EventMIDIProgramChange,
		vm.EventMIDIControlChange, vm.EventMIDIAftertouch, vm.EventMIDIChannelPressure,
		vm.EventMIDIPitchBend, vm.EventMIDISysex:
	default:
		return
	}

	d, err := s.device(r.Device)
	if err != nil {
		s.logf("midiplayer: open %s: %v", r.Device, err)
		return
	}

	var sendErr error
	switch r.Kind {
	case vm.EventMIDINoteOn:
		s.logf("midiplayer: %s note on %s (channel %d, velocity %d)", r.Device, music.MidiToNoteName(int(r.Note)), r.Channel, r.Velocity)
		sendErr = d.NoteOn(uint8(r.Channel), uint8(r.Note), uint8(r.Velocity))
	case vm.EventMIDINoteOff:
		sendErr = d.NoteOff(uint8(r.Channel), uint8(r.Note))
	case vm.EventMIDIProgramChange:
		sendErr = d.ProgramChange(uint8(r.Channel), uint8(r.Program))
	case vm.EventMIDIControlChange:
		sendErr = d.ControlChange(uint8(r.Channel), uint8(r.Control), valueToByte(r.Value))
	case vm.EventMIDIAftertouch:
		sendErr = d.PolyAftertouch(uint8(r.Channel), uint8(r.Note), valueToByte(r.Value))
	case vm.EventMIDIChannelPressure:
		sendErr = d.ChannelPressure(uint8(r.Channel), valueToByte(r.Value))
	case vm.EventMIDIPitchBend:
		sendErr = d.PitchBend(uint8(r.Channel), r.Pitch)
	case vm.EventMIDISysex:
		sendErr = d.Sysex(r.Sysex)
	}
	if sendErr != nil {
		s.logf("midiplayer: dispatch to %s: %v", r.Device, sendErr)
	}
}

// AllNotesOff silences every note on every device this sink has opened,
// without closing the ports. The Scheduler's MsgTransportStop handling
// does not call it.
func (s *Sink) AllNotesOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		d.AllNotesOff()
	}
}

// Close shuts down every device this sink opened.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, d := range s.devices {
		d.Close()
		delete(s.devices, name)
	}
}

func valueToByte(v vm.Value) uint8 {
	f, ok := v.AsFloat64()
	if !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 127 {
		return 127
	}
	return uint8(f)
}
