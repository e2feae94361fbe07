// Package midiconnector sends raw channel-voice and system messages to a
// named MIDI output port: note on/off (with active-note dedup), program
// change, control change, channel and polyphonic aftertouch, 14-bit pitch
// bend, system realtime, and opaque sysex.
package midiconnector

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// outputPort is the subset of drivers.Out this package depends on, so
// tests can substitute a fake without opening a real MIDI port.
type outputPort interface {
	Send(msg []byte) error
	Close() error
}

var mutex sync.Mutex
var devicesOpen map[string]outputPort

func init() {
	devicesOpen = make(map[string]outputPort)
}

// MIDI status-byte categories. The status byte sent on the wire is
// category | channel, channel 0..15.
const (
	statusNoteOff         byte = 0x80
	statusNoteOn          byte = 0x90
	statusPolyAftertouch  byte = 0xA0
	statusControlChange   byte = 0xB0
	statusProgramChange   byte = 0xC0
	statusChannelPressure byte = 0xD0
	statusPitchBend       byte = 0xE0
)

// System realtime messages are single status bytes carrying no channel.
const (
	RealtimeClock    byte = 0xF8
	RealtimeStart    byte = 0xFA
	RealtimeContinue byte = 0xFB
	RealtimeStop     byte = 0xFC
	RealtimeReset    byte = 0xFF
)

// PitchBendCenter is the 14-bit pitch bend value meaning "no bend."
const PitchBendCenter = 8192

// Device is a single named MIDI output with active-note tracking so
// NoteOff can release every held note on Close.
type Device struct {
	name    string
	num     int
	notesOn map[uint16]bool // (channel<<8 | note) -> active
}

func noteKey(channel, note uint8) uint16 {
	return uint16(channel)<<8 | uint16(note)
}

func filterName(name string) (foundName string, foundNum int, err error) {
	names := Devices()

	// Truncate name to first 3 words.
	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	truncatedName := strings.Join(words, " ")

	for i, n := range names {
		if strings.EqualFold(n, truncatedName) {
			return n, i, nil
		}
	}
	for i, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(truncatedName)) {
			return n, i, nil
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(truncatedName)) {
			return n, i, nil
		}
	}
	foundNum = -1
	err = fmt.Errorf("could not find device with name %s", truncatedName)
	return
}

func New(name string) (*Device, error) {
	var d Device
	var err error
	d.name, d.num, err = filterName(name)
	d.notesOn = make(map[uint16]bool)
	return &d, err
}

// Close shuts down every open output port, used at program exit.
func Close() {
	mutex.Lock()
	defer mutex.Unlock()
	for name, out := range devicesOpen {
		out.Close()
		delete(devicesOpen, name)
	}
}

func (d *Device) Open() error {
	mutex.Lock()
	defer mutex.Unlock()
	if _, ok := devicesOpen[d.name]; ok {
		return nil
	}
	out, err := midi.FindOutPort(d.name)
	if err != nil {
		return err
	}
	if err := out.Open(); err != nil {
		return err
	}
	devicesOpen[d.name] = out
	return nil
}

func (d *Device) Close() error {
	for key := range d.notesOn {
		d.sendRaw(statusNoteOff|byte(key>>8), byte(key&0xFF), 0)
	}
	d.notesOn = make(map[uint16]bool)

	mutex.Lock()
	defer mutex.Unlock()
	out, ok := devicesOpen[d.name]
	if !ok {
		return nil
	}
	err := out.Close()
	delete(devicesOpen, d.name)
	return err
}

// AllNotesOff releases every held note without closing the port, for a
// transport stop that should silence the device but keep it open.
func (d *Device) AllNotesOff() {
	for key := range d.notesOn {
		d.sendRaw(statusNoteOff|byte(key>>8), byte(key&0xFF), 0)
	}
	d.notesOn = make(map[uint16]bool)
}

func (d *Device) sendRaw(bytes ...byte) error {
	mutex.Lock()
	out, ok := devicesOpen[d.name]
	mutex.Unlock()
	if !ok {
		return fmt.Errorf("midiconnector: device %s not open", d.name)
	}
	if err := out.Send(bytes); err != nil {
		log.Printf("midiconnector: send error for device %s: %v", d.name, err)
		return err
	}
	return nil
}

// NoteOn sends a note-on, suppressing a duplicate on an already-active
// (channel, note) pair per the MIDI sink's dedup contract.
func (d *Device) NoteOn(channel, note, velocity uint8) error {
	key := noteKey(channel, note)
	if d.notesOn[key] {
		return nil
	}
	if err := d.sendRaw(statusNoteOn|channel, note, velocity); err != nil {
		return err
	}
	d.notesOn[key] = true
	return nil
}

// NoteOff sends a note-off, suppressing it if the (channel, note) pair
// isn't currently tracked as active.
func (d *Device) NoteOff(channel, note uint8) error {
	key := noteKey(channel, note)
	if !d.notesOn[key] {
		return nil
	}
	if err := d.sendRaw(statusNoteOff|channel, note, 0); err != nil {
		return err
	}
	delete(d.notesOn, key)
	return nil
}

// ProgramChange selects program (patch) on channel.
func (d *Device) ProgramChange(channel, program uint8) error {
	return d.sendRaw(statusProgramChange|channel, program)
}

// ControlChange sends a CC value for controller on channel.
func (d *Device) ControlChange(channel, controller, value uint8) error {
	return d.sendRaw(statusControlChange|channel, controller, value)
}

// ChannelPressure sends aftertouch that applies to every note on channel.
func (d *Device) ChannelPressure(channel, pressure uint8) error {
	return d.sendRaw(statusChannelPressure|channel, pressure)
}

// PolyAftertouch sends per-note pressure for a single held note.
func (d *Device) PolyAftertouch(channel, note, pressure uint8) error {
	return d.sendRaw(statusPolyAftertouch|channel, note, pressure)
}

// PitchBend sends a 14-bit bend value (0..16383, PitchBendCenter == no
// bend), split into MIDI's little-endian 7-bit LSB/MSB pair.
func (d *Device) PitchBend(channel uint8, value int) error {
	if value < 0 {
		value = 0
	}
	if value > 16383 {
		value = 16383
	}
	lsb := byte(value & 0x7F)
	msb := byte((value >> 7) & 0x7F)
	return d.sendRaw(statusPitchBend|channel, lsb, msb)
}

// SystemRealtime sends a single-byte realtime message (clock tick,
// start, continue, stop, reset). These carry no channel.
func (d *Device) SystemRealtime(msg byte) error {
	return d.sendRaw(msg)
}

// Sysex sends data as-is; callers supply the complete message including
// the leading 0xF0 and trailing 0xF7.
func (d *Device) Sysex(data []byte) error {
	return d.sendRaw(data...)
}

// Devices lists the names of every available MIDI output port.
func Devices() (devices []string) {
	outs := midi.GetOutPorts()
	for _, out := range outs {
		devices = append(devices, out.String())
	}
	return
}

// InputDevices lists the names of every available MIDI input port.
func InputDevices() (devices []string) {
	for _, in := range midi.GetInPorts() {
		devices = append(devices, in.String())
	}
	return
}

func filterInputName(name string) (foundName string, foundNum int, err error) {
	names := InputDevices()

	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	truncatedName := strings.Join(words, " ")

	for i, n := range names {
		if strings.EqualFold(n, truncatedName) {
			return n, i, nil
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(truncatedName)) {
			return n, i, nil
		}
	}
	foundNum = -1
	err = fmt.Errorf("could not find input device with name %s", truncatedName)
	return
}

// ListenCC opens the named MIDI input port and calls onCC for every
// incoming control-change message until the returned stop func is
// called. name (its first three words) is matched against the input
// port names case-insensitively: an exact match first, then a substring
// match. Unlike New's output-name matching there is no prefix pass.
func ListenCC(name string, onCC func(channel, control int, value float64)) (func(), error) {
	foundName, _, err := filterInputName(name)
	if err != nil {
		return nil, err
	}
	in, err := midi.FindInPort(foundName)
	if err != nil {
		return nil, fmt.Errorf("midiconnector: open input %s: %w", foundName, err)
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, cc, val uint8
		if msg.GetControlChange(&ch, &cc, &val) {
			onCC(int(ch), int(cc), float64(val)/127.0)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("midiconnector: listen on %s: %w", foundName, err)
	}
	return stop, nil
}
