package midiplayer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/gridlive/internal/vm"
)

func TestValueToByteClampsToMidiRange(t *testing.T) {
	assert.Equal(t, uint8(0), valueToByte(vm.Float(-5)))
	assert.Equal(t, uint8(127), valueToByte(vm.Float(999)))
	assert.Equal(t, uint8(64), valueToByte(vm.Integer(64)))
}

func TestValueToByteNonNumericDefaultsToZero(t *testing.T) {
	assert.Equal(t, uint8(0), valueToByte(vm.Value{}))
}

func TestDispatchIgnoresNonMIDIEventKinds(t *testing.T) {
	s := NewSink()
	// No MIDI hardware is available in this environment; a non-MIDI kind
	// must return before ever touching a device.
	s.Dispatch(vm.Resolved{Kind: vm.EventOSC, Device: "anything"})
	assert.Empty(t, s.devices)
}

func TestDispatchOnUnresolvableDeviceLogsAndDoesNotPanic(t *testing.T) {
	s := NewSink()
	assert.NotPanics(t, func() {
		s.Dispatch(vm.Resolved{Kind: vm.EventMIDINoteOn, Device: "definitely-not-a-real-device-xyz", Note: 60, Velocity: 100})
	})
	assert.Empty(t, s.devices) // device never successfully opened
}

func TestAllNotesOffAndCloseOnEmptySinkAreNoOps(t *testing.T) {
	s := NewSink()
	assert.NotPanics(t, s.AllNotesOff)
	assert.NotPanics(t, s.Close)
}
