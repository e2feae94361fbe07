package vm

// Environment supplies the VM's external, read-only state: the
// free-running LFO bank and the MIDI-in CC memory. Every method is a pure
// function of (atMicros, ...) so that suspending and resuming an
// invocation across a block boundary reproduces the value it would have
// produced in one straight run.
type Environment interface {
	Sine(atMicros int64, speed float64) float64
	Saw(atMicros int64, speed float64) float64
	Triangle(atMicros int64, speed float64) float64
	ISaw(atMicros int64, speed float64) float64
	RandStep(atMicros int64, speed float64) float64
	MidiCC(device string, channel int, control int) float64
}
