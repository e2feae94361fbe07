// Package modulation implements the VM's free-running LFO bank and
// MIDI-in CC memory: vm.Environment's concrete supplier of external,
// read-only state. Every LFO method is a pure function of (atMicros,
// speed) so suspending and resuming an invocation across a block
// boundary reproduces the value a straight run would have produced.
package modulation

import (
	"math"
	"sync"
)

const twoPi = 2 * math.Pi

// Bank is the VM environment: the LFO bank plus a read-only view onto
// CCMemory. It satisfies vm.Environment.
type Bank struct {
	cc *CCMemory
}

// NewBank builds a Bank reading from cc. A nil cc reads as zero for
// every control, matching "no MIDI input connected yet."
func NewBank(cc *CCMemory) *Bank {
	if cc == nil {
		cc = NewCCMemory()
	}
	return &Bank{cc: cc}
}

// phase returns speed's fractional cycle position at atMicros, in [0, 1).
func phase(atMicros int64, speed float64) float64 {
	cycles := float64(atMicros) / 1e6 * speed
	_, frac := math.Modf(cycles)
	if frac < 0 {
		frac += 1
	}
	return frac
}

// Sine returns a free-running sine oscillator value in [-1, 1].
func (b *Bank) Sine(atMicros int64, speed float64) float64 {
	return math.Sin(twoPi * phase(atMicros, speed))
}

// Saw returns a rising ramp in [-1, 1].
func (b *Bank) Saw(atMicros int64, speed float64) float64 {
	return 2*phase(atMicros, speed) - 1
}

// ISaw returns a falling ramp in [-1, 1] — Saw's mirror image.
func (b *Bank) ISaw(atMicros int64, speed float64) float64 {
	return 1 - 2*phase(atMicros, speed)
}

// Triangle returns a symmetric rise/fall ramp in [-1, 1].
func (b *Bank) Triangle(atMicros int64, speed float64) float64 {
	p := phase(atMicros, speed)
	if p < 0.5 {
		return 4*p - 1
	}
	return 3 - 4*p
}

// RandStep holds one deterministic value per cycle rather than
// interpolating: a position hash produces a raw note value each cycle,
// which is wrapped into a single octave via wrapCounter and quantized to
// the major scale via quantizeToScale — the same wrap-and-quantize model
// the original instrument used for note modulation — so the stepped
// values land on musically related intervals instead of raw uniform
// noise, then rescaled to [-1, 1].
func (b *Bank) RandStep(atMicros int64, speed float64) float64 {
	step := stepIndex(atMicros, speed)
	raw := stepHash(step) % 128
	wrapped := wrapCounter(raw, 12)
	quantized := quantizeToScale(wrapped, "major", 0)
	return float64(quantized)/6.0 - 1.0
}

// MidiCC reads the current value of a MIDI-in controller from CC memory.
func (b *Bank) MidiCC(device string, channel int, control int) float64 {
	return b.cc.Get(device, channel, control)
}

func stepIndex(atMicros int64, speed float64) int64 {
	cycles := float64(atMicros) / 1e6 * speed
	return int64(math.Floor(cycles))
}

// stepHash deterministically maps a step index to a non-negative value;
// unlike math/rand it needs no mutable seed state, which is what keeps
// RandStep a pure function of (atMicros, speed).
func stepHash(step int64) int {
	h := uint64(step)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return int(h % (1 << 31))
}

// wrapCounter folds a counter into [0, wrapValue) when wrapValue > 0,
// generalizing the original instrument's increment-counter wrapping
// (apply the wrap modulo once the counter reaches or exceeds it) into a
// standalone helper usable outside an increment-specific call site.
func wrapCounter(counter, wrapValue int) int {
	if wrapValue > 0 && counter >= wrapValue {
		return counter % wrapValue
	}
	return counter
}

// Scale is a musical scale: the set of MIDI note offsets within an
// octave (0-11) that belong to it.
type Scale struct {
	Name  string
	Notes []int
}

// Scales are the musical scales quantizeToScale can snap a note to.
var Scales = map[string]Scale{
	"all": {
		Name:  "All Notes",
		Notes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	"major": {
		Name:  "Major",
		Notes: []int{0, 2, 4, 5, 7, 9, 11},
	},
	"minor": {
		Name:  "Minor",
		Notes: []int{0, 2, 3, 5, 7, 8, 10},
	},
	"dorian": {
		Name:  "Dorian",
		Notes: []int{0, 2, 3, 5, 7, 9, 10},
	},
	"mixolydian": {
		Name:  "Mixolydian",
		Notes: []int{0, 2, 4, 5, 7, 9, 10},
	},
	"pentatonic": {
		Name:  "Pentatonic",
		Notes: []int{0, 2, 4, 7, 9},
	},
	"blues": {
		Name:  "Blues",
		Notes: []int{0, 3, 5, 6, 7, 10},
	},
	"chromatic": {
		Name:  "Chromatic",
		Notes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
}

// NoteNames names the twelve scale-root choices, C through B.
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// GetScaleNames returns every available scale name.
func GetScaleNames() []string {
	names := make([]string, 0, len(Scales))
	for name := range Scales {
		names = append(names, name)
	}
	return names
}

// GetNoteNames returns the twelve note names.
func GetNoteNames() []string {
	return NoteNames
}

// quantizeToScale quantizes a MIDI note to the closest note in the
// named scale, transposed by scaleRoot. An unknown scale name passes
// the note through unchanged.
func quantizeToScale(note int, scaleName string, scaleRoot int) int {
	scale, exists := Scales[scaleName]
	if !exists {
		return note
	}

	if note < 0 {
		octaves := (-note / 12) + 1
		note += octaves * 12
	}

	octave := note / 12
	noteInOctave := note % 12

	transposedNote := (noteInOctave - scaleRoot + 12) % 12

	minDistance := 12
	closestNote := transposedNote
	for _, scaleNote := range scale.Notes {
		distance := abs(transposedNote - scaleNote)
		if distance < minDistance {
			minDistance = distance
			closestNote = scaleNote
		}
	}

	finalNote := (closestNote + scaleRoot) % 12
	return octave*12 + finalNote
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CCMemory holds the last-seen value of every (device, channel,
// control) triple the MIDI-in task has observed. Writes happen only
// from the MIDI-in task; reads happen from VM invocations via a
// snapshot-safe RWMutex, matching "the shared mutable parts are updated
// only from their owner thread, readers observe via captured state."
type CCMemory struct {
	mu     sync.RWMutex
	values map[ccKey]float64
}

type ccKey struct {
	device  string
	channel int
	control int
}

func NewCCMemory() *CCMemory {
	return &CCMemory{values: make(map[ccKey]float64)}
}

// Set records an incoming CC value. Call this only from the MIDI-in
// task.
func (m *CCMemory) Set(device string, channel, control int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[ccKey{device, channel, control}] = value
}

// Get reads the last recorded value, or 0 if the controller has never
// been observed.
func (m *CCMemory) Get(device string, channel, control int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[ccKey{device, channel, control}]
}
