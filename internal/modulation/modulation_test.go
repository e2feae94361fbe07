package modulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseWrapsIntoUnitInterval(t *testing.T) {
	assert.InDelta(t, 0.0, phase(0, 1), 1e-9)
	assert.InDelta(t, 0.5, phase(500000, 1), 1e-9) // half a cycle at 1Hz after 0.5s
	assert.InDelta(t, 0.0, phase(1000000, 1), 1e-9) // exactly one full cycle
}

func TestSineSawISawTriangleStayInRange(t *testing.T) {
	b := NewBank(nil)
	for micros := int64(0); micros < 5_000_000; micros += 137_000 {
		for _, v := range []float64{
			b.Sine(micros, 2.3),
			b.Saw(micros, 2.3),
			b.ISaw(micros, 2.3),
			b.Triangle(micros, 2.3),
		} {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestSawAndISawAreMirrorImages(t *testing.T) {
	b := NewBank(nil)
	assert.InDelta(t, b.Saw(250000, 1), -b.ISaw(250000, 1), 1e-9)
}

func TestSineCompletesFullCycle(t *testing.T) {
	b := NewBank(nil)
	assert.InDelta(t, 0.0, b.Sine(0, 1), 1e-9)
	assert.InDelta(t, 1.0, b.Sine(250000, 1), 1e-9)
	assert.InDelta(t, 0.0, math.Abs(b.Sine(1000000, 1)), 1e-9)
}

func TestRandStepIsDeterministicForSameInputs(t *testing.T) {
	b := NewBank(nil)
	a := b.RandStep(4_237_000, 3.0)
	z := b.RandStep(4_237_000, 3.0)
	assert.Equal(t, a, z)
}

func TestRandStepDiffersAcrossSteps(t *testing.T) {
	b := NewBank(nil)
	seen := map[float64]bool{}
	for step := int64(0); step < 20; step++ {
		v := b.RandStep(step*1_000_000, 1.0)
		seen[v] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRandStepStaysInRange(t *testing.T) {
	b := NewBank(nil)
	for step := int64(0); step < 200; step++ {
		v := b.RandStep(step*333_000, 0.8)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestQuantizeToScaleSnapsToNearestMajorNote(t *testing.T) {
	assert.Equal(t, 0, quantizeToScale(0, "major", 0))
	assert.Equal(t, 0, quantizeToScale(1, "major", 0)) // C# is equidistant from C and D, ties favor the first match
	assert.Equal(t, 2, quantizeToScale(3, "major", 0)) // D# snaps down to D
}

func TestQuantizeToScaleUnknownNamePassesThrough(t *testing.T) {
	assert.Equal(t, 37, quantizeToScale(37, "nonexistent-scale", 0))
}

func TestQuantizeToScaleHandlesNegativeNotes(t *testing.T) {
	assert.Equal(t, 7, quantizeToScale(-5, "major", 0))
}

func TestWrapCounterWrapsWhenOverThreshold(t *testing.T) {
	assert.Equal(t, 0, wrapCounter(12, 12))
	assert.Equal(t, 5, wrapCounter(17, 12))
	assert.Equal(t, 5, wrapCounter(5, 12))
	assert.Equal(t, 100, wrapCounter(100, 0)) // wrap disabled
}

func TestGetScaleNamesIncludesMajor(t *testing.T) {
	names := GetScaleNames()
	assert.Contains(t, names, "major")
}

func TestGetNoteNamesHasTwelveNotes(t *testing.T) {
	assert.Len(t, GetNoteNames(), 12)
}

func TestCCMemoryDefaultsToZero(t *testing.T) {
	m := NewCCMemory()
	assert.Equal(t, 0.0, m.Get("nanokontrol", 0, 1))
}

func TestCCMemorySetThenGet(t *testing.T) {
	m := NewCCMemory()
	m.Set("nanokontrol", 0, 1, 0.75)
	assert.Equal(t, 0.75, m.Get("nanokontrol", 0, 1))
}

func TestCCMemoryKeysAreIndependentPerDeviceChannelControl(t *testing.T) {
	m := NewCCMemory()
	m.Set("a", 0, 1, 1.0)
	m.Set("b", 0, 1, 2.0)
	m.Set("a", 1, 1, 3.0)
	m.Set("a", 0, 2, 4.0)
	assert.Equal(t, 1.0, m.Get("a", 0, 1))
	assert.Equal(t, 2.0, m.Get("b", 0, 1))
	assert.Equal(t, 3.0, m.Get("a", 1, 1))
	assert.Equal(t, 4.0, m.Get("a", 0, 2))
}

func TestBankMidiCCReadsFromSuppliedMemory(t *testing.T) {
	cc := NewCCMemory()
	cc.Set("dev", 2, 7, 0.5)
	b := NewBank(cc)
	assert.Equal(t, 0.5, b.MidiCC("dev", 2, 7))
}

func TestNewBankWithNilMemoryReadsZero(t *testing.T) {
	b := NewBank(nil)
	assert.Equal(t, 0.0, b.MidiCC("dev", 0, 0))
}
