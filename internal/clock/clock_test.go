package clock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTempoClampsToMinimum(t *testing.T) {
	c := New(nil)
	c.SetTempo(5)
	assert.Equal(t, MinTempo, c.Tempo())

	c.SetTempo(128)
	assert.Equal(t, 128.0, c.Tempo())
}

func TestTempoZeroIsUninitialized(t *testing.T) {
	c := New(nil)
	assert.Equal(t, 0.0, c.Tempo())
	assert.Equal(t, uint64(0), c.BeatsToMicros(4))
	assert.Equal(t, 0.0, c.MicrosToBeats(1_000_000))
}

func TestBeatsMicrosRoundTrip(t *testing.T) {
	c := New(nil)
	for _, bpm := range []float64{20, 60, 90, 120, 174, 200} {
		c.SetTempo(bpm)
		for _, b := range []float64{0, 0.25, 1, 2, 3.5, 16, 64} {
			m := c.BeatsToMicros(b)
			back := c.MicrosToBeats(m)
			assert.InDelta(t, b, back, 1e-6, "bpm=%v beat=%v", bpm, b)
		}
	}
}

func TestBeatsToMicrosFormula(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	got := c.BeatsToMicros(2)
	want := uint64(math.Round(2.0 / 120.0 * 60_000_000.0))
	assert.Equal(t, want, got)
}

func TestDateAtBeatAndBeatAtDateAreInverses(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	c.Advance(c.Micros())

	d := c.DateAtBeat(8)
	b := c.BeatAtDate(d)
	assert.InDelta(t, 8, b, 1e-6)
}

func TestAdvanceUpdatesBeatAndPhase(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	start := c.Micros()

	c.Advance(start + 1_000_000) // 1s @ 120bpm = 2 beats
	assert.InDelta(t, 2.0, c.Beat(), 1e-9)
	assert.InDelta(t, 2.0, c.State().Phase, 1e-9)

	c.Advance(start + 1_000_000 + 6_000_000) // + 12 beats -> phase wraps mod 4
	assert.InDelta(t, 14.0, c.Beat(), 1e-9)
	assert.InDelta(t, 2.0, c.State().Phase, 1e-9)
}

func TestNextPhaseResetDate(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	start := c.Micros()
	c.Advance(start + 500_000) // 1 beat, phase=1, quantum=4

	next := c.NextPhaseResetDate()
	// 3 beats remain to phase reset @ 120bpm = 1.5s
	assert.Equal(t, start+500_000+1_500_000, next)
}

func TestLoopbackPeerGroupDegradesGracefully(t *testing.T) {
	peers := NewLoopbackPeerGroup(State{Tempo: 100, Quantum: 4})
	c := New(peers)
	c.Capture()
	assert.Equal(t, 100.0, c.Tempo())

	c.SetTempo(140)
	c.Capture()
	assert.Equal(t, 140.0, c.Tempo())
}

func TestSpanArithmeticPicksMostSpecificUnit(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	frameLength := 0.25 // beats per frame

	a := Micros(500_000)
	b := Beats(1)
	sum := a.Add(b, c, frameLength)
	assert.Equal(t, UnitBeats, sum.Kind())
	assert.InDelta(t, a.AsBeats(c, frameLength)+1, sum.AsBeats(c, frameLength), 1e-9)

	f := Frames(2)
	sum2 := b.Add(f, c, frameLength)
	assert.Equal(t, UnitFrames, sum2.Kind())
}

func TestSpanAdditivity(t *testing.T) {
	c := New(nil)
	c.SetTempo(95)
	frameLength := 0.5

	a := Beats(3)
	b := Micros(250_000)
	sum := a.Add(b, c, frameLength)
	assert.InDelta(t, a.AsMicros(c, frameLength)+b.AsMicros(c, frameLength), float64(sum.AsMicros(c, frameLength)), 1)
}

func TestSpanDivisionBySafeFrameLength(t *testing.T) {
	c := New(nil)
	c.SetTempo(120)
	s := Beats(4)
	assert.Equal(t, 0.0, s.AsFrames(c, 0))
}
