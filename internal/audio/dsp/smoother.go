package dsp

// Smoother is a one-pole smoother applied to every user-visible continuous
// parameter (amp, pan, per-effect controls). It is not optional: an
// unsmoothed parameter jump produces zipper noise on the next block.
type Smoother struct {
	current float64
	target  float64
	rate    float64
}

// DefaultSmoothRate is the block-rate one-pole coefficient used when a
// caller doesn't need a faster or slower approach curve.
const DefaultSmoothRate = 0.1

// NewSmoother creates a Smoother already settled at initial with rate
// (fraction of the remaining distance closed per block; 0 < rate <= 1).
func NewSmoother(initial, rate float64) *Smoother {
	if rate <= 0 || rate > 1 {
		rate = DefaultSmoothRate
	}
	return &Smoother{current: initial, target: initial, rate: rate}
}

// SetTarget retargets the smoother; it does not jump — the next Next call
// begins closing the gap at rate.
func (s *Smoother) SetTarget(v float64) { s.target = v }

// Next advances the smoother by one block and returns the new value.
func (s *Smoother) Next() float64 {
	s.current += (s.target - s.current) * s.rate
	return s.current
}

func (s *Smoother) Current() float64 { return s.current }

// SnapTo immediately sets both current and target, bypassing the ramp —
// used only at voice allocation, before the crossfade-in takes over.
func (s *Smoother) SnapTo(v float64) {
	s.current = v
	s.target = v
}
