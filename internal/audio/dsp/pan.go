package dsp

import "math"

// Pan computes constant-power (equal-power) stereo gains for pan in
// [-1, 1] (-1 hard left, 0 center, +1 hard right): left^2 + right^2 == 1
// at every position, so a centered voice doesn't lose perceived loudness
// relative to a hard-panned one.
func Pan(pan float64) (left, right float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	theta := (pan + 1) * (math.Pi / 4) // 0 at hard left, pi/2 at hard right
	return math.Cos(theta), math.Sin(theta)
}
