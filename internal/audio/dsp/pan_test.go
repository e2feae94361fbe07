package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanIsConstantPower(t *testing.T) {
	for _, p := range []float64{-1, -0.5, 0, 0.3, 1} {
		l, r := Pan(p)
		assert.InDelta(t, 1.0, l*l+r*r, 1e-9, "pan=%v", p)
	}
}

func TestPanHardLeftAndRight(t *testing.T) {
	l, r := Pan(-1)
	assert.InDelta(t, 1.0, l, 1e-9)
	assert.InDelta(t, 0.0, r, 1e-9)

	l, r = Pan(1)
	assert.InDelta(t, 0.0, l, 1e-9)
	assert.InDelta(t, 1.0, r, 1e-9)
}

func TestPanCenterIsEqualAndAttenuated(t *testing.T) {
	l, r := Pan(0)
	assert.InDelta(t, l, r, 1e-9)
	assert.Less(t, l, 1.0)
}

func TestPanClampsOutOfRange(t *testing.T) {
	l1, r1 := Pan(-5)
	l2, r2 := Pan(-1)
	assert.InDelta(t, l1, l2, 1e-9)
	assert.InDelta(t, r1, r2, 1e-9)
}
