package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource emits a constant amplitude for length frames, then reports
// exhausted.
type constSource struct {
	amp    float32
	length int
}

func (s *constSource) At(frame int) (l, r float32, ok bool) {
	if frame >= s.length {
		return 0, 0, false
	}
	return s.amp, s.amp, true
}

func TestVoiceTriggerRampsInThenReachesActive(t *testing.T) {
	v := NewVoice(48_000, 128)
	v.Allocate(&constSource{amp: 1, length: 100_000}, 0, 1, 0)
	v.Trigger(0)

	buf := newBuffer(128)
	v.ProcessBlock(buf)
	assert.Equal(t, StateActive, stateAfterManyBlocks(v, buf, 50))
}

func stateAfterManyBlocks(v *Voice, buf *Buffer, n int) State {
	for i := 0; i < n; i++ {
		v.ProcessBlock(buf)
	}
	return v.state
}

func TestVoiceReleaseReachesInactive(t *testing.T) {
	v := NewVoice(48_000, 128)
	v.Allocate(&constSource{amp: 1, length: 1_000_000}, 0, 1, 0)
	v.Trigger(0)
	buf := newBuffer(128)
	for i := 0; i < 10; i++ {
		v.ProcessBlock(buf)
	}
	require.True(t, v.Active())

	v.Release()
	for i := 0; i < 200; i++ {
		v.ProcessBlock(buf)
		if !v.Active() {
			break
		}
	}
	assert.False(t, v.Active())
}

func TestVoiceAutoReleasesOnSourceExhaustion(t *testing.T) {
	v := NewVoice(48_000, 128)
	v.Allocate(&constSource{amp: 1, length: 10}, 0, 1, 0)
	v.Trigger(0)
	buf := newBuffer(128)
	for i := 0; i < 200; i++ {
		v.ProcessBlock(buf)
		if !v.Active() {
			break
		}
	}
	assert.False(t, v.Active())
}

func TestVoiceTriggerOffsetLeavesLeadingSamplesSilent(t *testing.T) {
	v := NewVoice(48_000, 128)
	v.Allocate(&constSource{amp: 1, length: 100_000}, 0, 1, 0)
	v.Trigger(64)
	buf := newBuffer(128)
	v.ProcessBlock(buf)
	assert.Equal(t, float32(0), buf.L[0])
	assert.NotEqual(t, float32(0), buf.L[100])
}

func TestVoiceInactiveProcessBlockIsNoOp(t *testing.T) {
	v := NewVoice(48_000, 128)
	buf := newBuffer(128)
	v.ProcessBlock(buf)
	for _, s := range buf.L {
		assert.Equal(t, float32(0), s)
	}
}
