package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackAssignDeduplicates(t *testing.T) {
	pool := NewPool(4, 128)
	tr := NewTrack(0, pool)
	tr.assign(1)
	tr.assign(1)
	tr.assign(2)
	assert.Equal(t, []int{1, 2}, tr.VoiceIDs)
}

func TestTrackProcessBlockSumsActiveVoicesOnly(t *testing.T) {
	pool := NewPool(4, 128)
	tr := NewTrack(0, pool)
	tr.assign(0)
	tr.assign(1)

	v0 := NewVoice(48_000, 128)
	v0.Allocate(&constSource{amp: 1, length: 100_000}, 0, 1, 0)
	v0.Trigger(0)

	v1 := NewVoice(48_000, 128) // left inactive

	voices := map[int]*Voice{0: v0, 1: v1}
	buf := tr.ProcessBlock(voices)
	require.NotNil(t, buf)

	nonZero := false
	for _, s := range buf.L {
		if s != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestTrackSendScalesIntoBus(t *testing.T) {
	pool := NewPool(8, 128)
	bus := NewSendBus(pool)
	tr := NewTrack(0, pool)
	tr.Sends = []Send{{Bus: bus, Level: 0.5}}
	tr.assign(0)

	v0 := NewVoice(48_000, 128)
	v0.Allocate(&constSource{amp: 1, length: 100_000}, 0, 1, 0)
	v0.Trigger(0)

	tr.ProcessBlock(map[int]*Voice{0: v0})

	nonZero := false
	for _, s := range bus.buffer.L {
		if s != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}
