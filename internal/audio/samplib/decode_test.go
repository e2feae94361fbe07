package samplib

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV synthesizes a minimal canonical PCM WAV file: a 44-byte
// RIFF/fmt/data header followed by frames*channels signed samples at
// bitDepth, each channel holding a distinct constant value so tests can
// assert on per-channel down-mix behavior.
func writeTestWAV(t *testing.T, path string, sampleRate, channels, bitDepth, frames int) {
	t.Helper()
	bytesPerSample := bitDepth / 8
	dataSize := frames * channels * bytesPerSample
	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	max := int64(1) << uint(bitDepth-1)
	off := 44
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			// channel 0 at quarter scale positive, channel 1 (if any) at
			// half scale negative, so down-mix and deinterleave are each
			// independently checkable.
			var v int64
			switch c {
			case 0:
				v = max / 4
			case 1:
				v = -max / 2
			default:
				v = 0
			}
			switch bytesPerSample {
			case 1:
				buf[off] = byte(v + 128) // 8-bit WAV PCM is unsigned
			case 2:
				binary.LittleEndian.PutUint16(buf[off:off+2], uint16(int16(v)))
			case 3:
				b := make([]byte, 4)
				binary.LittleEndian.PutUint32(b, uint32(int32(v)))
				copy(buf[off:off+3], b[:3])
			case 4:
				binary.LittleEndian.PutUint32(buf[off:off+4], uint32(int32(v)))
			}
			off += bytesPerSample
		}
	}

	require.NoError(t, os.WriteFile(path, buf, 0644))
}

func TestDecodeStereo16BitAtEngineRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kick_001.wav")
	writeTestWAV(t, path, 48_000, 2, 16, 100)

	s, err := Decode(path, 48_000)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Frames)
	assert.Equal(t, 48_000, s.SampleRate)
	l, r, ok := s.At(0)
	require.True(t, ok)
	assert.InDelta(t, 0.25, l, 0.01)
	assert.InDelta(t, -0.5, r, 0.01)
}

func TestDecodeMonoDuplicatesToStereo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, 48_000, 1, 16, 50)

	s, err := Decode(path, 48_000)
	require.NoError(t, err)
	l, r, ok := s.At(10)
	require.True(t, ok)
	assert.Equal(t, l, r)
}

func TestDecodeResamplesToEngineRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slow.wav")
	writeTestWAV(t, path, 24_000, 2, 16, 240)

	s, err := Decode(path, 48_000)
	require.NoError(t, err)
	assert.Equal(t, 48_000, s.SampleRate)
	assert.InDelta(t, 480, s.Frames, 4)
}

func TestDecode8BitAnd24BitNormalizeIntoRange(t *testing.T) {
	dir := t.TempDir()
	for _, bd := range []int{8, 24, 32} {
		path := filepath.Join(dir, "d.wav")
		writeTestWAV(t, path, 48_000, 2, bd, 10)
		s, err := Decode(path, 48_000)
		require.NoError(t, err, "bit depth %d", bd)
		for i := 0; i < s.Frames; i++ {
			l, r, _ := s.At(i)
			assert.LessOrEqual(t, l, float32(1.0))
			assert.GreaterOrEqual(t, l, float32(-1.0))
			assert.LessOrEqual(t, r, float32(1.0))
			assert.GreaterOrEqual(t, r, float32(-1.0))
		}
	}
}

func TestResampleLinearIdentityWhenRatesMatch(t *testing.T) {
	in := []float32{0, 1, 2, 3}
	out := resampleLinear(in, 48_000, 48_000)
	assert.Equal(t, in, out)
}

func TestResampleLinearHalvingRateKeepsFirstFrame(t *testing.T) {
	in := []float32{0, 10}
	out := resampleLinear(in, 2, 1) // halve the rate: one output frame
	require.Len(t, out, 1)
	assert.Equal(t, float32(0), out[0])
}

func TestDeinterleaveMonoDuplicatesChannel(t *testing.T) {
	l, r := deinterleaveToStereo([]int{100, 200, 300}, 1, 16)
	require.Len(t, l, 3)
	assert.Equal(t, l, r)
}

func TestDeinterleaveDropsChannelsBeyondStereo(t *testing.T) {
	// 4-channel source: only channel 0 and 1 should survive.
	data := []int{1, 2, 3, 4}
	l, r := deinterleaveToStereo(data, 4, 16)
	require.Len(t, l, 1)
	assert.InDelta(t, 1.0/32768.0, l[0], 1e-6)
	assert.InDelta(t, 2.0/32768.0, r[0], 1e-6)
}
