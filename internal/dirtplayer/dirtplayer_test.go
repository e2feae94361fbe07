package dirtplayer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/audio/dsp"
	"github.com/schollz/gridlive/internal/audio/samplib"
	"github.com/schollz/gridlive/internal/vm"
)

// writeTestWAV writes a minimal, valid 16-bit PCM mono WAV file, just
// enough for samplib.NewLibrary/Get to decode — the same bare-bones
// fixture shape samplib's own tests build.
func writeTestWAV(t *testing.T, path string, sampleRate, frames int) {
	t.Helper()
	const channels, bitDepth = 1, 16
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
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	require.NoError(t, os.WriteFile(path, buf, 0644))
}

func newTestLibrary(t *testing.T) (*samplib.Library, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kick.wav")
	writeTestWAV(t, path, 48_000, 4800)
	lib, err := samplib.NewLibrary(dir, 48_000, 16, 1)
	require.NoError(t, err)
	return lib, path
}

func resolvedDirt(address string, keys []string, args []vm.Value, due int64) vm.Resolved {
	return vm.Resolved{Kind: vm.EventDirt, Address: address, Keys: keys, Args: args, DueMicros: due}
}

func TestDispatchPlayResolvesSampleFromLibrary(t *testing.T) {
	lib, path := newTestLibrary(t)
	s := NewSink(lib)

	s.Dispatch(resolvedDirt("/play", []string{"s", "voice", "track"},
		[]vm.Value{vm.String(path), vm.String("k1"), vm.Integer(2)}, 1000))

	msgs := s.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, dsp.MsgPlay, msgs[0].Kind)
	assert.Equal(t, "k1", msgs[0].VoiceID)
	assert.Equal(t, 2, msgs[0].Track)
	assert.NotNil(t, msgs[0].Source)
	assert.Equal(t, int64(1000), msgs[0].DueMicros)
}

func TestDispatchPlayDefaultsToAutoAssignVoice(t *testing.T) {
	lib, path := newTestLibrary(t)
	s := NewSink(lib)

	s.Dispatch(resolvedDirt("/play", []string{"s"}, []vm.Value{vm.String(path)}, 0))

	msgs := s.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, dsp.AutoAssignVoice, msgs[0].VoiceID)
}

func TestDispatchPlayMissingSampleKeyIsDropped(t *testing.T) {
	lib, _ := newTestLibrary(t)
	s := NewSink(lib)

	s.Dispatch(resolvedDirt("/play", []string{"voice"}, []vm.Value{vm.String("k1")}, 0))
	assert.Empty(t, s.Drain())
}

func TestDispatchStopAndPanicDoNotRequireSampleResolution(t *testing.T) {
	s := NewSink(nil)

	s.Dispatch(resolvedDirt("/stop", []string{"voice"}, []vm.Value{vm.String("k1")}, 0))
	s.Dispatch(resolvedDirt("/panic", nil, nil, 0))

	msgs := s.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, dsp.MsgStop, msgs[0].Kind)
	assert.Equal(t, dsp.MsgPanic, msgs[1].Kind)
}

func TestDispatchPlayWithDurAndExplicitVoiceSchedulesFollowUpStop(t *testing.T) {
	lib, path := newTestLibrary(t)
	s := NewSink(lib)

	s.Dispatch(resolvedDirt("/play", []string{"s", "voice", "dur"},
		[]vm.Value{vm.String(path), vm.String("k1"), vm.Float(0.5)}, 1_000_000))

	msgs := s.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, dsp.MsgPlay, msgs[0].Kind)
	assert.Equal(t, dsp.MsgStop, msgs[1].Kind)
	assert.Equal(t, "k1", msgs[1].VoiceID)
	assert.Equal(t, int64(1_500_000), msgs[1].DueMicros)
}

func TestDispatchPlayWithDurAndAutoAssignVoiceDoesNotScheduleStop(t *testing.T) {
	lib, path := newTestLibrary(t)
	s := NewSink(lib)

	s.Dispatch(resolvedDirt("/play", []string{"s", "dur"},
		[]vm.Value{vm.String(path), vm.Float(0.5)}, 0))

	msgs := s.Drain()
	require.Len(t, msgs, 1)
}

func TestDispatchIgnoresNonDirtKinds(t *testing.T) {
	s := NewSink(nil)
	s.Dispatch(vm.Resolved{Kind: vm.EventMIDINoteOn})
	assert.Empty(t, s.Drain())
}

func TestDrainClearsPendingQueue(t *testing.T) {
	s := NewSink(nil)
	s.Dispatch(resolvedDirt("/panic", nil, nil, 0))
	require.Len(t, s.Drain(), 1)
	assert.Empty(t, s.Drain())
}
