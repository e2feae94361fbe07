// Package audiooutput bridges dsp.Engine's block-at-a-time float32
// stereo rendering onto the host audio device via oto, the same
// io.Reader-driven streaming model used elsewhere in the example
// corpus for continuous synthesizer output.
package audiooutput

import (
	"encoding/binary"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/schollz/gridlive/internal/audio/dsp"
	"github.com/schollz/gridlive/internal/dirtplayer"
)

const bytesPerSample = 2 // 16-bit signed LE
const channelCount = 2   // stereo

// Output owns the oto context/player and pulls rendered blocks from an
// Engine on demand, matching oto's pull-based io.Reader contract rather
// than the Scheduler/dsp push model used everywhere else in this
// repository.
type Output struct {
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	engine  *dsp.Engine
	drain   *dirtplayer.Sink
	more    func() []dsp.Message // extra engine-bound messages queued off the audio thread
	leftover []byte
}

// New opens an oto context at sampleRate/blockSize and starts streaming
// engine's output to the default audio device. drain, if non-nil, is
// polled once per block for Dirt-triggered dsp.Message values; more, if
// non-nil, supplies any other pending messages (e.g. a test-tone or
// manual trigger queue) for the same block.
func New(engine *dsp.Engine, drain *dirtplayer.Sink, sampleRate, blockSize int, more func() []dsp.Message) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	o := &Output{ctx: ctx, engine: engine, drain: drain, more: more}
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	return o, nil
}

// Read implements io.Reader, oto's pull interface: render one dsp block
// for every full frame buf can hold and fill the rest with the block's
// remaining bytes on the next call.
func (o *Output) Read(buf []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for n < len(buf) {
		if len(o.leftover) == 0 {
			o.leftover = o.renderBlock()
		}
		copied := copy(buf[n:], o.leftover)
		o.leftover = o.leftover[copied:]
		n += copied
	}
	return n, nil
}

func (o *Output) renderBlock() []byte {
	var msgs []dsp.Message
	if o.drain != nil {
		msgs = append(msgs, o.drain.Drain()...)
	}
	if o.more != nil {
		msgs = append(msgs, o.more()...)
	}

	block := o.engine.ProcessBlock(msgs)
	out := make([]byte, len(block.L)*channelCount*bytesPerSample)
	for i := range block.L {
		binary.LittleEndian.PutUint16(out[i*4:], uint16(clampToInt16(block.L[i])))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(clampToInt16(block.R[i])))
	}
	return out
}

func clampToInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int16(sample * 32767)
}

// Close stops playback. oto.Player.Close is a no-op as of oto v3.4 and
// is intentionally not called here.
func (o *Output) Close() {
	o.player.Pause()
}
