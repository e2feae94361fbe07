package dsp

// Send scales a copy of a track's output into a shared send bus, which is
// processed 100% wet and summed back into the master — the same
// send-level architecture as a mixing console aux bus.
type Send struct {
	Bus   *SendBus
	Level float64
}

// SendBus is a pre-allocated buffer shared by every track that sends into
// it, plus an optional wet effect applied once per block before it's
// summed into the master.
type SendBus struct {
	buffer *Buffer
	Effect SendEffect
}

// SendEffect processes a send bus's accumulated block in place. nil means
// the bus is a pure summing bus with no processing of its own.
type SendEffect interface {
	Process(buf *Buffer)
}

// NewSendBus leases its buffer from pool once, at setup time — it holds
// the buffer for the engine's lifetime rather than returning it, the same
// way a fixed track buffer does.
func NewSendBus(pool *Pool) *SendBus {
	return &SendBus{buffer: pool.lease()}
}

// Track sums its assigned voices into a pre-allocated buffer, feeds scaled
// copies into any active sends, and hands its buffer to the master mix.
type Track struct {
	ID       int
	VoiceIDs []int
	Sends    []Send
	buffer   *Buffer
}

// NewTrack leases a buffer from pool for the track's lifetime.
func NewTrack(id int, pool *Pool) *Track {
	return &Track{ID: id, buffer: pool.lease()}
}

// assign adds voice slot idx to this track's voice list if it isn't
// already there.
func (t *Track) assign(idx int) {
	for _, id := range t.VoiceIDs {
		if id == idx {
			return
		}
	}
	t.VoiceIDs = append(t.VoiceIDs, idx)
}

// ProcessBlock sums every voice assigned to this track, feeds sends, and
// returns this track's own (post-send-tap, pre-master) buffer.
func (t *Track) ProcessBlock(voices map[int]*Voice) *Buffer {
	t.buffer.Clear()
	for _, id := range t.VoiceIDs {
		if v, ok := voices[id]; ok && v.Active() {
			v.ProcessBlock(t.buffer)
		}
	}
	for _, s := range t.Sends {
		if s.Level <= 0 {
			continue
		}
		addScaled(s.Bus.buffer, t.buffer, s.Level)
	}
	return t.buffer
}

func addScaled(dst, src *Buffer, level float64) {
	for i := range dst.L {
		dst.L[i] += src.L[i] * float32(level)
		dst.R[i] += src.R[i] * float32(level)
	}
}
