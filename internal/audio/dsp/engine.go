package dsp

import "log"

// Engine owns the bounded voice pool, the track graph, and the master
// mix buffer. It is driven one block at a time from the audio thread.
// Rendering voices and tracks in ProcessBlock does not allocate; it does
// allocate when a Play names a track id for the first time (the Track is
// created then), when a new explicit voice id is recorded, and when the
// deferred-message queue outgrows its capacity.
type Engine struct {
	timer     *Timer
	blockSize int

	voices    []*Voice
	voiceByID map[int]*Voice // same *Voice values as voices, indexed by slot, built once
	voiceName map[string]int // explicit voice id -> slot index

	tracks map[int]*Track

	master *Buffer
	pool   *Pool

	pending []Message

	logf func(format string, args ...interface{})
}

// NewEngine builds an Engine with a fixed pool of numVoices voice slots,
// rendering blockSize-sample stereo blocks at sampleRate.
func NewEngine(sampleRate int64, blockSize, numVoices int) *Engine {
	voices := make([]*Voice, numVoices)
	byID := make(map[int]*Voice, numVoices)
	for i := range voices {
		voices[i] = NewVoice(float64(sampleRate), blockSize)
		byID[i] = voices[i]
	}
	return &Engine{
		timer:     NewTimer(sampleRate, 0),
		blockSize: blockSize,
		voices:    voices,
		voiceByID: byID,
		voiceName: map[string]int{},
		tracks:    map[int]*Track{},
		master:    newBuffer(blockSize),
		pool:      NewPool(numVoices+4, blockSize),
		logf:      log.Printf,
	}
}

func (e *Engine) Timer() *Timer { return e.timer }

func (e *Engine) track(id int) *Track {
	tr, ok := e.tracks[id]
	if !ok {
		tr = NewTrack(id, e.pool)
		e.tracks[id] = tr
	}
	return tr
}

// AddSendBus creates a send bus from the engine's buffer pool.
func (e *Engine) AddSendBus() *SendBus { return NewSendBus(e.pool) }

// ProcessBlock applies newMessages (each either acted on within this
// block or deferred to a later one), renders every track, and returns the
// master buffer for this block. The caller owns the returned buffer until
// the next ProcessBlock call.
func (e *Engine) ProcessBlock(newMessages []Message) *Buffer {
	e.master.Clear()

	msgs := append(e.pending, newMessages...)
	e.pending = e.pending[:0]

	for _, m := range msgs {
		offset, deferred := e.timer.Classify(m.DueMicros, e.blockSize)
		if deferred {
			e.pending = append(e.pending, m)
			continue
		}
		e.apply(m, offset)
	}

	for _, tr := range e.tracks {
		buf := tr.ProcessBlock(e.voiceByID)
		e.master.AddFrom(buf)
	}

	e.timer.Advance(uint64(e.blockSize))
	return e.master
}

func (e *Engine) apply(m Message, offset int) {
	switch m.Kind {
	case MsgPlay:
		e.play(m, offset)
	case MsgUpdate:
		if v := e.find(m.VoiceID); v != nil {
			v.SetTarget(m.Amp, m.Pan)
		}
	case MsgStop:
		if v := e.find(m.VoiceID); v != nil {
			v.Release()
		}
	case MsgPanic:
		e.panic()
	}
}

func (e *Engine) play(m Message, offset int) {
	idx := e.allocate()
	if idx < 0 {
		e.logf("dsp: voice pool exhausted, dropping trigger on track %d", m.Track)
		return
	}
	amp, pan := 1.0, 0.0
	if m.Amp != nil {
		amp = *m.Amp
	}
	if m.Pan != nil {
		pan = *m.Pan
	}
	v := e.voices[idx]
	v.Allocate(m.Source, m.Track, amp, pan)
	v.Trigger(offset)

	e.track(m.Track).assign(idx)
	if m.VoiceID != "" && m.VoiceID != AutoAssignVoice {
		if old, ok := e.voiceName[m.VoiceID]; ok && old != idx {
			e.voices[old].Release()
		}
		e.voiceName[m.VoiceID] = idx
	}
}

// allocate finds an inactive slot, stealing the first resetting slot if
// nothing is fully inactive (releasing slots are never stolen) — matching "pick an inactive voice
// slot (bounded pool)" with graceful degradation rather than a hard
// allocation failure.
func (e *Engine) allocate() int {
	for i, v := range e.voices {
		if v.state == StateInactive {
			return i
		}
	}
	for i, v := range e.voices {
		if v.state == StateResetting {
			return i
		}
	}
	return -1
}

func (e *Engine) find(voiceID string) *Voice {
	idx, ok := e.voiceName[voiceID]
	if !ok {
		return nil
	}
	return e.voices[idx]
}

// panic immediately deactivates every voice and clears the master for one
// block, per spec.md's real-time cancellation contract.
func (e *Engine) panic() {
	for _, v := range e.voices {
		v.state = StateInactive
	}
	for _, tr := range e.tracks {
		tr.VoiceIDs = tr.VoiceIDs[:0]
	}
	e.master.Clear()
}
