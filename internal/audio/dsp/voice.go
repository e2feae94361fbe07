package dsp

// Source is the sample-playback surface a Voice reads from. It decouples
// the voice/track/effect graph from the sample library the same way the
// VM's Environment interface decouples script execution from the
// modulation bank: dsp never imports samplib directly.
type Source interface {
	// At returns the stereo sample at frame (0-based), or ok=false once
	// frame is past the end of the source.
	At(frame int) (l, r float32, ok bool)
}

// State is a Voice's position in its lifecycle.
type State int

const (
	StateInactive State = iota
	StateTriggering
	StateActive
	StateReleasing
	StateResetting
)

// crossfadeMs is the trigger and forced-reuse crossfade length (~5ms per
// spec.md's voice lifecycle).
const crossfadeMs = 5.0

// defaultReleaseMs is used when a voice is released without an explicit
// release time (e.g. its source is exhausted mid-block).
const defaultReleaseMs = 50.0

// Voice is one slot in the engine's bounded voice pool: a source read
// position, its local effects chain (DC blocker + soft limiter +
// compressor), and the envelope/crossfade state machine that governs
// when the slot becomes reusable.
type Voice struct {
	state State
	track int

	source   Source
	framePos int

	amp *Smoother
	pan *Smoother

	dcL, dcR *DCBlocker
	comp     *Compressor

	envelope     float64
	crossfadeLen int // in samples
	crossfadeAt  int // samples elapsed since trigger/reset start
	releaseLen   int
	releaseAt    int

	triggerOffset int // sample offset within the block Trigger was called for
}

// NewVoice creates an inactive voice tuned to sampleRate/blockSize.
func NewVoice(sampleRate float64, blockSize int) *Voice {
	return &Voice{
		amp:          NewSmoother(0, DefaultSmoothRate),
		pan:          NewSmoother(0, DefaultSmoothRate),
		dcL:          NewDCBlocker(),
		dcR:          NewDCBlocker(),
		comp:         NewCompressor(sampleRate, blockSize),
		crossfadeLen: msToSamples(crossfadeMs, sampleRate),
		releaseLen:   msToSamples(defaultReleaseMs, sampleRate),
	}
}

func msToSamples(ms, sampleRate float64) int {
	n := int(ms / 1000 * sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

func (v *Voice) Active() bool { return v.state != StateInactive }

// Allocate assigns a fresh source to this slot. The engine's pool search
// only calls it on a slot that is StateInactive or StateResetting; a
// resetting slot's crossfade-out is cut short.
func (v *Voice) Allocate(source Source, track int, amp, pan float64) {
	v.source = source
	v.track = track
	v.framePos = 0
	v.amp.SnapTo(amp)
	v.pan.SnapTo(pan)
	v.dcL.Reset()
	v.dcR.Reset()
	v.envelope = 0
	v.crossfadeAt = 0
	v.releaseAt = 0
	v.state = StateInactive
}

// Trigger begins the attack crossfade at sampleOffset within the next
// ProcessBlock call.
func (v *Voice) Trigger(sampleOffset int) {
	v.state = StateTriggering
	v.triggerOffset = sampleOffset
	v.crossfadeAt = 0
}

// Release begins the release envelope segment.
func (v *Voice) Release() {
	if v.state == StateInactive {
		return
	}
	v.state = StateReleasing
	v.releaseAt = 0
}

// ResetForReuse starts a crossfade-out distinct from a musical Release.
// State only actually zeros once the crossfade completes. Engine does not
// call it; Engine.allocate only reuses a slot that is already resetting.
func (v *Voice) ResetForReuse() {
	v.state = StateResetting
	v.crossfadeAt = 0
}

// SetTarget updates a smoothed parameter by name; called from enqueued
// Update messages, never by direct field mutation.
func (v *Voice) SetTarget(amp, pan *float64) {
	if amp != nil {
		v.amp.SetTarget(*amp)
	}
	if pan != nil {
		v.pan.SetTarget(*pan)
	}
}

// ProcessBlock renders this voice's contribution into buf, advancing all
// per-sample state (envelope, crossfade, source position) and the
// per-block smoothers exactly once.
func (v *Voice) ProcessBlock(buf *Buffer) {
	if v.state == StateInactive {
		return
	}

	ampGain := v.amp.Next()
	panPos := v.pan.Next()
	panL, panR := Pan(panPos)
	compGain := v.comp.Gain()

	n := len(buf.L)
	peak := 0.0

	for i := 0; i < n; i++ {
		if v.state == StateTriggering && i < v.triggerOffset {
			continue
		}

		l, r, ok := v.source.At(v.framePos)
		if !ok {
			v.autoRelease()
			if v.state == StateInactive {
				break
			}
			l, r = 0, 0
		} else {
			v.framePos++
		}

		l64 := v.dcL.Process(float64(l))
		r64 := v.dcR.Process(float64(r))
		l64 = SoftLimit(l64)
		r64 = SoftLimit(r64)

		env := v.advanceEnvelope()
		if v.state == StateInactive {
			break
		}

		gain := ampGain * env * compGain
		sample := (l64 + r64) / 2 * gain
		if a := abs(sample); a > peak {
			peak = a
		}

		buf.L[i] += float32(l64 * gain * panL)
		buf.R[i] += float32(r64 * gain * panR)
	}

	v.comp.UpdateEnvelope(peak)
	// The trigger offset applies only to the block Trigger was called for.
	v.triggerOffset = 0
}

// advanceEnvelope steps the crossfade-in, sustain, release, or reset-out
// ramp by one sample and returns the current envelope gain. It also
// drives the Triggering -> Active, Releasing -> Inactive, and
// Resetting -> Inactive transitions.
func (v *Voice) advanceEnvelope() float64 {
	switch v.state {
	case StateTriggering:
		v.crossfadeAt++
		v.envelope = float64(v.crossfadeAt) / float64(v.crossfadeLen)
		if v.envelope >= 1 {
			v.envelope = 1
			v.state = StateActive
		}
	case StateActive:
		v.envelope = 1
	case StateReleasing:
		v.releaseAt++
		v.envelope = 1 - float64(v.releaseAt)/float64(v.releaseLen)
		if v.envelope <= 0 {
			v.envelope = 0
			v.state = StateInactive
		}
	case StateResetting:
		v.crossfadeAt++
		v.envelope = 1 - float64(v.crossfadeAt)/float64(v.crossfadeLen)
		if v.envelope <= 0 {
			v.envelope = 0
			v.state = StateInactive
		}
	}
	return v.envelope
}

// autoRelease is invoked when the source runs out of frames mid-block: a
// triggering or active voice whose sample finished starts its release
// rather than cutting off; a voice already releasing or resetting keeps
// its current ramp.
func (v *Voice) autoRelease() {
	if v.state == StateTriggering || v.state == StateActive {
		v.Release()
	} else if v.state != StateReleasing && v.state != StateResetting {
		v.state = StateInactive
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
