// Package dsp implements the real-time voice/track/effect graph: the
// high-precision sample timer, voice lifecycle, parameter smoothing, the
// per-stage soft limiter and chain compressor, constant-power panning,
// and track summing with sends. Rendering voices and summing tracks does
// not allocate; Engine documents the cases in which ProcessBlock does.
package dsp

// Timer converts between sample counts and microseconds using two exact
// integer ratios instead of a floating-point division, so that
// SamplesToMicros(N*sampleRate) == N*1_000_000 exactly for every N — no
// cumulative drift across an arbitrarily long session.
type Timer struct {
	sampleRate     int64
	microsPerSec   int64
	currentSamples uint64
	baseMicros     int64
}

const microsPerSecond = 1_000_000

// resetThreshold mirrors the "reset when current_samples * 2_000_000 >
// u64::MAX" condition, translated to Go's uint64 range.
const resetThreshold = ^uint64(0) / 2_000_000

// NewTimer creates a Timer at sampleRate (Hz), with its deterministic time
// base starting at baseMicros (0 for "session start").
func NewTimer(sampleRate int64, baseMicros int64) *Timer {
	return &Timer{sampleRate: sampleRate, microsPerSec: microsPerSecond, baseMicros: baseMicros}
}

func (t *Timer) SampleRate() int64 { return t.sampleRate }

// Advance moves the timer forward by n samples (one audio block).
func (t *Timer) Advance(n uint64) {
	t.currentSamples += n
	if t.currentSamples > resetThreshold {
		t.rebase()
	}
}

// rebase folds the accumulated sample count back into the microsecond
// base and resets the sample counter to zero, without changing the
// timeline a caller observes through NowMicros.
func (t *Timer) rebase() {
	t.baseMicros += t.samplesToMicros(t.currentSamples)
	t.currentSamples = 0
}

// NowMicros returns the current position on the deterministic time base.
func (t *Timer) NowMicros() int64 {
	return t.baseMicros + t.samplesToMicros(t.currentSamples)
}

// CurrentSamples returns the number of samples advanced since the base
// (or since the last internal rebase — callers should use NowMicros for
// anything that must survive a rebase).
func (t *Timer) CurrentSamples() uint64 { return t.currentSamples }

// samplesToMicros applies micros_per_sample = 1_000_000 / sample_rate as
// exact integer arithmetic: floor(samples * 1_000_000 / sample_rate),
// split into whole seconds and a remainder so the product never overflows
// uint64 and the N*sampleRate case comes out as exactly N*1_000_000.
func (t *Timer) samplesToMicros(samples uint64) int64 {
	if t.sampleRate == 0 {
		return 0
	}
	sr := uint64(t.sampleRate)
	whole, rem := samples/sr, samples%sr
	return int64(whole*uint64(t.microsPerSec) + rem*uint64(t.microsPerSec)/sr)
}

// MicrosToSamples applies samples_per_micros = sample_rate / 1_000_000 as
// exact integer arithmetic, the inverse of samplesToMicros.
func (t *Timer) MicrosToSamples(micros int64) uint64 {
	if micros <= 0 || t.sampleRate == 0 {
		return 0
	}
	return (uint64(micros) * uint64(t.sampleRate)) / uint64(t.microsPerSec)
}

// SampleOffsetInBlock converts dueMicros to a sample offset within the
// block currently starting at NowMicros and spanning blockSize samples.
// Past-due events (dueMicros <= now) map to sample 0; events due beyond
// the block map to blockSize (i.e. "not in this block").
func (t *Timer) SampleOffsetInBlock(dueMicros int64, blockSize int) int {
	now := t.NowMicros()
	if dueMicros <= now {
		return 0
	}
	offset := t.MicrosToSamples(dueMicros - now)
	if offset > uint64(blockSize) {
		return blockSize
	}
	return int(offset)
}

// Classify reports whether dueMicros falls within the block currently
// starting at NowMicros and spanning blockSize samples. When it does,
// offset is the sample within the block to act at; when it doesn't
// (scheduled for a later block), deferred is true and offset is
// meaningless.
func (t *Timer) Classify(dueMicros int64, blockSize int) (offset int, deferred bool) {
	now := t.NowMicros()
	if dueMicros <= now {
		return 0, false
	}
	raw := t.MicrosToSamples(dueMicros - now)
	if raw >= uint64(blockSize) {
		return 0, true
	}
	return int(raw), false
}
