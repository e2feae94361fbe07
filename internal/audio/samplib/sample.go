// Package samplib implements the folder-indexed, format-normalizing
// sample library the audio engine's voices read from: WAV decoding
// across the full PCM/float format matrix, resampling and channel
// down-mixing to the engine's native rate/layout, LRU caching with a
// lock-free fast path, and usage/Markov/numeric-series predictive
// preloading.
package samplib

// Sample is fully-decoded, engine-rate, interleaved stereo PCM. It
// implements dsp.Source directly so a Voice can read from it without an
// adapter.
type Sample struct {
	Name       string
	Path       string
	SampleRate int
	Frames     int
	Data       []float32 // interleaved L, R, L, R, ...

	BPM   float64
	Beats float64
}

// At returns frame's stereo sample, or ok=false past the end — the same
// contract dsp.Source requires of any voice source.
func (s *Sample) At(frame int) (l, r float32, ok bool) {
	if frame < 0 || frame >= s.Frames {
		return 0, 0, false
	}
	i := frame * 2
	return s.Data[i], s.Data[i+1], true
}
