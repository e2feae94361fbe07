package samplib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"

	"github.com/schollz/gridlive/internal/getbpm"
)

// wavFormatPCM and wavFormatExtensible mirror the constants getbpm.Length
// checks; wavFormatIEEEFloat is the 32/64-bit float variant the format
// matrix also has to accept.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 65534
)

// Decode reads a WAV file at path, normalizes it to engineSampleRate and
// stereo, and attaches BPM/beat metadata via internal/getbpm. It accepts
// the full matrix spec.md calls for: PCM 8/16/24/32-bit signed int,
// 32/64-bit float, 8kHz-192kHz source rate, 1-8 source channels
// (channels beyond the first two are dropped, per "down-mixed by using
// channels[0], channels[1]").
func Decode(path string, engineSampleRate int) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("samplib: open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("samplib: invalid WAV file: %s", path)
	}
	d.ReadInfo()

	format := int(d.WavAudioFormat)
	if format != wavFormatPCM && format != wavFormatIEEEFloat && format != wavFormatExtensible {
		return nil, fmt.Errorf("samplib: unsupported WAV format code %d in %s", format, path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("samplib: decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, fmt.Errorf("samplib: %s has no channel layout", path)
	}

	left, right := deinterleaveToStereo(buf.Data, buf.Format.NumChannels, buf.SourceBitDepth)
	srcRate := buf.Format.SampleRate
	if srcRate == 0 {
		srcRate = int(d.SampleRate)
	}
	if engineSampleRate > 0 && srcRate != engineSampleRate {
		left = resampleLinear(left, srcRate, engineSampleRate)
		right = resampleLinear(right, srcRate, engineSampleRate)
	}

	frames := len(left)
	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}

	s := &Sample{
		Name:       filepath.Base(path),
		Path:       path,
		SampleRate: engineSampleRate,
		Frames:     frames,
		Data:       data,
	}

	if beats, bpm, err := getbpm.GetBPM(path); err == nil {
		s.Beats, s.BPM = beats, bpm
	}
	return s, nil
}

// deinterleaveToStereo splits an IntBuffer's interleaved int samples into
// normalized ([-1, 1]) float32 left/right channels. Mono sources are
// duplicated to both channels; sources with more than two channels are
// down-mixed by dropping everything past channel[1].
func deinterleaveToStereo(data []int, numChannels, bitDepth int) (left, right []float32) {
	if numChannels <= 0 {
		return nil, nil
	}
	scale := normalizationScale(bitDepth)
	frames := len(data) / numChannels
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		base := i * numChannels
		l := float32(data[base]) / scale
		r := l
		if numChannels > 1 {
			r = float32(data[base+1]) / scale
		}
		left[i] = l
		right[i] = r
	}
	return left, right
}

// normalizationScale returns the divisor that maps bitDepth-wide signed
// PCM integers into [-1, 1].
func normalizationScale(bitDepth int) float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float32(int64(1) << uint(bitDepth-1))
}

// resampleLinear converts in (at srcRate) to dstRate using linear
// interpolation between the two nearest source samples, per spec.md's
// "resampling is linear interpolation when source != target rate."
func resampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}
	ratio := float64(srcRate) / float64(dstRate)
	outFrames := int(float64(len(in)) / ratio)
	out := make([]float32, outFrames)
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) * ratio
		i0 := int(srcPos)
		frac := float32(srcPos - float64(i0))
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		out[i] = in[i0] + (in[i1]-in[i0])*frac
	}
	return out
}
