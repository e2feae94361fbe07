package dsp

import "math"

// Compressor is the chain-level peak tracker + compressor that follows
// every voice's effects chain: threshold 0.8, ratio 4:1, attack 10ms,
// release 100ms, fixed per spec — not a user-exposed parameter.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	attackCoef  float64
	releaseCoef float64
	envelopeDB  float64
}

const (
	compressorThresholdLinear = 0.8
	compressorRatio           = 4.0
	compressorAttackMs        = 10.0
	compressorReleaseMs       = 100.0
)

// NewCompressor builds a Compressor whose attack/release time constants
// are derived from sampleRate and blockSize, since the envelope follower
// updates once per block rather than once per sample.
func NewCompressor(sampleRate float64, blockSize int) *Compressor {
	blocksPerSecond := sampleRate / float64(blockSize)
	return &Compressor{
		thresholdDB: linearToDB(compressorThresholdLinear),
		ratio:       compressorRatio,
		attackCoef:  timeConstantCoef(compressorAttackMs, blocksPerSecond),
		releaseCoef: timeConstantCoef(compressorReleaseMs, blocksPerSecond),
		envelopeDB:  -120,
	}
}

// timeConstantCoef returns the one-pole coefficient that reaches ~63% of
// a step change in ms milliseconds, sampled once per block.
func timeConstantCoef(ms float64, blocksPerSecond float64) float64 {
	if ms <= 0 || blocksPerSecond <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/((ms/1000)*blocksPerSecond))
}

// UpdateEnvelope feeds one block's peak absolute sample value through the
// attack/release envelope follower. It's called once at the end of a
// block, after Gain was already used to process that same block — so the
// compressor's reaction to a transient lags it by one block, which is the
// price of evaluating gain at block rate rather than per sample.
func (c *Compressor) UpdateEnvelope(peak float64) {
	peakDB := linearToDB(peak)
	coef := c.releaseCoef
	if peakDB > c.envelopeDB {
		coef = c.attackCoef
	}
	c.envelopeDB += (peakDB - c.envelopeDB) * coef
}

// Gain returns the linear gain reduction the current envelope calls for;
// read once per block, before the block's samples are rendered.
func (c *Compressor) Gain() float64 {
	if c.envelopeDB <= c.thresholdDB {
		return 1.0
	}
	overDB := c.envelopeDB - c.thresholdDB
	gainReductionDB := overDB - overDB/c.ratio
	return dbToLinear(-gainReductionDB)
}

func linearToDB(x float64) float64 {
	if x <= 0 {
		return -120
	}
	return 20 * math.Log10(x)
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
