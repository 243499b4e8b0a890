package audio

import (
	"math"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// SeparatorKind selects what a synthesized separator sounds like.
type SeparatorKind string

const (
	SeparatorSilence SeparatorKind = "silence"
	SeparatorTone    SeparatorKind = "tone"
)

// Synthesis defaults. Tone amplitude is kept well below full scale so a
// separator never dominates the adjacent answers.
const (
	DefaultSampleRate    = 44100
	DefaultToneFrequency = 800.0
	toneAmplitude        = 0.3
)

// Synthesize generates a separator segment of the requested kind and
// duration as PCM-16 mono WAV. Silence produces zeroed samples; tone
// produces an unfiltered sine wave at the given frequency. The function is
// deterministic and side-effect-free.
func Synthesize(kind SeparatorKind, durationSeconds float64, sampleRate int, frequency float64) (*Segment, error) {
	if durationSeconds <= 0 {
		return nil, scoreerr.Newf(scoreerr.CodeInvalidParameter, false,
			"separator duration must be positive, got %f", durationSeconds)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frequency <= 0 {
		frequency = DefaultToneFrequency
	}

	numSamples := int(durationSeconds * float64(sampleRate))
	if numSamples <= 0 {
		return nil, scoreerr.Newf(scoreerr.CodeInvalidParameter, false,
			"separator duration %f too short for sample rate %d", durationSeconds, sampleRate)
	}

	samples := make([]int16, numSamples)
	switch kind {
	case SeparatorSilence:
		// Zero-valued by allocation.
	case SeparatorTone:
		scale := toneAmplitude * float64(math.MaxInt16)
		step := 2 * math.Pi * frequency / float64(sampleRate)
		for i := range samples {
			samples[i] = int16(scale * math.Sin(step*float64(i)))
		}
	default:
		return nil, scoreerr.Newf(scoreerr.CodeInvalidParameter, false,
			"unknown separator kind %q", kind)
	}

	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeInvalidParameter,
			"failed to encode separator", false, err)
	}

	seg := NewSegment(-1, "audio/wav", data)
	return seg, nil
}
