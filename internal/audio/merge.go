package audio

import (
	"time"

	"github.com/google/uuid"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// MergedArtifact is the ordered concatenation of answer segments with a
// synthesized separator between each adjacent pair. Invariant: for N source
// segments there are exactly N-1 separators, never before the first segment
// or after the last.
type MergedArtifact struct {
	ID                string
	Data              []byte
	SegmentCount      int
	SegmentOffsets    []int
	TotalSize         int
	SeparatorKind     SeparatorKind
	SeparatorDuration float64
	CreatedAt         time.Time
}

// EstimatedDuration sums the estimated durations of the source segments plus
// the separators. Like Segment.EstimatedDuration, this is derived, not
// measured.
func (a *MergedArtifact) EstimatedDuration(segments []*Segment) time.Duration {
	var total time.Duration
	for _, s := range segments {
		total += s.EstimatedDuration()
	}
	if a.SegmentCount > 1 {
		sep := time.Duration(a.SeparatorDuration * float64(time.Second))
		total += time.Duration(a.SegmentCount-1) * sep
	}
	return total
}

// Assembler concatenates per-question segments into a single artifact.
// It is stateless apart from its synthesis defaults and safe for concurrent
// use across requests.
type Assembler struct {
	sampleRate int
	frequency  float64
}

// NewAssembler creates an assembler with the given separator synthesis
// parameters. Zero values fall back to the package defaults.
func NewAssembler(sampleRate int, toneFrequency float64) *Assembler {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if toneFrequency <= 0 {
		toneFrequency = DefaultToneFrequency
	}
	return &Assembler{sampleRate: sampleRate, frequency: toneFrequency}
}

// Merge joins segments in input order, inserting a freshly synthesized
// separator strictly between consecutive segments. Input segments are never
// mutated; their buffers are copied into the artifact. A single segment is
// returned as-is with SegmentCount 1.
func (m *Assembler) Merge(segments []*Segment, kind SeparatorKind, separatorSeconds float64) (*MergedArtifact, error) {
	if len(segments) == 0 {
		return nil, scoreerr.New(scoreerr.CodeEmptyInput, "no segments to merge", false)
	}

	artifact := &MergedArtifact{
		ID:                uuid.NewString(),
		SegmentCount:      len(segments),
		SeparatorKind:     kind,
		SeparatorDuration: separatorSeconds,
		CreatedAt:         time.Now(),
	}

	if len(segments) == 1 {
		artifact.Data = append([]byte(nil), segments[0].Data...)
		artifact.SegmentOffsets = []int{0}
		artifact.TotalSize = len(artifact.Data)
		return artifact, nil
	}

	separator, err := Synthesize(kind, separatorSeconds, m.sampleRate, m.frequency)
	if err != nil {
		return nil, err
	}

	totalSize := len(separator.Data) * (len(segments) - 1)
	for _, s := range segments {
		totalSize += len(s.Data)
	}

	data := make([]byte, 0, totalSize)
	offsets := make([]int, 0, len(segments))
	for i, s := range segments {
		if i > 0 {
			data = append(data, separator.Data...)
		}
		offsets = append(offsets, len(data))
		data = append(data, s.Data...)
	}

	artifact.Data = data
	artifact.SegmentOffsets = offsets
	artifact.TotalSize = len(data)
	return artifact, nil
}
