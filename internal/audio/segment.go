package audio

import (
	"time"

	"github.com/google/uuid"
)

// Assumed bit rates (bits per second) per container, used to estimate a
// segment's duration from its byte size. These are estimates, not
// measurements: the capture layer never decodes the audio it records.
var assumedBitrates = map[string]int{
	"audio/webm": 64000,
	"audio/ogg":  64000,
	"audio/mpeg": 128000,
	"audio/mp4":  128000,
	"audio/wav":  705600, // 44.1 kHz, 16-bit, mono PCM
}

// defaultBitrate is applied when the MIME type is unknown.
const defaultBitrate = 128000

// Segment is one captured answer's audio buffer. It is immutable once
// created; the capture controller owns it until it is handed to the
// assembler or the submission client.
type Segment struct {
	ID         string
	Index      int
	MIMEType   string
	Data       []byte
	CapturedAt time.Time
}

// NewSegment builds a segment around the given buffer. The buffer is not
// copied; the caller must not reuse it.
func NewSegment(index int, mimeType string, data []byte) *Segment {
	return &Segment{
		ID:         uuid.NewString(),
		Index:      index,
		MIMEType:   mimeType,
		Data:       data,
		CapturedAt: time.Now(),
	}
}

// Size returns the byte length of the segment.
func (s *Segment) Size() int {
	return len(s.Data)
}

// EstimatedDuration derives a duration from the segment size and an assumed
// per-format bit rate. The value is an approximation by contract: it is
// computed, never measured from the samples.
func (s *Segment) EstimatedDuration() time.Duration {
	bitrate, ok := assumedBitrates[s.MIMEType]
	if !ok {
		bitrate = defaultBitrate
	}
	seconds := float64(len(s.Data)*8) / float64(bitrate)
	return time.Duration(seconds * float64(time.Second))
}

// FileExtension maps the segment's MIME type to a filename extension for
// multipart uploads.
func (s *Segment) FileExtension() string {
	switch s.MIMEType {
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	case "audio/mp4":
		return "m4a"
	case "audio/wav":
		return "wav"
	default:
		return "bin"
	}
}
