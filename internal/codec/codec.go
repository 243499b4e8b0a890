package codec

import (
	"bytes"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// AlgorithmDeflate is the only algorithm this codec produces. Decompression
// rejects anything else so stale payloads fail loudly instead of returning
// garbage.
const AlgorithmDeflate = "deflate"

const (
	MinLevel     = 1
	MaxLevel     = 9
	DefaultLevel = 6
)

// Payload wraps a buffer with the metadata needed to reverse the transform.
// When Compressed is false the data is the original bytes; FallbackErr
// carries the compressor failure that forced the fallback, if any, so
// callers can observe degradation instead of relying on logs.
type Payload struct {
	Data           []byte
	Compressed     bool
	Algorithm      string
	Level          int
	OriginalSize   int
	CompressedSize int
	FallbackErr    error
}

// Metadata is the sidecar record persisted alongside stored audio; it is
// required to decompress the artifact later.
type Metadata struct {
	Algorithm      string    `json:"algorithm"`
	Level          int       `json:"level"`
	OriginalSize   int       `json:"originalSize"`
	CompressedSize int       `json:"compressedSize"`
	Ratio          float64   `json:"ratio"`
	Timestamp      time.Time `json:"timestamp"`
}

// Metadata builds the persistable record for this payload.
func (p *Payload) Metadata() Metadata {
	ratio := 1.0
	if p.OriginalSize > 0 {
		ratio = float64(p.CompressedSize) / float64(p.OriginalSize)
	}
	return Metadata{
		Algorithm:      p.Algorithm,
		Level:          p.Level,
		OriginalSize:   p.OriginalSize,
		CompressedSize: p.CompressedSize,
		Ratio:          ratio,
		Timestamp:      time.Now(),
	}
}

// Config controls the codec.
type Config struct {
	Enabled bool
	Level   int
}

// Codec compresses and decompresses audio buffers. It holds no per-request
// state and is safe for concurrent use.
type Codec struct {
	enabled bool
	level   int
	logger  *slog.Logger
}

// New creates a codec. Levels outside [1,9] fall back to the default.
func New(cfg Config, logger *slog.Logger) *Codec {
	level := cfg.Level
	if level < MinLevel || level > MaxLevel {
		level = DefaultLevel
	}
	return &Codec{enabled: cfg.Enabled, level: level, logger: logger}
}

// Level returns the configured compression level.
func (c *Codec) Level() int {
	return c.level
}

// Compress applies the reversible transform to data. When compression is
// disabled, fails internally, or would grow the buffer, the original bytes
// are returned tagged Compressed=false; the caller never sees an error.
func (c *Codec) Compress(data []byte) *Payload {
	p := &Payload{
		Data:           data,
		Compressed:     false,
		Algorithm:      AlgorithmDeflate,
		Level:          c.level,
		OriginalSize:   len(data),
		CompressedSize: len(data),
	}

	if !c.enabled || len(data) == 0 {
		return p
	}

	compressed, err := c.deflate(data)
	if err != nil {
		c.logger.Warn("Compression failed, storing uncompressed",
			slog.Int("size_bytes", len(data)),
			slog.String("error", err.Error()),
		)
		p.FallbackErr = err
		return p
	}

	if len(compressed) >= len(data) {
		// Incompressible input; keep the original to hold the
		// compressedSize <= originalSize invariant.
		return p
	}

	p.Data = compressed
	p.Compressed = true
	p.CompressedSize = len(compressed)
	return p
}

func (c *Codec) deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Uncompressed payloads are returned
// unchanged; corrupt data or missing metadata fails with
// DECOMPRESSION_FAILED.
func (c *Codec) Decompress(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, scoreerr.New(scoreerr.CodeDecompressionFailed,
			"missing payload", false)
	}
	if !p.Compressed {
		return p.Data, nil
	}
	if p.Algorithm != AlgorithmDeflate {
		return nil, scoreerr.Newf(scoreerr.CodeDecompressionFailed, false,
			"unsupported algorithm %q", p.Algorithm)
	}

	r := flate.NewReader(bytes.NewReader(p.Data))
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeDecompressionFailed,
			"corrupt compressed data", false, err)
	}
	if len(data) != p.OriginalSize {
		return nil, scoreerr.Newf(scoreerr.CodeDecompressionFailed, false,
			"decompressed size %d does not match recorded original size %d",
			len(data), p.OriginalSize)
	}
	return data, nil
}

// DecompressStored rebuilds bytes from a stored buffer plus its persisted
// sidecar metadata.
func (c *Codec) DecompressStored(data []byte, meta Metadata) ([]byte, error) {
	compressed := meta.CompressedSize < meta.OriginalSize
	return c.Decompress(&Payload{
		Data:           data,
		Compressed:     compressed,
		Algorithm:      meta.Algorithm,
		Level:          meta.Level,
		OriginalSize:   meta.OriginalSize,
		CompressedSize: meta.CompressedSize,
	})
}
