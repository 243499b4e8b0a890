package capture

import "context"

// Options configures device acquisition and the processing applied to the
// incoming signal.
type Options struct {
	SampleRate       int
	MIMEType         string
	NoiseSuppression bool
	AutoGainControl  bool
	EchoCancellation bool
}

// DefaultOptions returns the acquisition settings used when the caller does
// not override them.
func DefaultOptions() Options {
	return Options{
		SampleRate:       44100,
		MIMEType:         "audio/webm",
		NoiseSuppression: true,
		AutoGainControl:  true,
		EchoCancellation: true,
	}
}

// Device abstracts a microphone-like input. Acquire claims the device,
// ReadChunk blocks until the next buffered chunk is available (returning
// io.EOF when the stream ends, or the context error on cancellation), and
// Release frees the underlying handle. Implementations live at the system
// boundary; tests inject fakes.
type Device interface {
	Acquire(ctx context.Context, opts Options) error
	ReadChunk(ctx context.Context) ([]byte, error)
	Release() error
}
