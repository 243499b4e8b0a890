package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// State represents the controller's position in the capture state machine.
type State int

const (
	StateIdle State = iota
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	default:
		return "idle"
	}
}

// Controller serializes start/stop calls against a single input device.
// At most one capture is active at a time: starting while capturing first
// performs an implicit stop-and-discard of the prior capture.
type Controller struct {
	device Device
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	opts      Options
	nextIndex int

	// Per-capture drain state, valid while state == StateCapturing.
	cancel  context.CancelFunc
	done    chan struct{}
	chunks  [][]byte
	readErr error
}

// NewController creates a controller around the given device.
func NewController(device Device, logger *slog.Logger) *Controller {
	return &Controller{
		device: device,
		logger: logger,
		state:  StateIdle,
	}
}

// Start acquires the device and begins buffering chunks for a new answer.
// Fails with DEVICE_UNAVAILABLE if acquisition is denied or absent. If a
// capture is already active it is stopped and its audio discarded first.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCapturing {
		c.logger.Warn("Start called while capturing, discarding active capture")
		c.finishLocked()
	}

	if err := c.device.Acquire(ctx, opts); err != nil {
		// Force cleanup regardless of how far acquisition got.
		_ = c.device.Release()
		return scoreerr.Wrap(scoreerr.CodeDeviceUnavailable,
			"failed to acquire input device", false, err)
	}

	drainCtx, cancel := context.WithCancel(context.Background())
	c.opts = opts
	c.cancel = cancel
	c.done = make(chan struct{})
	c.chunks = nil
	c.readErr = nil
	c.state = StateCapturing

	go c.drain(drainCtx)

	c.logger.Debug("Capture started",
		slog.Int("sample_rate", opts.SampleRate),
		slog.String("mime_type", opts.MIMEType),
	)
	return nil
}

// drain pulls chunks off the device until the capture is stopped or the
// device stream ends. It owns c.chunks and c.readErr until c.done closes.
func (c *Controller) drain(ctx context.Context) {
	defer close(c.done)

	for {
		chunk, err := c.device.ReadChunk(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				c.readErr = err
			}
			return
		}
		if len(chunk) > 0 {
			c.chunks = append(c.chunks, chunk)
		}
	}
}

// Stop finalizes the active capture into a single segment, releasing the
// device. Fails with NO_ACTIVE_CAPTURE if nothing is being captured.
func (c *Controller) Stop() (*audio.Segment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCapturing {
		return nil, scoreerr.New(scoreerr.CodeNoActiveCapture,
			"stop called without an active capture", false)
	}

	chunks, readErr := c.finishLocked()
	if readErr != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeDeviceUnavailable,
			"input device failed during capture", false, readErr)
	}

	var size int
	for _, chunk := range chunks {
		size += len(chunk)
	}
	data := make([]byte, 0, size)
	for _, chunk := range chunks {
		data = append(data, chunk...)
	}

	seg := audio.NewSegment(c.nextIndex, c.opts.MIMEType, data)
	c.nextIndex++

	c.logger.Debug("Capture finalized",
		slog.Int("index", seg.Index),
		slog.Int("size_bytes", seg.Size()),
	)
	return seg, nil
}

// finishLocked tears down the active capture: stops the drain goroutine,
// waits for it, and releases the device. The device release happens on
// every path. Caller must hold c.mu.
func (c *Controller) finishLocked() ([][]byte, error) {
	c.cancel()
	<-c.done

	if err := c.device.Release(); err != nil {
		c.logger.Warn("Device release failed", slog.String("error", err.Error()))
	}

	chunks, readErr := c.chunks, c.readErr
	c.chunks = nil
	c.readErr = nil
	c.state = StateIdle
	return chunks, readErr
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Capturing reports whether a capture is in progress.
func (c *Controller) Capturing() bool {
	return c.State() == StateCapturing
}
