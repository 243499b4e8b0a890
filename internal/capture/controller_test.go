package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// fakeDevice plays back scripted chunks, then blocks like a live microphone
// until the read context is cancelled (or returns readErr/io.EOF when
// configured to end the stream).
type fakeDevice struct {
	mu         sync.Mutex
	chunks     [][]byte
	pos        int
	endStream  bool
	acquireErr error
	readErr    error
	acquired   int
	released   int
}

func (d *fakeDevice) Acquire(ctx context.Context, opts Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return d.acquireErr
	}
	d.acquired++
	return nil
}

func (d *fakeDevice) ReadChunk(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	if d.pos < len(d.chunks) {
		chunk := d.chunks[d.pos]
		d.pos++
		d.mu.Unlock()
		return chunk, nil
	}
	readErr := d.readErr
	endStream := d.endStream
	d.mu.Unlock()

	if readErr != nil {
		return nil, readErr
	}
	if endStream {
		return nil, io.EOF
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
	return nil
}

func (d *fakeDevice) releaseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForDrain(t *testing.T, dev *fakeDevice, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		dev.mu.Lock()
		pos := dev.pos
		dev.mu.Unlock()
		if pos >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Timed out waiting for chunks to drain")
}

func TestStartStopProducesSegment(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{[]byte("first"), []byte("second"), []byte("third")}}
	c := NewController(dev, testLogger())

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.Capturing() {
		t.Error("Controller should be capturing after Start")
	}

	waitForDrain(t, dev, 3)

	seg, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !bytes.Equal(seg.Data, []byte("firstsecondthird")) {
		t.Errorf("Expected concatenated chunks, got %q", seg.Data)
	}
	if seg.Index != 0 {
		t.Errorf("Expected index 0, got %d", seg.Index)
	}
	if seg.MIMEType != "audio/webm" {
		t.Errorf("Expected MIME type audio/webm, got %s", seg.MIMEType)
	}
	if c.State() != StateIdle {
		t.Error("Controller should be idle after Stop")
	}
	if dev.releaseCount() != 1 {
		t.Errorf("Expected 1 device release, got %d", dev.releaseCount())
	}
}

func TestSegmentIndexIncrements(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{[]byte("a"), []byte("b")}}
	c := NewController(dev, testLogger())

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForDrain(t, dev, 1)
	first, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	waitForDrain(t, dev, 2)
	second, err := c.Stop()
	if err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	if first.Index != 0 || second.Index != 1 {
		t.Errorf("Expected ordinal indexes 0 and 1, got %d and %d", first.Index, second.Index)
	}
}

func TestStopWithoutStart(t *testing.T) {
	c := NewController(&fakeDevice{}, testLogger())

	_, err := c.Stop()
	if err == nil {
		t.Fatal("Expected error for Stop without Start")
	}
	if !scoreerr.IsCode(err, scoreerr.CodeNoActiveCapture) {
		t.Errorf("Expected NO_ACTIVE_CAPTURE, got %v", err)
	}
}

func TestAcquireDenied(t *testing.T) {
	dev := &fakeDevice{acquireErr: errors.New("permission denied")}
	c := NewController(dev, testLogger())

	err := c.Start(context.Background(), DefaultOptions())
	if err == nil {
		t.Fatal("Expected error when acquisition is denied")
	}
	if !scoreerr.IsCode(err, scoreerr.CodeDeviceUnavailable) {
		t.Errorf("Expected DEVICE_UNAVAILABLE, got %v", err)
	}
	if c.State() != StateIdle {
		t.Error("Controller should stay idle after failed Start")
	}
	if dev.releaseCount() != 1 {
		t.Errorf("Expected forced release on failed acquire, got %d", dev.releaseCount())
	}
}

func TestImplicitStopOnRestart(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{[]byte("discarded"), []byte("kept")}}
	c := NewController(dev, testLogger())

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForDrain(t, dev, 1)

	// Second Start must discard the first capture and begin a new one.
	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	waitForDrain(t, dev, 2)

	seg, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !bytes.Equal(seg.Data, []byte("kept")) {
		t.Errorf("Expected only second capture's audio, got %q", seg.Data)
	}
	if dev.releaseCount() != 2 {
		t.Errorf("Expected 2 releases (implicit stop + final stop), got %d", dev.releaseCount())
	}
}

func TestDeviceErrorDuringCapture(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{[]byte("partial")}, readErr: errors.New("device unplugged")}
	c := NewController(dev, testLogger())

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForDrain(t, dev, 1)

	_, err := c.Stop()
	if err == nil {
		t.Fatal("Expected error when the device failed mid-capture")
	}
	if !scoreerr.IsCode(err, scoreerr.CodeDeviceUnavailable) {
		t.Errorf("Expected DEVICE_UNAVAILABLE, got %v", err)
	}
	if c.State() != StateIdle {
		t.Error("Controller should be idle after forced cleanup")
	}
	if dev.releaseCount() != 1 {
		t.Errorf("Expected device release on error path, got %d", dev.releaseCount())
	}
}

func TestEndedStreamStillFinalizes(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{[]byte("short")}, endStream: true}
	c := NewController(dev, testLogger())

	if err := c.Start(context.Background(), DefaultOptions()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForDrain(t, dev, 1)

	seg, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop after EOF failed: %v", err)
	}
	if !bytes.Equal(seg.Data, []byte("short")) {
		t.Errorf("Expected buffered audio despite EOF, got %q", seg.Data)
	}
}
