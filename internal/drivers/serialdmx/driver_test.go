package serialdmx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
)

// fakePort is an in-memory Port recording writes and serving queued reads.
type fakePort struct {
	written     []byte
	breaks      []time.Duration
	drains      int
	inputResets int
	readTimeout time.Duration
	closed      bool

	// pending chunks served one per Read; an empty chunk simulates a
	// read timeout (n=0, no error).
	pending [][]byte

	breakErr error
	writeErr error
	readErr  error
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		return 0, nil
	}
	chunk := p.pending[0]
	p.pending = p.pending[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, buf...)
	return len(buf), nil
}

func (p *fakePort) Break(d time.Duration) error {
	if p.breakErr != nil {
		return p.breakErr
	}
	p.breaks = append(p.breaks, d)
	return nil
}

func (p *fakePort) Drain() error { p.drains++; return nil }

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error { p.inputResets++; return nil }

func (p *fakePort) Close() error { p.closed = true; return nil }

func newTestDriver(port *fakePort) *Driver {
	d := newDriver(port, Config{})
	d.sleep = func(time.Duration) {}
	return d
}

func TestSendFrame_BreakThenData(t *testing.T) {
	port := &fakePort{}
	d := newTestDriver(port)

	frame := []byte{0x00, 0xFF, 0x80}
	if err := d.SendFrame(frame); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	if len(port.breaks) != 1 {
		t.Fatalf("got %d breaks, want 1", len(port.breaks))
	}
	if port.breaks[0] < dmx.MinBreak {
		t.Errorf("break %v shorter than minimum %v", port.breaks[0], dmx.MinBreak)
	}
	if !bytes.Equal(port.written, frame) {
		t.Errorf("written = %x, want %x", port.written, frame)
	}
	if port.drains == 0 {
		t.Error("SendFrame should drain the UART")
	}
}

func TestSendFrame_TimingClamped(t *testing.T) {
	port := &fakePort{}
	d := newDriver(port, Config{Break: 10 * time.Microsecond, MarkAfterBreak: time.Microsecond})
	d.sleep = func(time.Duration) {}

	if d.breakTime < dmx.MinBreak {
		t.Errorf("configured break %v below minimum %v", d.breakTime, dmx.MinBreak)
	}
	if d.markAfterBreak < dmx.MinMarkAfterBreak {
		t.Errorf("configured MAB %v below minimum %v", d.markAfterBreak, dmx.MinMarkAfterBreak)
	}
}

func TestSendFrame_WriteFailure(t *testing.T) {
	port := &fakePort{writeErr: errors.New("device unplugged")}
	d := newTestDriver(port)

	err := d.SendFrame([]byte{0x00})
	if !errors.Is(err, dmx.ErrWriteFailed) {
		t.Errorf("SendFrame() error = %v, want ErrWriteFailed", err)
	}
}

func TestSendFrame_BreakFailure(t *testing.T) {
	port := &fakePort{breakErr: errors.New("ioctl failed")}
	d := newTestDriver(port)

	err := d.SendFrame([]byte{0x00})
	if !errors.Is(err, dmx.ErrWriteFailed) {
		t.Errorf("SendFrame() error = %v, want ErrWriteFailed", err)
	}
}

func TestReceive_StripsResponderBreak(t *testing.T) {
	port := &fakePort{pending: [][]byte{{0x00, 0x00, 0xCC, 0x01, 0x18}}}
	d := newTestDriver(port)

	// A send arms break stripping for the reply.
	if err := d.SendFrame([]byte{0x00}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	got, err := d.Receive(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	want := []byte{0xCC, 0x01, 0x18}
	if !bytes.Equal(got, want) {
		t.Errorf("Receive() = %x, want %x", got, want)
	}
}

func TestReceive_BreakAloneThenData(t *testing.T) {
	port := &fakePort{pending: [][]byte{{0x00}, {0xCC, 0x01}}}
	d := newTestDriver(port)

	if err := d.SendFrame([]byte{0x00}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	got, err := d.Receive(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0xCC, 0x01}) {
		t.Errorf("Receive() = %x, want cc01", got)
	}
}

func TestReceive_SecondChunkKeepsZeros(t *testing.T) {
	port := &fakePort{pending: [][]byte{{0xCC, 0x01}, {0x00, 0x18}}}
	d := newTestDriver(port)

	if err := d.SendFrame([]byte{0x00}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	first, err := d.Receive(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("first Receive() error = %v", err)
	}
	if !bytes.Equal(first, []byte{0xCC, 0x01}) {
		t.Fatalf("first Receive() = %x", first)
	}

	// Zeros mid-packet are data, not break artifacts.
	second, err := d.Receive(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("second Receive() error = %v", err)
	}
	if !bytes.Equal(second, []byte{0x00, 0x18}) {
		t.Errorf("second Receive() = %x, want 0018", second)
	}
}

func TestReceive_Timeout(t *testing.T) {
	port := &fakePort{}
	d := newTestDriver(port)

	_, err := d.Receive(5 * time.Millisecond)
	if !errors.Is(err, dmx.ErrTimeout) {
		t.Errorf("Receive() error = %v, want ErrTimeout", err)
	}
}

func TestSetMode_ReceiveClearsInput(t *testing.T) {
	port := &fakePort{}
	d := newTestDriver(port)

	if err := d.SetMode(dmx.Receive); err != nil {
		t.Fatalf("SetMode(Receive) error = %v", err)
	}
	if port.inputResets != 1 {
		t.Errorf("input resets = %d, want 1", port.inputResets)
	}

	// Already receiving: no further reset.
	if err := d.SetMode(dmx.Receive); err != nil {
		t.Fatalf("SetMode(Receive) error = %v", err)
	}
	if port.inputResets != 1 {
		t.Errorf("input resets = %d after repeat, want 1", port.inputResets)
	}

	if err := d.SetMode(dmx.Transmit); err != nil {
		t.Fatalf("SetMode(Transmit) error = %v", err)
	}
}

func TestClose(t *testing.T) {
	port := &fakePort{}
	d := newTestDriver(port)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}

	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := d.SendFrame([]byte{0x00}); !errors.Is(err, dmx.ErrClosed) {
		t.Errorf("SendFrame() after close error = %v, want ErrClosed", err)
	}
	if _, err := d.Receive(time.Millisecond); !errors.Is(err, dmx.ErrClosed) {
		t.Errorf("Receive() after close error = %v, want ErrClosed", err)
	}
	if err := d.SetMode(dmx.Receive); !errors.Is(err, dmx.ErrClosed) {
		t.Errorf("SetMode() after close error = %v, want ErrClosed", err)
	}
}
